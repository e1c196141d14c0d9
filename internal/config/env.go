package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "STOCKTAKER_"

// applyEnv overrides cfg with STOCKTAKER_* variables that are set.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ADDR":                    &cfg.Addr,
		"DB_DRIVER":               &cfg.Database.Driver,
		"DB_DSN":                  &cfg.Database.DSN,
		"ADMIN_EMAIL":             &cfg.AdminEmail,
		"LOG_PATH":                &cfg.LogPath,
		"LOG_LEVEL":               &cfg.LogLevel,
		"JWT_SECRET":              &cfg.JWTSecret,
		"BLOB_BACKEND":            &cfg.Blob.Backend,
		"S3_ENDPOINT":             &cfg.Blob.S3.Endpoint,
		"S3_REGION":               &cfg.Blob.S3.Region,
		"S3_BUCKET":               &cfg.Blob.S3.Bucket,
		"S3_ACCESS_KEY":           &cfg.Blob.S3.AccessKey,
		"S3_SECRET_KEY":           &cfg.Blob.S3.SecretKey,
		"SHEETS_SPREADSHEET_ID":   &cfg.Sheets.SpreadsheetID,
		"SHEETS_RANGE":            &cfg.Sheets.Range,
		"SHEETS_CREDENTIALS_FILE": &cfg.Sheets.CredentialsFile,
		"SHEETS_CREDENTIALS_JSON": &cfg.Sheets.CredentialsJSON,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "TOKEN_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sTOKEN_EXPIRY %q: %w", EnvPrefix, v, err)
		}
		cfg.TokenExpiry = d
	}
	if v := os.Getenv(EnvPrefix + "S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sS3_PATH_STYLE %q: %w", EnvPrefix, v, err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	return nil
}
