// Package config loads server settings from defaults, an optional YAML file,
// the environment (including a .env file) and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/stocktaker/internal/db"
)

// Blob backends.
const (
	BlobDatabase = "db"
	BlobS3       = "s3"
)

// Config holds the server settings.
type Config struct {
	Addr        string        `yaml:"addr"`
	Database    Database      `yaml:"database"`
	AdminEmail  string        `yaml:"admin_email"`
	LogPath     string        `yaml:"log_path"`
	LogLevel    string        `yaml:"log_level"`
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
	Blob        Blob          `yaml:"blob"`
	Sheets      Sheets        `yaml:"sheets"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Blob struct {
	Backend string `yaml:"backend"`
	S3      S3     `yaml:"s3"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Sheets enables stock take export when SpreadsheetID is set.
type Sheets struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr: ":8080",
		Database: Database{
			Driver: db.DriverSQLite,
			DSN:    "stocktaker.sqlite3",
		},
		AdminEmail:  "admin@localhost",
		LogLevel:    "info",
		TokenExpiry: 7 * 24 * time.Hour,
		Blob: Blob{
			Backend: BlobDatabase,
			S3:      S3{Region: "us-east-1", PathStyle: true},
		},
		Sheets: Sheets{Range: "Stock!A1"},
	}
}

// ErrHelp is returned when -h or -help was given.
var ErrHelp = flag.ErrHelp

// Load builds the configuration for the given command-line arguments
// (without the program name). Usage text goes to usage.
func Load(args []string, usage io.Writer) (*Config, error) {
	f := newFlags(usage)
	if err := f.set.Parse(args); err != nil {
		return nil, err
	}
	if f.set.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", f.set.Arg(0))
	}

	cfg := Default()

	if f.configPath != "" {
		if err := loadFile(f.configPath, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(f.envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", f.envPath, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	f.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	switch c.Blob.Backend {
	case BlobDatabase:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("s3 bucket is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("unsupported blob backend %q", c.Blob.Backend)
	}
	if c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsFile == "" && c.Sheets.CredentialsJSON == "" {
		return errors.New("sheets export needs credentials_file or credentials_json")
	}
	if c.TokenExpiry <= 0 {
		return errors.New("token expiry must be positive")
	}
	return nil
}
