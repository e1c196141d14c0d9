package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/stocktaker/internal/api"
	"github.com/erazemk/stocktaker/internal/blob"
	"github.com/erazemk/stocktaker/internal/config"
	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/export"
	"github.com/erazemk/stocktaker/internal/logging"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// INFO/WARN → stdout, ERROR → stderr, optionally also a log file.
	closeLog, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx := context.Background()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, cfg.Database.Driver); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "driver", cfg.Database.Driver)

	st := store.New(database, cfg.Database.Driver)

	password, err := ensureAdmin(ctx, st, cfg.AdminEmail)
	if err != nil {
		slog.Error("failed to create admin user", "error", err)
		os.Exit(1)
	}
	if password != "" {
		printAdmin(cfg.AdminEmail, password)
	}

	// Use the configured secret, else the one generated on first run.
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = st.GetJWTSecret(ctx)
		if err != nil {
			slog.Error("failed to get JWT secret", "error", err)
			os.Exit(1)
		}
	}

	blobs, err := blobStore(ctx, cfg, st)
	if err != nil {
		slog.Error("failed to set up blob storage", "error", err)
		os.Exit(1)
	}

	exporter, err := stockTakeExporter(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up sheets export", "error", err)
		os.Exit(1)
	}

	apiRouter := api.NewRouter(api.Deps{
		Store:       st,
		Blobs:       blobs,
		Exporter:    exporter,
		JWTSecret:   jwtSecret,
		TokenExpiry: cfg.TokenExpiry,
		Logger:      slog.Default(),
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// ensureAdmin creates an approved admin when the database has no users yet
// and returns its generated password. It returns "" when users exist.
func ensureAdmin(ctx context.Context, st *store.Store, email string) (string, error) {
	n, err := st.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	_, err = st.CreateUser(ctx, model.User{
		Email:        email,
		Name:         "Admin",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Approved:     true,
	})
	if err != nil {
		return "", err
	}
	return password, nil
}

func blobStore(ctx context.Context, cfg *config.Config, st *store.Store) (blob.Store, error) {
	if cfg.Blob.Backend != config.BlobS3 {
		return blob.NewDBStore(st), nil
	}
	s3cfg := cfg.Blob.S3
	slog.Info("storing images in s3", "bucket", s3cfg.Bucket, "endpoint", s3cfg.Endpoint)
	return blob.NewS3Store(ctx, blob.S3Config{
		Endpoint:  s3cfg.Endpoint,
		Region:    s3cfg.Region,
		Bucket:    s3cfg.Bucket,
		AccessKey: s3cfg.AccessKey,
		SecretKey: s3cfg.SecretKey,
		PathStyle: s3cfg.PathStyle,
	})
}

func stockTakeExporter(ctx context.Context, cfg *config.Config) (export.Exporter, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		return export.Nop{}, nil
	}
	slog.Info("exporting stock takes to google sheets", "spreadsheet", cfg.Sheets.SpreadsheetID)
	return export.NewSheets(ctx, export.SheetsConfig{
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		Range:           cfg.Sheets.Range,
		CredentialsJSON: cfg.Sheets.CredentialsJSON,
		CredentialsFile: cfg.Sheets.CredentialsFile,
	})
}

func printAdmin(email, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
