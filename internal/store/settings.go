package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

const settingJWTSecret = "jwt_secret"

// GetJWTSecret returns the JWT signing secret, generating and storing one on
// first use. The insert is conflict-tolerant and the value is always read
// back, so concurrent first starts agree on one secret.
func (s *Store) GetJWTSecret(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := execQuery(ctx, s.conn, s.insert("settings").
		Rows(goqu.Record{"key": settingJWTSecret, "value": hex.EncodeToString(buf)}).
		OnConflict(goqu.DoNothing()))
	if err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	row, err := queryRow(ctx, s.conn, s.from("settings").Select("value").Where(goqu.C("key").Eq(settingJWTSecret)))
	if err != nil {
		return "", fmt.Errorf("querying jwt secret: %w", err)
	}
	var secret string
	if err := row.Scan(&secret); err != nil {
		return "", fmt.Errorf("querying jwt secret: %w", err)
	}

	return secret, nil
}
