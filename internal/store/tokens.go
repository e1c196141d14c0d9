package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// RevokeToken adds a token's JTI to the revocation list.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := execQuery(ctx, s.conn, s.insert("revoked_tokens").
		Rows(goqu.Record{"jti": jti, "expires_at": expiresAt.UTC()}).
		OnConflict(goqu.DoNothing()))
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Opportunistically clean up expired revocations.
	_, _ = execQuery(ctx, s.conn, s.delete("revoked_tokens").Where(goqu.C("expires_at").Lt(s.timestamp())))

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	row, err := queryRow(ctx, s.conn, s.from("revoked_tokens").Select(goqu.COUNT("*")).Where(goqu.C("jti").Eq(jti)))
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}
