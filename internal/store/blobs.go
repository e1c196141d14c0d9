package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/stocktaker/internal/db"
)

// Blob is binary content kept in the database.
type Blob struct {
	Key  string
	Data []byte
	MIME string
}

// PutBlob stores data under key, replacing any previous content.
func (s *Store) PutBlob(ctx context.Context, key string, data []byte, mime string) error {
	err := db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		if _, err := execQuery(ctx, tx, s.delete("blobs").Where(goqu.C("key").Eq(key))); err != nil {
			return err
		}
		_, err := execQuery(ctx, tx, s.insert("blobs").
			Rows(goqu.Record{"key": key, "data": data, "mime": mime, "created_at": s.timestamp()}))
		return err
	})
	if err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	return nil
}

// GetBlob returns the blob stored under key.
func (s *Store) GetBlob(ctx context.Context, key string) (*Blob, error) {
	row, err := queryRow(ctx, s.conn, s.from("blobs").Select("key", "data", "mime").Where(goqu.C("key").Eq(key)))
	if err != nil {
		return nil, fmt.Errorf("getting blob: %w", err)
	}
	b := &Blob{}
	err = row.Scan(&b.Key, &b.Data, &b.MIME)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting blob: %w", err)
	}
	return b, nil
}

// DeleteBlob removes a blob. Missing keys are ignored.
func (s *Store) DeleteBlob(ctx context.Context, key string) error {
	if _, err := execQuery(ctx, s.conn, s.delete("blobs").Where(goqu.C("key").Eq(key))); err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}
