package blob

import (
	"context"

	"github.com/erazemk/stocktaker/internal/store"
)

// DBStore keeps blobs in the blobs table.
type DBStore struct {
	store *store.Store
}

// NewDBStore returns a Store backed by st.
func NewDBStore(st *store.Store) *DBStore {
	return &DBStore{store: st}
}

func (d *DBStore) Put(ctx context.Context, key string, data []byte, mime string) error {
	return d.store.PutBlob(ctx, key, data, mime)
}

func (d *DBStore) Get(ctx context.Context, key string) (*Object, error) {
	b, err := d.store.GetBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	return &Object{Data: b.Data, MIME: b.MIME}, nil
}

func (d *DBStore) Delete(ctx context.Context, key string) error {
	return d.store.DeleteBlob(ctx, key)
}
