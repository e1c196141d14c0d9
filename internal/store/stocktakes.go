package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
)

var stockTakeColumns = []any{"id", "take", "date", "product_category", "created_by", "created_at"}

func scanStockTake(row scanner) (*model.StockTake, error) {
	st := &model.StockTake{}
	var take string
	if err := row.Scan(&st.ID, &take, &st.Date, &st.ProductCategory, &st.CreatedBy, &st.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(take), &st.Take); err != nil {
		return nil, fmt.Errorf("decoding take: %w", err)
	}
	return st, nil
}

// CreateStockTake records a stock take and sets each counted product's
// stock_count in the same transaction. Counting an unknown product rolls
// everything back with ErrNotFound.
func (s *Store) CreateStockTake(ctx context.Context, st model.StockTake) (*model.StockTake, error) {
	if len(st.Take) == 0 {
		return nil, validate.Errorf("take", "at least one count is required")
	}
	for id, count := range st.Take {
		if count.IsNegative() {
			return nil, validate.Errorf("take", "count for product %d must not be negative", id)
		}
	}

	encoded, err := json.Marshal(st.Take)
	if err != nil {
		return nil, fmt.Errorf("encoding take: %w", err)
	}

	var id int64
	err = db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		if err := s.updateStockCounts(ctx, tx, st.Take); err != nil {
			return err
		}

		id, err = s.insertID(ctx, tx, s.insert("stock_takes").Rows(goqu.Record{
			"take":             string(encoded),
			"date":             st.Date.UTC(),
			"product_category": st.ProductCategory,
			"created_by":       st.CreatedBy,
			"created_at":       s.timestamp(),
		}))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating stock take: %w", err)
	}

	return s.GetStockTake(ctx, id)
}

// GetStockTake returns a stock take by ID.
func (s *Store) GetStockTake(ctx context.Context, id int64) (*model.StockTake, error) {
	row, err := queryRow(ctx, s.conn, s.from("stock_takes").Select(stockTakeColumns...).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, fmt.Errorf("getting stock take: %w", err)
	}
	st, err := scanStockTake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock take: %w", err)
	}
	return st, nil
}

// ListStockTakes returns stock takes newest first, optionally limited to one
// product category.
func (s *Store) ListStockTakes(ctx context.Context, category string, limit int) ([]model.StockTake, error) {
	ds := s.from("stock_takes").Select(stockTakeColumns...).
		Order(goqu.C("date").Desc(), goqu.C("id").Desc())
	if category != "" {
		ds = ds.Where(goqu.C("product_category").Eq(category))
	}
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	rows, err := queryRows(ctx, s.conn, ds)
	if err != nil {
		return nil, fmt.Errorf("listing stock takes: %w", err)
	}
	defer rows.Close()

	var takes []model.StockTake
	for rows.Next() {
		st, err := scanStockTake(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stock take: %w", err)
		}
		takes = append(takes, *st)
	}
	return takes, rows.Err()
}
