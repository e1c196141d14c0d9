package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/model"
)

var productColumns = []any{
	"id", "name", "product_category", "stock_category", "cost", "product_value",
	"sage_code", "sold_as", "supplier", "stock_count", "image_key",
	"created_at", "updated_at", "deleted_at",
}

// ProductFilter narrows ListProducts. Zero values match everything; a zero
// Limit returns all matches.
type ProductFilter struct {
	StockCategory   string
	ProductCategory string
	Query           string
	Limit           int
	Offset          int
}

func (f ProductFilter) where() []exp.Expression {
	exprs := []exp.Expression{goqu.C("deleted_at").IsNull()}
	if f.StockCategory != "" {
		exprs = append(exprs, goqu.C("stock_category").Eq(f.StockCategory))
	}
	if f.ProductCategory != "" {
		exprs = append(exprs, goqu.C("product_category").Eq(f.ProductCategory))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		exprs = append(exprs, goqu.C("name").ILike("%"+q+"%"))
	}
	return exprs
}

func scanProduct(row scanner) (*model.Product, error) {
	p := &model.Product{}
	var imageKey sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.ProductCategory, &p.StockCategory, &p.Cost, &p.ProductValue,
		&p.SageCode, &p.SoldAs, &p.Supplier, &p.StockCount, &imageKey,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	p.ImageKey = imageKey.String
	p.HasImage = imageKey.Valid && imageKey.String != ""
	return p, nil
}

func productRecord(p model.Product) goqu.Record {
	return goqu.Record{
		"name":             strings.TrimSpace(p.Name),
		"product_category": p.ProductCategory,
		"stock_category":   p.StockCategory,
		"cost":             p.Cost,
		"product_value":    p.ProductValue,
		"sage_code":        p.SageCode,
		"sold_as":          p.SoldAs,
		"supplier":         p.Supplier,
	}
}

// CreateProduct adds a product to the catalog.
func (s *Store) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	now := s.timestamp()
	rec := productRecord(p)
	rec["stock_count"] = p.StockCount
	rec["created_at"] = now
	rec["updated_at"] = now

	id, err := s.insertID(ctx, s.conn, s.insert("products").Rows(rec))
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	return s.GetProduct(ctx, id)
}

// GetProduct returns a product by ID, including soft-deleted products.
func (s *Store) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return getProduct(ctx, s.conn, s.from("products").Select(productColumns...).Where(goqu.C("id").Eq(id)))
}

func getProduct(ctx context.Context, q db.DBTX, ds *goqu.SelectDataset) (*model.Product, error) {
	row, err := queryRow(ctx, q, ds)
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ListProducts returns non-deleted products matching the filter, ordered by name.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	ds := s.from("products").Select(productColumns...).
		Where(f.where()...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit)).Offset(uint(max(f.Offset, 0)))
	}

	rows, err := queryRows(ctx, s.conn, ds)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CountProducts returns the number of products matching the filter,
// ignoring Limit and Offset.
func (s *Store) CountProducts(ctx context.Context, f ProductFilter) (int, error) {
	row, err := queryRow(ctx, s.conn, s.from("products").Select(goqu.COUNT("*")).Where(f.where()...))
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// UpdateProduct replaces a product's descriptive fields. Stock counts are only
// changed through stock takes.
func (s *Store) UpdateProduct(ctx context.Context, id int64, p model.Product) (*model.Product, error) {
	rec := productRecord(p)
	rec["updated_at"] = s.timestamp()

	result, err := execQuery(ctx, s.conn, s.update("products").Set(rec).Where(
		goqu.C("id").Eq(id),
		goqu.C("deleted_at").IsNull(),
	))
	if err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, fmt.Errorf("updating product %d: %w", id, err)
	}

	return s.GetProduct(ctx, id)
}

// DeleteProduct soft-deletes a product.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	now := s.timestamp()
	result, err := execQuery(ctx, s.conn, s.update("products").
		Set(goqu.Record{"deleted_at": now, "updated_at": now}).
		Where(goqu.C("id").Eq(id), goqu.C("deleted_at").IsNull()))
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	return nil
}

// SetProductImage stores the blob key of a product's image and returns the
// previous key, if any.
func (s *Store) SetProductImage(ctx context.Context, id int64, key string) (string, error) {
	var previous string
	err := db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		p, err := getProduct(ctx, tx, s.from("products").Select(productColumns...).
			Where(goqu.C("id").Eq(id), goqu.C("deleted_at").IsNull()))
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNotFound
		}
		previous = p.ImageKey

		_, err = execQuery(ctx, tx, s.update("products").
			Set(goqu.Record{"image_key": nullString(key), "updated_at": s.timestamp()}).
			Where(goqu.C("id").Eq(id)))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("setting product image: %w", err)
	}
	return previous, nil
}

// updateStockCounts sets stock_count for each product. Every product must
// exist and not be deleted.
func (s *Store) updateStockCounts(ctx context.Context, tx db.DBTX, counts map[int64]decimal.Decimal) error {
	now := s.timestamp()
	for id, count := range counts {
		result, err := execQuery(ctx, tx, s.update("products").
			Set(goqu.Record{"stock_count": count, "updated_at": now}).
			Where(goqu.C("id").Eq(id), goqu.C("deleted_at").IsNull()))
		if err != nil {
			return fmt.Errorf("updating stock count of product %d: %w", id, err)
		}
		if err := requireAffected(result); err != nil {
			return fmt.Errorf("updating stock count of product %d: %w", id, err)
		}
	}
	return nil
}
