package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
)

var conversionColumns = []any{"id", "created_at", "input_product", "output_products", "status", "completed_at", "created_by"}

var itemColumns = []any{"id", "conversion_id", "product_id", "quantity", "type", "storage_type", "created_at"}

func scanConversion(row scanner) (*model.Conversion, error) {
	c := &model.Conversion{}
	var outputs sql.NullString
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.InputProduct, &outputs, &c.Status, &c.CompletedAt, &c.CreatedBy); err != nil {
		return nil, err
	}
	if outputs.Valid && outputs.String != "" {
		if err := json.Unmarshal([]byte(outputs.String), &c.OutputProducts); err != nil {
			return nil, fmt.Errorf("decoding output products: %w", err)
		}
	}
	return c, nil
}

func scanItem(row scanner) (*model.ConversionItem, error) {
	it := &model.ConversionItem{}
	if err := row.Scan(&it.ID, &it.ConversionID, &it.ProductID, &it.Quantity, &it.Type, &it.StorageType, &it.CreatedAt); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Store) getConversion(ctx context.Context, q db.DBTX, id string) (*model.Conversion, error) {
	row, err := queryRow(ctx, q, s.from("conversions").Select(conversionColumns...).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, err
	}
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// GetConversion returns a conversion by ID.
func (s *Store) GetConversion(ctx context.Context, id string) (*model.Conversion, error) {
	c, err := s.getConversion(ctx, s.conn, id)
	if err != nil {
		return nil, fmt.Errorf("getting conversion: %w", err)
	}
	return c, nil
}

// ListConversionItems returns the items of a conversion, input first.
func (s *Store) ListConversionItems(ctx context.Context, conversionID string) ([]model.ConversionItem, error) {
	items, err := s.listItems(ctx, s.conn, conversionID)
	if err != nil {
		return nil, fmt.Errorf("listing conversion items: %w", err)
	}
	return items, nil
}

func (s *Store) listItems(ctx context.Context, q db.DBTX, conversionID string) ([]model.ConversionItem, error) {
	rows, err := queryRows(ctx, q, s.from("conversion_items").Select(itemColumns...).
		Where(goqu.C("conversion_id").Eq(conversionID)).
		Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.ConversionItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversion item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// sameInput reports whether items hold one input item of quantity qty.
func sameInput(items []model.ConversionItem, qty decimal.Decimal) bool {
	for _, it := range items {
		if it.Type == model.ItemTypeInput {
			return it.Quantity.Equal(qty)
		}
	}
	return false
}

// sameOutputs reports whether the output items of a conversion match outputs
// row for row.
func sameOutputs(items []model.ConversionItem, outputs []model.ConversionOutput) bool {
	var stored []model.ConversionItem
	for _, it := range items {
		if it.Type == model.ItemTypeOutput {
			stored = append(stored, it)
		}
	}
	if len(stored) != len(outputs) {
		return false
	}
	for i, o := range outputs {
		it := stored[i]
		if it.ProductID != o.ProductID || !it.Quantity.Equal(o.Quantity) || it.StorageType != o.StorageType {
			return false
		}
	}
	return true
}

// ListActiveConversions returns the user's in-progress conversions, newest
// first, each with its input item and input product attached. Conversions
// without an input item are not listed.
func (s *Store) ListActiveConversions(ctx context.Context, userID string) ([]model.ActiveConversion, error) {
	ds := s.from(goqu.T("conversions").As("c")).
		Join(goqu.T("conversion_items").As("i"), goqu.On(goqu.Ex{
			"i.conversion_id": goqu.I("c.id"),
			"i.type":          model.ItemTypeInput,
		})).
		Join(goqu.T("products").As("p"), goqu.On(goqu.Ex{"p.id": goqu.I("c.input_product")})).
		Select(
			goqu.I("c.id"), goqu.I("c.created_at"), goqu.I("c.input_product"), goqu.I("c.output_products"),
			goqu.I("c.status"), goqu.I("c.completed_at"), goqu.I("c.created_by"),
			goqu.I("i.id"), goqu.I("i.conversion_id"), goqu.I("i.product_id"), goqu.I("i.quantity"),
			goqu.I("i.type"), goqu.I("i.storage_type"), goqu.I("i.created_at"),
			goqu.I("p.id"), goqu.I("p.name"), goqu.I("p.product_category"), goqu.I("p.stock_category"),
			goqu.I("p.cost"), goqu.I("p.product_value"), goqu.I("p.sage_code"), goqu.I("p.sold_as"),
			goqu.I("p.supplier"), goqu.I("p.stock_count"), goqu.I("p.image_key"),
			goqu.I("p.created_at"), goqu.I("p.updated_at"), goqu.I("p.deleted_at"),
		).
		Where(goqu.Ex{
			"c.created_by": userID,
			"c.status":     model.ConversionInProgress,
		}).
		Order(goqu.I("c.created_at").Desc(), goqu.I("c.id").Asc())

	rows, err := queryRows(ctx, s.conn, ds)
	if err != nil {
		return nil, fmt.Errorf("listing active conversions: %w", err)
	}
	defer rows.Close()

	var active []model.ActiveConversion
	for rows.Next() {
		var (
			a        model.ActiveConversion
			outputs  sql.NullString
			imageKey sql.NullString
			c        = &a.Conversion
			it       = &a.Input
			p        = &a.Product
		)
		if err := rows.Scan(
			&c.ID, &c.CreatedAt, &c.InputProduct, &outputs, &c.Status, &c.CompletedAt, &c.CreatedBy,
			&it.ID, &it.ConversionID, &it.ProductID, &it.Quantity, &it.Type, &it.StorageType, &it.CreatedAt,
			&p.ID, &p.Name, &p.ProductCategory, &p.StockCategory, &p.Cost, &p.ProductValue, &p.SageCode,
			&p.SoldAs, &p.Supplier, &p.StockCount, &imageKey, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning active conversion: %w", err)
		}
		p.ImageKey = imageKey.String
		p.HasImage = imageKey.String != ""
		active = append(active, a)
	}
	return active, rows.Err()
}

// StartConversion creates an in-progress conversion and its single input item
// in one transaction. When req.ID names a conversion that already exists for
// the same user, input product and quantity, that conversion is returned
// unchanged so a retried request is harmless; any other existing conversion
// with that ID is ErrConflict.
func (s *Store) StartConversion(ctx context.Context, userID string, req model.StartConversion) (*model.Conversion, error) {
	if !req.Quantity.IsPositive() {
		return nil, validate.Errorf("quantity", "must be greater than zero")
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	var result *model.Conversion
	err := db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		existing, err := s.getConversion(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("checking existing conversion: %w", err)
		}
		if existing != nil {
			if existing.CreatedBy != userID || existing.InputProduct != req.ProductID {
				return fmt.Errorf("conversion %s already exists: %w", id, ErrConflict)
			}
			items, err := s.listItems(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("checking existing input: %w", err)
			}
			if !sameInput(items, req.Quantity) {
				return fmt.Errorf("conversion %s already exists with another quantity: %w", id, ErrConflict)
			}
			result = existing
			return nil
		}

		product, err := getProduct(ctx, tx, s.from("products").Select(productColumns...).
			Where(goqu.C("id").Eq(req.ProductID), goqu.C("deleted_at").IsNull()))
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("input product %d: %w", req.ProductID, ErrNotFound)
		}

		now := s.timestamp()
		result = &model.Conversion{
			ID:           id,
			CreatedAt:    now,
			InputProduct: req.ProductID,
			Status:       model.ConversionInProgress,
			CreatedBy:    userID,
		}
		if _, err := execQuery(ctx, tx, s.insert("conversions").Rows(goqu.Record{
			"id":            id,
			"created_at":    now,
			"input_product": req.ProductID,
			"status":        model.ConversionInProgress,
			"created_by":    userID,
		})); err != nil {
			return fmt.Errorf("creating conversion: %w", err)
		}

		if _, err := execQuery(ctx, tx, s.insert("conversion_items").Rows(goqu.Record{
			"conversion_id": id,
			"product_id":    req.ProductID,
			"quantity":      req.Quantity,
			"type":          model.ItemTypeInput,
			"storage_type":  "",
			"created_at":    now,
		})); err != nil {
			return fmt.Errorf("creating input item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("starting conversion: %w", err)
	}

	return result, nil
}

// CompleteConversion records the output items of an in-progress conversion
// and closes it, all in one transaction. Output product ids are stored in
// submission order. Repeating the same completion (same products, quantities
// and storage types in the same order) returns the completed conversion
// unchanged; any other completion of a finished conversion is ErrConflict.
func (s *Store) CompleteConversion(ctx context.Context, id, userID string, outputs []model.ConversionOutput) (*model.Conversion, error) {
	if len(outputs) == 0 {
		return nil, validate.Errorf("outputs", "at least one output is required")
	}

	productIDs := make([]int64, len(outputs))
	for i, o := range outputs {
		productIDs[i] = o.ProductID
	}
	encoded, err := json.Marshal(productIDs)
	if err != nil {
		return nil, fmt.Errorf("encoding output products: %w", err)
	}

	var result *model.Conversion
	err = db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		c, err := s.getConversion(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("getting conversion: %w", err)
		}
		if c == nil || c.CreatedBy != userID {
			return fmt.Errorf("conversion %s: %w", id, ErrNotFound)
		}
		if c.Status == model.ConversionCompleted && slices.Equal(c.OutputProducts, productIDs) {
			items, err := s.listItems(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("checking existing outputs: %w", err)
			}
			if !sameOutputs(items, outputs) {
				return fmt.Errorf("conversion %s was completed with other outputs: %w", id, ErrConflict)
			}
			result = c
			return nil
		}
		if c.Status != model.ConversionInProgress {
			return fmt.Errorf("conversion %s is %s: %w", id, c.Status, ErrConflict)
		}

		now := s.timestamp()
		for i, o := range outputs {
			if _, err := execQuery(ctx, tx, s.insert("conversion_items").Rows(goqu.Record{
				"conversion_id": id,
				"product_id":    o.ProductID,
				"quantity":      o.Quantity,
				"type":          model.ItemTypeOutput,
				"storage_type":  o.StorageType,
				"created_at":    now,
			})); err != nil {
				return fmt.Errorf("creating output item %d: %w", i+1, err)
			}
		}

		res, err := execQuery(ctx, tx, s.update("conversions").
			Set(goqu.Record{
				"output_products": string(encoded),
				"completed_at":    now,
				"status":          model.ConversionCompleted,
			}).
			Where(goqu.C("id").Eq(id), goqu.C("status").Eq(model.ConversionInProgress)))
		if err != nil {
			return fmt.Errorf("closing conversion: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return fmt.Errorf("closing conversion: %w", ErrConflict)
		}

		c.OutputProducts = productIDs
		c.CompletedAt = &now
		c.Status = model.ConversionCompleted
		result = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("completing conversion: %w", err)
	}

	return result, nil
}

// CancelConversion marks an in-progress conversion as cancelled. Its items
// are kept.
func (s *Store) CancelConversion(ctx context.Context, id, userID string) error {
	err := db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		c, err := s.getConversion(ctx, tx, id)
		if err != nil {
			return err
		}
		if c == nil || c.CreatedBy != userID {
			return ErrNotFound
		}
		if c.Status != model.ConversionInProgress {
			return fmt.Errorf("conversion is %s: %w", c.Status, ErrConflict)
		}

		_, err = execQuery(ctx, tx, s.update("conversions").
			Set(goqu.Record{"status": model.ConversionCancelled}).
			Where(goqu.C("id").Eq(id)))
		return err
	})
	if err != nil {
		return fmt.Errorf("cancelling conversion %s: %w", id, err)
	}
	return nil
}
