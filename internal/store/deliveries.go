package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/model"
)

var deliveryColumns = []any{
	goqu.I("d.id"), goqu.I("d.created_at"), goqu.I("d.delivery_date"), goqu.I("d.product"), goqu.I("p.name"),
	goqu.I("d.quantity"), goqu.I("d.supplier"), goqu.I("d.notes"), goqu.I("d.van_temperature"),
	goqu.I("d.product_temperature"), goqu.I("d.driver_name"), goqu.I("d.license_plate"), goqu.I("d.origin"),
	goqu.I("d.kill_date"), goqu.I("d.use_by_date"), goqu.I("d.slaughter_number"), goqu.I("d.cut_number"),
	goqu.I("d.red_tractor"), goqu.I("d.rspca"), goqu.I("d.organic_assured"), goqu.I("d.batch_code"),
	goqu.I("d.receipt_image"), goqu.I("d.created_by"),
}

func (s *Store) deliveries() *goqu.SelectDataset {
	return s.from(goqu.T("deliveries").As("d")).
		Join(goqu.T("products").As("p"), goqu.On(goqu.Ex{"p.id": goqu.I("d.product")})).
		Select(deliveryColumns...)
}

func scanDelivery(row scanner) (*model.Delivery, error) {
	d := &model.Delivery{}
	var receipt sql.NullString
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.DeliveryDate, &d.Product, &d.ProductName,
		&d.Quantity, &d.Supplier, &d.Notes, &d.VanTemperature,
		&d.ProductTemperature, &d.DriverName, &d.LicensePlate, &d.Origin,
		&d.KillDate, &d.UseByDate, &d.SlaughterNumber, &d.CutNumber,
		&d.RedTractor, &d.RSPCA, &d.OrganicAssured, &d.BatchCode,
		&receipt, &d.CreatedBy); err != nil {
		return nil, err
	}
	d.ReceiptImage = receipt.String
	d.HasReceipt = receipt.String != ""
	return d, nil
}

// CreateDelivery records a delivery. The license plate is upper-cased and a
// zero batch code is replaced with the next free one.
func (s *Store) CreateDelivery(ctx context.Context, d model.Delivery) (*model.Delivery, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.LicensePlate = strings.ToUpper(strings.TrimSpace(d.LicensePlate))

	err := db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		if d.BatchCode == 0 {
			next, err := s.nextBatchCode(ctx, tx)
			if err != nil {
				return err
			}
			d.BatchCode = next
		}

		_, err := execQuery(ctx, tx, s.insert("deliveries").Rows(goqu.Record{
			"id":                  d.ID,
			"created_at":          s.timestamp(),
			"delivery_date":       d.DeliveryDate.UTC(),
			"product":             d.Product,
			"quantity":            d.Quantity,
			"supplier":            strings.TrimSpace(d.Supplier),
			"notes":               d.Notes,
			"van_temperature":     d.VanTemperature,
			"product_temperature": d.ProductTemperature,
			"driver_name":         strings.TrimSpace(d.DriverName),
			"license_plate":       d.LicensePlate,
			"origin":              d.Origin,
			"kill_date":           nullTime(d.KillDate),
			"use_by_date":         nullTime(d.UseByDate),
			"slaughter_number":    d.SlaughterNumber,
			"cut_number":          d.CutNumber,
			"red_tractor":         d.RedTractor,
			"rspca":               d.RSPCA,
			"organic_assured":     d.OrganicAssured,
			"batch_code":          d.BatchCode,
			"receipt_image":       nullString(d.ReceiptImage),
			"created_by":          d.CreatedBy,
		}))
		if isForeignKeyViolation(err) {
			return fmt.Errorf("product %d: %w", d.Product, ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating delivery: %w", err)
	}

	return s.GetDelivery(ctx, d.ID)
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, id string) (*model.Delivery, error) {
	row, err := queryRow(ctx, s.conn, s.deliveries().Where(goqu.I("d.id").Eq(id)))
	if err != nil {
		return nil, fmt.Errorf("getting delivery: %w", err)
	}
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting delivery: %w", err)
	}
	return d, nil
}

// DeliveryPageSize is the page size of the previous deliveries list.
const DeliveryPageSize = 10

// DeliveryFilter narrows a delivery listing. Query matches product name,
// supplier, batch code or quantity, ignoring case. A zero Limit returns every
// match.
type DeliveryFilter struct {
	Query  string
	Limit  int
	Offset int
}

func (f DeliveryFilter) where() []exp.Expression {
	q := strings.TrimSpace(f.Query)
	if q == "" {
		return nil
	}
	pattern := "%" + q + "%"
	return []exp.Expression{goqu.Or(
		goqu.I("p.name").ILike(pattern),
		goqu.I("d.supplier").ILike(pattern),
		goqu.Cast(goqu.I("d.batch_code"), "TEXT").ILike(pattern),
		goqu.Cast(goqu.I("d.quantity"), "TEXT").ILike(pattern),
	)}
}

// ListDeliveries returns deliveries matching f, newest first.
func (s *Store) ListDeliveries(ctx context.Context, f DeliveryFilter) ([]model.Delivery, error) {
	ds := s.deliveries().
		Where(f.where()...).
		Order(goqu.I("d.delivery_date").Desc(), goqu.I("d.batch_code").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit)).Offset(uint(max(f.Offset, 0)))
	}

	rows, err := queryRows(ctx, s.conn, ds)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

// CountDeliveries returns the number of deliveries matching f, ignoring
// Limit and Offset.
func (s *Store) CountDeliveries(ctx context.Context, f DeliveryFilter) (int, error) {
	ds := s.from(goqu.T("deliveries").As("d")).
		Join(goqu.T("products").As("p"), goqu.On(goqu.Ex{"p.id": goqu.I("d.product")})).
		Select(goqu.COUNT("*")).
		Where(f.where()...)

	row, err := queryRow(ctx, s.conn, ds)
	if err != nil {
		return 0, fmt.Errorf("counting deliveries: %w", err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting deliveries: %w", err)
	}
	return n, nil
}

// NextBatchCode returns one more than the highest batch code used so far,
// or 1 when there are no deliveries.
func (s *Store) NextBatchCode(ctx context.Context) (int, error) {
	return s.nextBatchCode(ctx, s.conn)
}

func (s *Store) nextBatchCode(ctx context.Context, q db.DBTX) (int, error) {
	row, err := queryRow(ctx, q, s.from("deliveries").Select(goqu.COALESCE(goqu.MAX("batch_code"), 0)))
	if err != nil {
		return 0, fmt.Errorf("getting batch code: %w", err)
	}
	var last int
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("getting batch code: %w", err)
	}
	return last + 1, nil
}

// SetDeliveryReceipt stores the blob key of a delivery's receipt image and
// returns the previous key, if any.
func (s *Store) SetDeliveryReceipt(ctx context.Context, id, key string) (string, error) {
	var previous string
	err := db.WithTx(ctx, s.conn, func(tx db.DBTX) error {
		row, err := queryRow(ctx, tx, s.from("deliveries").Select("receipt_image").Where(goqu.C("id").Eq(id)))
		if err != nil {
			return err
		}
		var current sql.NullString
		if err := row.Scan(&current); errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		previous = current.String

		_, err = execQuery(ctx, tx, s.update("deliveries").
			Set(goqu.Record{"receipt_image": nullString(key)}).
			Where(goqu.C("id").Eq(id)))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("setting delivery receipt: %w", err)
	}
	return previous, nil
}
