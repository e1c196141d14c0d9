// Package store persists stocktaker data. SQL is built with goqu for the
// configured dialect and executed through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/stocktaker/internal/db"
)

var (
	// ErrNotFound is returned when a mutation targets a row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a mutation is not allowed in the row's current state.
	ErrConflict = errors.New("conflict")
)

// Store wraps a database handle.
type Store struct {
	conn      *sql.DB
	dialect   goqu.DialectWrapper
	returning bool
	now       func() time.Time
}

// New returns a store for a database opened with the given driver.
func New(conn *sql.DB, driver string) *Store {
	return &Store{
		conn:      conn,
		dialect:   goqu.Dialect(db.Dialect(driver)),
		returning: driver == db.DriverPostgres,
		now:       time.Now,
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Store) from(table any) *goqu.SelectDataset {
	return s.dialect.From(table).Prepared(true)
}

func (s *Store) insert(table string) *goqu.InsertDataset {
	return s.dialect.Insert(table).Prepared(true)
}

func (s *Store) update(table string) *goqu.UpdateDataset {
	return s.dialect.Update(table).Prepared(true)
}

func (s *Store) delete(table string) *goqu.DeleteDataset {
	return s.dialect.Delete(table).Prepared(true)
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func execQuery(ctx context.Context, q db.DBTX, b sqlBuilder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

func queryRows(ctx context.Context, q db.DBTX, b sqlBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}

func queryRow(ctx context.Context, q db.DBTX, b sqlBuilder) (*sql.Row, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

// insertID runs an insert and returns the generated integer id.
func (s *Store) insertID(ctx context.Context, q db.DBTX, ds *goqu.InsertDataset) (int64, error) {
	if s.returning {
		row, err := queryRow(ctx, q, ds.Returning("id"))
		if err != nil {
			return 0, err
		}
		var id int64
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := execQuery(ctx, q, ds)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// requireAffected turns an update that touched no rows into ErrNotFound.
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteErr.Error(), "UNIQUE")
		}
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteErr.Error(), "FOREIGN KEY")
		}
	}
	return false
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
