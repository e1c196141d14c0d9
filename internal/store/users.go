package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/erazemk/stocktaker/internal/model"
)

var userColumns = []any{"id", "email", "name", "password_hash", "role", "approved", "created_at", "deleted_at"}

func scanUser(row scanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates a new user. An empty ID is replaced with a random UUID.
// A duplicate email among active users returns ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	_, err := execQuery(ctx, s.conn, s.insert("users").Rows(goqu.Record{
		"id":            u.ID,
		"email":         NormalizeEmail(u.Email),
		"name":          strings.TrimSpace(u.Name),
		"password_hash": u.PasswordHash,
		"role":          u.Role,
		"approved":      u.Approved,
		"created_at":    s.timestamp(),
	}))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("creating user %q: %w", u.Email, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return s.GetUser(ctx, u.ID)
}

// GetUser returns a user by ID, including soft-deleted users.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	row, err := queryRow(ctx, s.conn, s.from("users").Select(userColumns...).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the active user with the given email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row, err := queryRow(ctx, s.conn, s.from("users").Select(userColumns...).Where(
		goqu.C("email").Eq(NormalizeEmail(email)),
		goqu.C("deleted_at").IsNull(),
	))
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := queryRows(ctx, s.conn, s.from("users").Select(userColumns...).
		Where(goqu.C("deleted_at").IsNull()).
		Order(goqu.C("email").Asc()))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) updateUser(ctx context.Context, id string, set goqu.Record) error {
	result, err := execQuery(ctx, s.conn, s.update("users").Set(set).Where(
		goqu.C("id").Eq(id),
		goqu.C("deleted_at").IsNull(),
	))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// UpdateUserRole changes a user's role.
func (s *Store) UpdateUserRole(ctx context.Context, id, role string) error {
	if err := s.updateUser(ctx, id, goqu.Record{"role": role}); err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	return nil
}

// ApproveUser marks a user as approved.
func (s *Store) ApproveUser(ctx context.Context, id string) error {
	if err := s.updateUser(ctx, id, goqu.Record{"approved": true}); err != nil {
		return fmt.Errorf("approving user: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	if err := s.updateUser(ctx, id, goqu.Record{"password_hash": passwordHash}); err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.updateUser(ctx, id, goqu.Record{"deleted_at": s.timestamp()}); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// CountUsers returns the number of active users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	row, err := queryRow(ctx, s.conn, s.from("users").Select(goqu.COUNT("*")).Where(goqu.C("deleted_at").IsNull()))
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
