package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(db.NewTestDB(t), db.DriverSQLite)
}

func mustCreateUser(t *testing.T, s *Store, email string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Email:        email,
		Name:         email,
		PasswordHash: "hash",
		Role:         model.RoleUser,
		Approved:     true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustCreateProduct(t *testing.T, s *Store, name, category string) *model.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), model.Product{
		Name:            name,
		ProductCategory: category,
		StockCategory:   category,
		Cost:            decimal.RequireFromString("3.50"),
		SageCode:        "S-" + name,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
