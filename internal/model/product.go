package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry.
type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	ProductCategory string          `json:"product_category"`
	StockCategory   string          `json:"stock_category"`
	Cost            decimal.Decimal `json:"cost"`
	ProductValue    decimal.Decimal `json:"product_value"`
	SageCode        string          `json:"sage_code"`
	SoldAs          string          `json:"sold_as,omitempty"`
	Supplier        string          `json:"supplier,omitempty"`
	StockCount      decimal.Decimal `json:"stock_count"`
	ImageKey        string          `json:"-"`
	HasImage        bool            `json:"has_image"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
}

// WasteProductID identifies the synthetic Waste product. It is never stored
// in the products table.
const WasteProductID int64 = -1

// WasteProduct returns the synthetic product used for disposal outputs.
func WasteProduct() Product {
	return Product{
		ID:              WasteProductID,
		Name:            "Waste",
		ProductCategory: "waste",
		StockCategory:   "waste",
		SageCode:        "waste",
	}
}

// IsWaste reports whether the product is the synthetic Waste product.
func (p Product) IsWaste() bool {
	return p.ID == WasteProductID
}
