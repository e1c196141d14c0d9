package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockTake is a batch of counted quantities for one product category.
type StockTake struct {
	ID              int64                     `json:"id"`
	Take            map[int64]decimal.Decimal `json:"take"`
	Date            time.Time                 `json:"date"`
	ProductCategory string                    `json:"product_category"`
	CreatedBy       string                    `json:"created_by"`
	CreatedAt       time.Time                 `json:"created_at"`
}
