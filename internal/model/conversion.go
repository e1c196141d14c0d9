package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Conversion records one input product being turned into output products.
type Conversion struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	InputProduct   int64      `json:"input_product"`
	OutputProducts []int64    `json:"output_products"`
	Status         string     `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedBy      string     `json:"created_by"`
}

// Conversion statuses.
const (
	ConversionInProgress = "in_progress"
	ConversionCompleted  = "completed"
	ConversionCancelled  = "cancelled"
)

// ConversionItem is a single quantified product movement of a conversion.
type ConversionItem struct {
	ID           int64           `json:"id"`
	ConversionID string          `json:"conversion_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Type         string          `json:"type"`
	StorageType  string          `json:"storage_type,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Conversion item types.
const (
	ItemTypeInput  = "input"
	ItemTypeOutput = "output"
)

// Storage types of output items.
const (
	StorageRounds  = "rounds"
	StorageFreezer = "freezer"
	StorageFridge  = "fridge"
	StorageWaste   = "waste"
)

// StorageTypes lists the storage types selectable for ordinary products.
var StorageTypes = []string{StorageRounds, StorageFreezer, StorageFridge}

// ValidStorageType reports whether s is a known storage type, waste included.
func ValidStorageType(s string) bool {
	switch s {
	case StorageRounds, StorageFreezer, StorageFridge, StorageWaste:
		return true
	}
	return false
}

// ActiveConversion is an in-progress conversion with its input item and the
// resolved input product attached.
type ActiveConversion struct {
	Conversion Conversion     `json:"conversion"`
	Input      ConversionItem `json:"input"`
	Product    Product        `json:"product"`
}

// StartConversion is a request to begin a conversion. ID may be supplied by
// the client so that a retried request does not create a second conversion.
type StartConversion struct {
	ID        string          `json:"id,omitempty"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ConversionOutput is one output row submitted when completing a conversion.
type ConversionOutput struct {
	ProductID   int64           `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	StorageType string          `json:"storage_type"`
}

// ConversionDetail is a conversion with all of its items.
type ConversionDetail struct {
	Conversion Conversion       `json:"conversion"`
	Items      []ConversionItem `json:"items"`
}
