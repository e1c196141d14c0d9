package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delivery records a product intake from a supplier with its provenance and
// compliance details.
type Delivery struct {
	ID                 string          `json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	DeliveryDate       time.Time       `json:"delivery_date"`
	Product            int64           `json:"product"`
	ProductName        string          `json:"product_name,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	Supplier           string          `json:"supplier"`
	Notes              string          `json:"notes,omitempty"`
	VanTemperature     decimal.Decimal `json:"van_temperature"`
	ProductTemperature decimal.Decimal `json:"product_temperature"`
	DriverName         string          `json:"driver_name"`
	LicensePlate       string          `json:"license_plate"`
	Origin             string          `json:"origin,omitempty"`
	KillDate           *time.Time      `json:"kill_date,omitempty"`
	UseByDate          *time.Time      `json:"use_by_date,omitempty"`
	SlaughterNumber    string          `json:"slaughter_number,omitempty"`
	CutNumber          string          `json:"cut_number,omitempty"`
	RedTractor         bool            `json:"red_tractor"`
	RSPCA              bool            `json:"rspca"`
	OrganicAssured     bool            `json:"organic_assured"`
	BatchCode          int             `json:"batch_code"`
	ReceiptImage       string          `json:"-"`
	HasReceipt         bool            `json:"has_receipt"`
	CreatedBy          string          `json:"created_by"`
}
