package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/model"
)

// StockTakeRequest records counts for one product category. Date is
// YYYY-MM-DD; empty means today.
type StockTakeRequest struct {
	Date            string                    `json:"date,omitempty"`
	ProductCategory string                    `json:"product_category"`
	Take            map[int64]decimal.Decimal `json:"take"`
}

// SubmitStockTake records a stock take.
func (c *Client) SubmitStockTake(ctx context.Context, req StockTakeRequest) (*model.StockTake, error) {
	var st model.StockTake
	if err := c.do(ctx, http.MethodPost, "/api/stocktakes", req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StockTakes lists stock takes, newest first.
func (c *Client) StockTakes(ctx context.Context, category string, limit int) ([]model.StockTake, error) {
	v := url.Values{}
	if category != "" {
		v.Set("category", category)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/stocktakes"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var takes []model.StockTake
	if err := c.do(ctx, http.MethodGet, path, nil, &takes); err != nil {
		return nil, err
	}
	return takes, nil
}

// DeliveryRequest records a delivery. Dates are YYYY-MM-DD; a zero
// BatchCode is assigned by the server.
type DeliveryRequest struct {
	DeliveryDate       string          `json:"delivery_date,omitempty"`
	Product            int64           `json:"product"`
	Quantity           decimal.Decimal `json:"quantity"`
	Supplier           string          `json:"supplier"`
	Notes              string          `json:"notes,omitempty"`
	VanTemperature     decimal.Decimal `json:"van_temperature"`
	ProductTemperature decimal.Decimal `json:"product_temperature"`
	DriverName         string          `json:"driver_name"`
	LicensePlate       string          `json:"license_plate"`
	Origin             string          `json:"origin"`
	KillDate           string          `json:"kill_date,omitempty"`
	UseByDate          string          `json:"use_by_date,omitempty"`
	SlaughterNumber    string          `json:"slaughter_number,omitempty"`
	CutNumber          string          `json:"cut_number,omitempty"`
	RedTractor         bool            `json:"red_tractor"`
	RSPCA              bool            `json:"rspca"`
	OrganicAssured     bool            `json:"organic_assured"`
	BatchCode          int             `json:"batch_code,omitempty"`
}

// CreateDelivery records a delivery.
func (c *Client) CreateDelivery(ctx context.Context, req DeliveryRequest) (*model.Delivery, error) {
	var d model.Delivery
	if err := c.do(ctx, http.MethodPost, "/api/deliveries", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeliveryQuery filters a delivery listing. Search matches product name,
// supplier, batch code or quantity. A zero Page and PerPage returns every
// match; a Page alone uses the server's page size.
type DeliveryQuery struct {
	Search  string
	Page    int
	PerPage int
}

func (q DeliveryQuery) encode() string {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// DeliveryPage is one page of a delivery listing, newest first.
type DeliveryPage struct {
	Deliveries []model.Delivery `json:"deliveries"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
}

// Deliveries lists deliveries matching q.
func (c *Client) Deliveries(ctx context.Context, q DeliveryQuery) (*DeliveryPage, error) {
	var page DeliveryPage
	if err := c.do(ctx, http.MethodGet, "/api/deliveries"+q.encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// NextBatchCode returns the batch code the next delivery would get.
func (c *Client) NextBatchCode(ctx context.Context) (int, error) {
	var res struct {
		BatchCode int `json:"batch_code"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/deliveries/next-batch-code", nil, &res); err != nil {
		return 0, err
	}
	return res.BatchCode, nil
}
