package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/blob"
	"github.com/erazemk/stocktaker/internal/imaging"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
	"github.com/erazemk/stocktaker/internal/validate"
)

// DeliveriesHandler records product intake.
type DeliveriesHandler struct {
	Store *store.Store
	Blobs blob.Store
}

type deliveryRequest struct {
	DeliveryDate       string              `json:"delivery_date"`
	Product            int64               `json:"product"`
	Quantity           decimal.Decimal     `json:"quantity"`
	Supplier           string              `json:"supplier"`
	Notes              string              `json:"notes"`
	VanTemperature     decimal.NullDecimal `json:"van_temperature"`
	ProductTemperature decimal.NullDecimal `json:"product_temperature"`
	DriverName         string              `json:"driver_name"`
	LicensePlate       string              `json:"license_plate"`
	Origin             string              `json:"origin"`
	KillDate           string              `json:"kill_date"`
	UseByDate          string              `json:"use_by_date"`
	SlaughterNumber    string              `json:"slaughter_number"`
	CutNumber          string              `json:"cut_number"`
	RedTractor         bool                `json:"red_tractor"`
	RSPCA              bool                `json:"rspca"`
	OrganicAssured     bool                `json:"organic_assured"`
	BatchCode          int                 `json:"batch_code"`
}

func (req deliveryRequest) delivery() (model.Delivery, error) {
	if req.Product <= 0 {
		return model.Delivery{}, validate.Errorf("product", "is required")
	}
	if !req.Quantity.IsPositive() {
		return model.Delivery{}, validate.Errorf("quantity", "must be greater than zero")
	}
	for field, v := range map[string]string{
		"supplier":      req.Supplier,
		"driver_name":   req.DriverName,
		"license_plate": req.LicensePlate,
		"origin":        req.Origin,
	} {
		if err := validate.Required(field, v); err != nil {
			return model.Delivery{}, err
		}
	}
	if !req.VanTemperature.Valid {
		return model.Delivery{}, validate.Errorf("van_temperature", "is required")
	}
	if !req.ProductTemperature.Valid {
		return model.Delivery{}, validate.Errorf("product_temperature", "is required")
	}
	if req.BatchCode < 0 {
		return model.Delivery{}, validate.Errorf("batch_code", "must not be negative")
	}

	deliveryDate, err := parseDate("delivery_date", req.DeliveryDate)
	if err != nil {
		return model.Delivery{}, err
	}
	if deliveryDate == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		deliveryDate = &today
	}
	killDate, err := parseDate("kill_date", req.KillDate)
	if err != nil {
		return model.Delivery{}, err
	}
	useByDate, err := parseDate("use_by_date", req.UseByDate)
	if err != nil {
		return model.Delivery{}, err
	}

	return model.Delivery{
		DeliveryDate:       *deliveryDate,
		Product:            req.Product,
		Quantity:           req.Quantity,
		Supplier:           req.Supplier,
		Notes:              req.Notes,
		VanTemperature:     req.VanTemperature.Decimal,
		ProductTemperature: req.ProductTemperature.Decimal,
		DriverName:         req.DriverName,
		LicensePlate:       req.LicensePlate,
		Origin:             req.Origin,
		KillDate:           killDate,
		UseByDate:          useByDate,
		SlaughterNumber:    req.SlaughterNumber,
		CutNumber:          req.CutNumber,
		RedTractor:         req.RedTractor,
		RSPCA:              req.RSPCA,
		OrganicAssured:     req.OrganicAssured,
		BatchCode:          req.BatchCode,
	}, nil
}

// Create handles POST /api/deliveries. A missing batch code is assigned.
func (h *DeliveriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := req.delivery()
	if err != nil {
		writeError(w, err, "invalid delivery")
		return
	}

	sess := session(r)
	d.CreatedBy = sess.UserID
	delivery, err := h.Store.CreateDelivery(r.Context(), d)
	if err != nil {
		writeError(w, err, "failed to record delivery")
		return
	}

	slog.Info("delivery recorded", "user", sess.Email, "delivery", delivery.ID,
		"product", delivery.Product, "quantity", delivery.Quantity.String(), "batch", delivery.BatchCode)
	jsonResponse(w, http.StatusCreated, delivery)
}

// DeliveryPage is one page of a delivery listing.
type DeliveryPage struct {
	Deliveries []model.Delivery `json:"deliveries"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
}

// List handles GET /api/deliveries?q=&page=&per_page=. Without page or
// per_page every match is returned; a page alone uses store.DeliveryPageSize.
func (h *DeliveriesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.DeliveryFilter{Query: r.URL.Query().Get("q")}

	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, err, "invalid page")
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		writeError(w, err, "invalid per_page")
		return
	}
	if page > 0 && perPage == 0 {
		perPage = store.DeliveryPageSize
	}
	page = max(page, 1)
	if perPage > 0 {
		filter.Limit = perPage
		filter.Offset = (page - 1) * perPage
	}

	deliveries, err := h.Store.ListDeliveries(r.Context(), filter)
	if err != nil {
		writeError(w, err, "failed to list deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []model.Delivery{}
	}

	total := len(deliveries)
	if perPage > 0 {
		if total, err = h.Store.CountDeliveries(r.Context(), filter); err != nil {
			writeError(w, err, "failed to count deliveries")
			return
		}
	}

	jsonResponse(w, http.StatusOK, DeliveryPage{Deliveries: deliveries, Total: total, Page: page, PerPage: perPage})
}

// NextBatchCode handles GET /api/deliveries/next-batch-code.
func (h *DeliveriesHandler) NextBatchCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.Store.NextBatchCode(r.Context())
	if err != nil {
		writeError(w, err, "failed to get batch code")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"batch_code": code})
}

// UploadReceipt handles PUT /api/deliveries/{id}/receipt.
func (h *DeliveriesHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	img, ok := readImage(w, r, imaging.ReceiptImage)
	if !ok {
		return
	}

	key := blob.NewKey("receipts", ".jpg")
	if err := h.Blobs.Put(r.Context(), key, img.Data, img.MIME); err != nil {
		writeError(w, err, "failed to save receipt")
		return
	}

	previous, err := h.Store.SetDeliveryReceipt(r.Context(), id, key)
	if err != nil {
		discardBlob(r, h.Blobs, key)
		writeError(w, err, "failed to save receipt")
		return
	}
	if previous != "" {
		discardBlob(r, h.Blobs, previous)
	}

	slog.Info("delivery receipt uploaded", "user", session(r).Email, "delivery", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "receipt uploaded"})
}

// GetReceipt handles GET /api/deliveries/{id}/receipt.
func (h *DeliveriesHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.GetDelivery(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "failed to get receipt")
		return
	}
	if d == nil || !d.HasReceipt {
		jsonError(w, http.StatusNotFound, "no receipt")
		return
	}

	serveBlob(w, r, h.Blobs, d.ReceiptImage)
}
