package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/catalog"
	"github.com/erazemk/stocktaker/internal/export"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
	"github.com/erazemk/stocktaker/internal/validate"
)

// StockTakesHandler records stock counts.
type StockTakesHandler struct {
	Store    *store.Store
	Exporter export.Exporter
}

type stockTakeRequest struct {
	Date            string                    `json:"date"`
	ProductCategory string                    `json:"product_category"`
	Take            map[int64]decimal.Decimal `json:"take"`
}

// Create handles POST /api/stocktakes. The date defaults to today.
func (h *StockTakesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req stockTakeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validate.Required("product_category", req.ProductCategory); err != nil {
		writeError(w, err, "invalid stock take")
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, err, "invalid stock take")
		return
	}
	if date == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		date = &today
	}

	sess := session(r)
	take, err := h.Store.CreateStockTake(r.Context(), model.StockTake{
		Take:            req.Take,
		Date:            *date,
		ProductCategory: req.ProductCategory,
		CreatedBy:       sess.UserID,
	})
	if err != nil {
		writeError(w, err, "failed to record stock take")
		return
	}

	slog.Info("stock take recorded", "user", sess.Email, "stocktake", take.ID, "category", take.ProductCategory, "products", len(take.Take))
	h.export(r, take, sess.Email)
	jsonResponse(w, http.StatusCreated, take)
}

func (h *StockTakesHandler) export(r *http.Request, take *model.StockTake, user string) {
	if h.Exporter == nil {
		return
	}
	products, err := h.Store.ListProducts(r.Context(), store.ProductFilter{})
	if err != nil {
		slog.Warn("stock take export skipped", "stocktake", take.ID, "error", err)
		return
	}
	if err := h.Exporter.ExportStockTake(r.Context(), take, catalog.Index(products), user); err != nil {
		slog.Warn("stock take export failed", "stocktake", take.ID, "error", err)
	}
}

// List handles GET /api/stocktakes.
func (h *StockTakesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err, "invalid limit")
		return
	}

	takes, err := h.Store.ListStockTakes(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		writeError(w, err, "failed to list stock takes")
		return
	}
	if takes == nil {
		takes = []model.StockTake{}
	}
	jsonResponse(w, http.StatusOK, takes)
}
