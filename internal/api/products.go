package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/blob"
	"github.com/erazemk/stocktaker/internal/imaging"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
	"github.com/erazemk/stocktaker/internal/validate"
)

// ProductsHandler handles the product catalog endpoints.
type ProductsHandler struct {
	Store *store.Store
	Blobs blob.Store
}

type productRequest struct {
	Name            string          `json:"name"`
	ProductCategory string          `json:"product_category"`
	StockCategory   string          `json:"stock_category"`
	Cost            decimal.Decimal `json:"cost"`
	ProductValue    decimal.Decimal `json:"product_value"`
	SageCode        string          `json:"sage_code"`
	SoldAs          string          `json:"sold_as"`
	Supplier        string          `json:"supplier"`
	StockCount      decimal.Decimal `json:"stock_count"`
}

func (req productRequest) product() (model.Product, error) {
	if err := validate.Required("name", req.Name); err != nil {
		return model.Product{}, err
	}
	if err := validate.Required("product_category", req.ProductCategory); err != nil {
		return model.Product{}, err
	}
	if err := validate.Required("stock_category", req.StockCategory); err != nil {
		return model.Product{}, err
	}
	if req.Cost.IsNegative() {
		return model.Product{}, validate.Errorf("cost", "must not be negative")
	}
	if req.ProductValue.IsNegative() {
		return model.Product{}, validate.Errorf("product_value", "must not be negative")
	}
	if req.StockCount.IsNegative() {
		return model.Product{}, validate.Errorf("stock_count", "must not be negative")
	}
	return model.Product{
		Name:            req.Name,
		ProductCategory: req.ProductCategory,
		StockCategory:   req.StockCategory,
		Cost:            req.Cost,
		ProductValue:    req.ProductValue,
		SageCode:        req.SageCode,
		SoldAs:          req.SoldAs,
		Supplier:        req.Supplier,
		StockCount:      req.StockCount,
	}, nil
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []model.Product `json:"products"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
}

// List handles GET /api/products. Without per_page every match is returned.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProductFilter{
		StockCategory:   q.Get("stock_category"),
		ProductCategory: q.Get("product_category"),
		Query:           q.Get("q"),
	}

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
	page = max(page, 1)
	if perPage > 0 {
		filter.Limit = perPage
		filter.Offset = (page - 1) * perPage
	}

	products, err := h.Store.ListProducts(r.Context(), filter)
	if err != nil {
		writeError(w, err, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	total := len(products)
	if perPage > 0 {
		if total, err = h.Store.CountProducts(r.Context(), filter); err != nil {
			writeError(w, err, "failed to count products")
			return
		}
	}

	jsonResponse(w, http.StatusOK, ProductPage{Products: products, Total: total, Page: page, PerPage: perPage})
}

// Create handles POST /api/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := req.product()
	if err != nil {
		writeError(w, err, "invalid product")
		return
	}

	product, err := h.Store.CreateProduct(r.Context(), p)
	if err != nil {
		writeError(w, err, "failed to create product")
		return
	}

	slog.Info("product created", "user", session(r).Email, "product", product.ID, "name", product.Name)
	jsonResponse(w, http.StatusCreated, product)
}

// Get handles GET /api/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get product")
		return
	}
	if product == nil || product.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}

	jsonResponse(w, http.StatusOK, product)
}

// Update handles PUT /api/products/{id}.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := req.product()
	if err != nil {
		writeError(w, err, "invalid product")
		return
	}

	product, err := h.Store.UpdateProduct(r.Context(), id, p)
	if err != nil {
		writeError(w, err, "failed to update product")
		return
	}

	slog.Info("product updated", "user", session(r).Email, "product", id)
	jsonResponse(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err, "failed to delete product")
		return
	}

	slog.Info("product deleted", "user", session(r).Email, "product", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// UploadImage handles PUT /api/products/{id}/image.
func (h *ProductsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	img, ok := readImage(w, r, imaging.ProductImage)
	if !ok {
		return
	}

	key := blob.NewKey("products", ".jpg")
	if err := h.Blobs.Put(r.Context(), key, img.Data, img.MIME); err != nil {
		writeError(w, err, "failed to save image")
		return
	}

	previous, err := h.Store.SetProductImage(r.Context(), id, key)
	if err != nil {
		discardBlob(r, h.Blobs, key)
		writeError(w, err, "failed to save image")
		return
	}
	if previous != "" {
		discardBlob(r, h.Blobs, previous)
	}

	slog.Info("product image uploaded", "user", session(r).Email, "product", id, "width", img.Width, "height", img.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/products/{id}/image.
func (h *ProductsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get image")
		return
	}
	if product == nil || !product.HasImage {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	serveBlob(w, r, h.Blobs, product.ImageKey)
}

// readImage reads and normalises the "image" field of a multipart upload.
// It writes the error response itself and reports false on failure.
func readImage(w http.ResponseWriter, r *http.Request, profile imaging.Profile) (*imaging.Result, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return nil, false
	}
	defer file.Close()

	img, err := imaging.Process(file, profile)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			jsonError(w, http.StatusBadRequest, err.Error())
		} else {
			jsonError(w, http.StatusBadRequest, "invalid image")
		}
		return nil, false
	}
	return img, true
}

func serveBlob(w http.ResponseWriter, r *http.Request, blobs blob.Store, key string) {
	obj, err := blobs.Get(r.Context(), key)
	if err != nil {
		writeError(w, err, "failed to get image")
		return
	}

	w.Header().Set("Content-Type", obj.MIME)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(obj.Data)
}

func discardBlob(r *http.Request, blobs blob.Store, key string) {
	if err := blobs.Delete(r.Context(), key); err != nil {
		slog.Warn("failed to delete blob", "key", key, "error", err)
	}
}
