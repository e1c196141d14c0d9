package api

import (
	"net/http"

	"github.com/erazemk/stocktaker/internal/conversion"
	"github.com/erazemk/stocktaker/internal/model"
)

// ConversionsHandler exposes the conversion workflow.
type ConversionsHandler struct {
	Service *conversion.Service
}

type completeRequest struct {
	Outputs []model.ConversionOutput `json:"outputs"`
}

// Active handles GET /api/conversions/active.
func (h *ConversionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	active, err := h.Service.Active(r.Context(), session(r))
	if err != nil {
		writeError(w, err, "failed to list conversions")
		return
	}
	jsonResponse(w, http.StatusOK, active)
}

// Get handles GET /api/conversions/{id}.
func (h *ConversionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.Get(r.Context(), session(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "failed to get conversion")
		return
	}
	jsonResponse(w, http.StatusOK, detail)
}

// Start handles POST /api/conversions.
func (h *ConversionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartConversion
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.Start(r.Context(), session(r), req)
	if err != nil {
		writeError(w, err, "failed to start conversion")
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Complete handles POST /api/conversions/{id}/complete.
func (h *ConversionsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.Complete(r.Context(), session(r), r.PathValue("id"), req.Outputs)
	if err != nil {
		writeError(w, err, "failed to complete conversion")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Cancel handles DELETE /api/conversions/{id}.
func (h *ConversionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Cancel(r.Context(), session(r), r.PathValue("id")); err != nil {
		writeError(w, err, "failed to cancel conversion")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "conversion cancelled"})
}
