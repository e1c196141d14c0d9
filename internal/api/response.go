package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/stocktaker/internal/auth"
	"github.com/erazemk/stocktaker/internal/blob"
	"github.com/erazemk/stocktaker/internal/imaging"
	"github.com/erazemk/stocktaker/internal/store"
	"github.com/erazemk/stocktaker/internal/validate"
)

// dateLayout is the wire format of calendar dates.
const dateLayout = "2006-01-02"

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as fallback with a 500.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotApproved):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		jsonError(w, http.StatusConflict, err.Error())
	default:
		slog.Error(fallback, "error", err)
		jsonError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, validate.Errorf(name, "must be a non-negative integer")
	}
	return n, nil
}

// parseDate parses an optional date, returning nil for blank input.
func parseDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, validate.Errorf(field, "must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}
