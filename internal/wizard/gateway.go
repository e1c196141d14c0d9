// Package wizard holds the client side of the conversion workflow: loading
// the active conversions, starting a conversion, and collecting its outputs.
// None of the types here are safe for concurrent use.
package wizard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/erazemk/stocktaker/internal/model"
)

// ErrInvalidTransition is returned when an action does not apply to the
// current state.
var ErrInvalidTransition = errors.New("action not available in this state")

// Gateway is the remote data access the workflow needs. Every call acts on
// behalf of the session the gateway was created for.
type Gateway interface {
	Products(ctx context.Context) ([]model.Product, error)
	ActiveConversions(ctx context.Context) ([]model.ActiveConversion, error)
	StartConversion(ctx context.Context, req model.StartConversion) (*model.Conversion, error)
	CompleteConversion(ctx context.Context, id string, outputs []model.ConversionOutput) (*model.Conversion, error)
}

// Loader fetches the user's in-progress conversions, each already joined
// with its input item and product.
type Loader struct {
	gw     Gateway
	logger *slog.Logger
}

// NewLoader returns a loader. A nil logger uses slog.Default().
func NewLoader(gw Gateway, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{gw: gw, logger: logger}
}

// Fetch returns the active conversions or the gateway's error.
func (l *Loader) Fetch(ctx context.Context) ([]model.ActiveConversion, error) {
	active, err := l.gw.ActiveConversions(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []model.ActiveConversion{}
	}
	return active, nil
}

// Load is Fetch for display: a failure is logged and shows as an empty list.
func (l *Loader) Load(ctx context.Context) []model.ActiveConversion {
	active, err := l.Fetch(ctx)
	if err != nil {
		l.logger.Warn("loading active conversions failed", "error", err)
		return []model.ActiveConversion{}
	}
	return active
}
