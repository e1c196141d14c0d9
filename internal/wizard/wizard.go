package wizard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/stocktaker/internal/catalog"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
)

// State is one step of the start-conversion wizard. It is exactly one of
// Idle, PickingProduct, EnteringQuantity or Submitting.
type State interface {
	step() string
}

// Idle means no conversion is being created.
type Idle struct{}

// PickingProduct means the product picker is open.
type PickingProduct struct {
	Picker *catalog.Picker
}

// EnteringQuantity means a product was chosen and the quantity is being typed.
type EnteringQuantity struct {
	Product  model.Product
	Quantity string

	// requestID is kept after a failed submit so that resubmitting the same
	// quantity cannot create a second conversion.
	requestID string
}

// Submitting means the start request is in flight.
type Submitting struct {
	Product   model.Product
	Quantity  decimal.Decimal
	RequestID string
}

func (Idle) step() string             { return "idle" }
func (PickingProduct) step() string   { return "picking_product" }
func (EnteringQuantity) step() string { return "entering_quantity" }
func (Submitting) step() string       { return "submitting" }

// StepName returns the name of s, e.g. "picking_product".
func StepName(s State) string {
	return s.step()
}

// Wizard walks a user through starting a conversion.
type Wizard struct {
	gw       Gateway
	loader   *Loader
	products []model.Product
	state    State
	active   []model.ActiveConversion
	logger   *slog.Logger
}

// New returns an idle wizard offering products as inputs. The Waste product
// is never offered as an input.
func New(gw Gateway, products []model.Product, logger *slog.Logger) *Wizard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wizard{
		gw:       gw,
		loader:   NewLoader(gw, logger),
		products: catalog.WithoutWaste(products),
		state:    Idle{},
		active:   []model.ActiveConversion{},
		logger:   logger,
	}
}

// State returns the current step.
func (w *Wizard) State() State { return w.state }

// Active returns the last loaded list of active conversions.
func (w *Wizard) Active() []model.ActiveConversion { return w.active }

// Refresh reloads the active conversions.
func (w *Wizard) Refresh(ctx context.Context) []model.ActiveConversion {
	w.active = w.loader.Load(ctx)
	return w.active
}

// Begin opens the product picker.
func (w *Wizard) Begin() error {
	if _, ok := w.state.(Idle); !ok {
		return w.invalid("begin")
	}
	w.state = PickingProduct{Picker: catalog.NewPicker(w.products, catalog.DefaultPageSize)}
	return nil
}

// Picker returns the open picker, or nil.
func (w *Wizard) Picker() *catalog.Picker {
	if s, ok := w.state.(PickingProduct); ok {
		return s.Picker
	}
	return nil
}

// Search filters the picker.
func (w *Wizard) Search(query string) error {
	p := w.Picker()
	if p == nil {
		return w.invalid("search")
	}
	p.Search(query)
	return nil
}

// NextPage moves the picker forward and reports whether it moved.
func (w *Wizard) NextPage() (bool, error) {
	p := w.Picker()
	if p == nil {
		return false, w.invalid("next page")
	}
	return p.Next(), nil
}

// PrevPage moves the picker back and reports whether it moved.
func (w *Wizard) PrevPage() (bool, error) {
	p := w.Picker()
	if p == nil {
		return false, w.invalid("previous page")
	}
	return p.Prev(), nil
}

// Choose picks the i-th product of the picker's current page.
func (w *Wizard) Choose(i int) error {
	p := w.Picker()
	if p == nil {
		return w.invalid("choose")
	}
	product, err := p.Select(i)
	if err != nil {
		return err
	}
	w.state = EnteringQuantity{Product: product}
	return nil
}

// SetQuantity replaces the quantity text. Changing it forgets the request id
// of an earlier failed submit.
func (w *Wizard) SetQuantity(text string) error {
	s, ok := w.state.(EnteringQuantity)
	if !ok {
		return w.invalid("set quantity")
	}
	if s.Quantity != text {
		s.requestID = ""
	}
	s.Quantity = text
	w.state = s
	return nil
}

// Submit validates the quantity and starts the conversion. An invalid
// quantity returns a validation error and leaves the state untouched. A
// gateway failure returns to EnteringQuantity with the product and quantity
// kept. On success the active list is reloaded and the wizard is idle again.
func (w *Wizard) Submit(ctx context.Context) (*model.Conversion, error) {
	s, ok := w.state.(EnteringQuantity)
	if !ok {
		return nil, w.invalid("submit")
	}

	qty, err := validate.Quantity("quantity", s.Quantity)
	if err != nil {
		return nil, err
	}

	if s.requestID == "" {
		s.requestID = uuid.NewString()
	}
	w.state = Submitting{Product: s.Product, Quantity: qty, RequestID: s.requestID}

	c, err := w.gw.StartConversion(ctx, model.StartConversion{
		ID:        s.requestID,
		ProductID: s.Product.ID,
		Quantity:  qty,
	})
	if err != nil {
		w.state = s
		w.logger.Error("starting conversion failed", "product", s.Product.ID, "error", err)
		return nil, fmt.Errorf("starting conversion: %w", err)
	}

	w.logger.Info("conversion started", "conversion", c.ID, "product", s.Product.ID, "quantity", qty.String())
	w.state = Idle{}
	w.Refresh(ctx)
	return c, nil
}

// Cancel discards everything entered and returns to Idle.
func (w *Wizard) Cancel() {
	w.state = Idle{}
}

func (w *Wizard) invalid(action string) error {
	return fmt.Errorf("%s while %s: %w", action, w.state.step(), ErrInvalidTransition)
}
