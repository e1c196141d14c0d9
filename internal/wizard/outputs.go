package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/erazemk/stocktaker/internal/catalog"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
)

// ErrNoStorageSelector is returned when setting the storage type of a Waste row.
var ErrNoStorageSelector = errors.New("waste has no storage type to choose")

// OutputRow is one output being entered.
type OutputRow struct {
	Product     model.Product
	Quantity    string
	StorageType string
}

// Summary is shown for confirmation before outputs are submitted.
type Summary struct {
	Count   int
	Outputs []model.ConversionOutput
}

func (s Summary) String() string {
	if s.Count == 1 {
		return "Submit 1 output?"
	}
	return fmt.Sprintf("Submit %d outputs?", s.Count)
}

// OutputEditor collects the outputs of one conversion.
type OutputEditor struct {
	gw           Gateway
	conversionID string
	products     []model.Product
	rows         []OutputRow
	picker       *catalog.Picker
	target       int
	logger       *slog.Logger
}

// NewOutputEditor returns an editor for conversion id. The Waste product is
// offered exactly once.
func NewOutputEditor(gw Gateway, conversionID string, products []model.Product, logger *slog.Logger) *OutputEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputEditor{
		gw:           gw,
		conversionID: conversionID,
		products:     catalog.WithWaste(products),
		target:       -1,
		logger:       logger,
	}
}

// Products returns the products the picker offers.
func (e *OutputEditor) Products() []model.Product { return e.products }

// Rows returns a copy of the entered rows.
func (e *OutputEditor) Rows() []OutputRow { return slices.Clone(e.rows) }

// Picker returns the open picker, or nil.
func (e *OutputEditor) Picker() *catalog.Picker { return e.picker }

// Add opens the picker to append a new row.
func (e *OutputEditor) Add() {
	e.openPicker(-1)
}

// Edit opens the picker to replace row i's product.
func (e *OutputEditor) Edit(i int) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	e.openPicker(i)
	return nil
}

func (e *OutputEditor) openPicker(target int) {
	e.picker = catalog.NewPicker(e.products, catalog.DefaultPageSize)
	e.target = target
}

// ClosePicker dismisses the picker without choosing.
func (e *OutputEditor) ClosePicker() {
	e.picker = nil
	e.target = -1
}

// Choose takes the i-th product of the picker's current page. A new row
// starts with an empty quantity and storage type waste.
func (e *OutputEditor) Choose(i int) error {
	if e.picker == nil {
		return fmt.Errorf("choose without picker: %w", ErrInvalidTransition)
	}
	product, err := e.picker.Select(i)
	if err != nil {
		return err
	}

	if e.target < 0 {
		e.rows = append(e.rows, OutputRow{Product: product, StorageType: model.StorageWaste})
	} else {
		row := &e.rows[e.target]
		row.Product = product
		if product.IsWaste() {
			row.StorageType = model.StorageWaste
		}
	}
	e.ClosePicker()
	return nil
}

// SetQuantity replaces row i's quantity text. It is validated on Review.
func (e *OutputEditor) SetQuantity(i int, text string) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	e.rows[i].Quantity = text
	return nil
}

// SetStorage selects rounds, freezer or fridge for an ordinary product.
func (e *OutputEditor) SetStorage(i int, storageType string) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	if e.rows[i].Product.IsWaste() {
		return ErrNoStorageSelector
	}
	if !slices.Contains(model.StorageTypes, storageType) {
		return validate.Errorf("storage_type", "must be one of rounds, freezer or fridge")
	}
	e.rows[i].StorageType = storageType
	return nil
}

// Remove deletes row i.
func (e *OutputEditor) Remove(i int) error {
	if err := e.checkRow(i); err != nil {
		return err
	}
	e.rows = slices.Delete(e.rows, i, i+1)
	switch {
	case e.target == i:
		e.ClosePicker()
	case e.target > i:
		e.target--
	}
	return nil
}

// Review validates the rows and returns the confirmation summary.
func (e *OutputEditor) Review() (Summary, error) {
	if len(e.rows) == 0 {
		return Summary{}, validate.Errorf("outputs", "add at least one output")
	}

	outputs := make([]model.ConversionOutput, len(e.rows))
	for i, row := range e.rows {
		qty, err := validate.Quantity(fmt.Sprintf("output %d (%s) quantity", i+1, row.Product.Name), row.Quantity)
		if err != nil {
			return Summary{}, err
		}
		storage := row.StorageType
		if row.Product.IsWaste() {
			storage = model.StorageWaste
		}
		outputs[i] = model.ConversionOutput{ProductID: row.Product.ID, Quantity: qty, StorageType: storage}
	}
	return Summary{Count: len(outputs), Outputs: outputs}, nil
}

// Submit re-validates and sends all outputs in one gateway call. Nothing is
// sent when validation fails.
func (e *OutputEditor) Submit(ctx context.Context) (*model.Conversion, error) {
	summary, err := e.Review()
	if err != nil {
		return nil, err
	}

	c, err := e.gw.CompleteConversion(ctx, e.conversionID, summary.Outputs)
	if err != nil {
		e.logger.Error("completing conversion failed", "conversion", e.conversionID, "error", err)
		return nil, fmt.Errorf("completing conversion: %w", err)
	}

	e.logger.Info("conversion completed", "conversion", e.conversionID, "outputs", summary.Count)
	return c, nil
}

func (e *OutputEditor) checkRow(i int) error {
	if i < 0 || i >= len(e.rows) {
		return fmt.Errorf("no output row %d", i+1)
	}
	return nil
}
