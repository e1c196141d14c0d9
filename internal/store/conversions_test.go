package store

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/validate"
)

func TestStartConversionCreatesInputItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")

	c, err := s.StartConversion(ctx, u.ID, model.StartConversion{ProductID: p.ID, Quantity: dec("5")})
	if err != nil {
		t.Fatalf("StartConversion: %v", err)
	}
	if c.InputProduct != p.ID || c.CreatedBy != u.ID || c.Status != model.ConversionInProgress {
		t.Errorf("unexpected conversion %+v", c)
	}
	if c.OutputProducts != nil || c.CompletedAt != nil {
		t.Error("expected no outputs before completion")
	}

	items, err := s.ListConversionItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListConversionItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one item, got %d", len(items))
	}
	in := items[0]
	if in.Type != model.ItemTypeInput || in.ProductID != p.ID || !in.Quantity.Equal(dec("5")) {
		t.Errorf("unexpected input item %+v", in)
	}
}

func TestStartConversionIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")
	req := model.StartConversion{ID: "c1", ProductID: p.ID, Quantity: dec("5")}

	first, err := s.StartConversion(ctx, u.ID, req)
	if err != nil {
		t.Fatalf("first StartConversion: %v", err)
	}
	second, err := s.StartConversion(ctx, u.ID, req)
	if err != nil {
		t.Fatalf("retried StartConversion: %v", err)
	}
	if first.ID != "c1" || second.ID != "c1" {
		t.Errorf("expected id c1, got %q and %q", first.ID, second.ID)
	}

	items, _ := s.ListConversionItems(ctx, "c1")
	if len(items) != 1 {
		t.Errorf("expected retry not to add items, got %d", len(items))
	}

	other := mustCreateUser(t, s, "u2@example.com")
	if _, err := s.StartConversion(ctx, other.ID, req); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for another user's id, got %v", err)
	}
}

func TestStartConversionRetryWithOtherQuantity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")
	if _, err := s.StartConversion(ctx, u.ID, model.StartConversion{ID: "c1", ProductID: p.ID, Quantity: dec("5")}); err != nil {
		t.Fatalf("StartConversion: %v", err)
	}

	// 5.000 is the same amount written differently.
	if _, err := s.StartConversion(ctx, u.ID, model.StartConversion{ID: "c1", ProductID: p.ID, Quantity: dec("5.000")}); err != nil {
		t.Errorf("expected equal quantity to be a retry, got %v", err)
	}

	_, err := s.StartConversion(ctx, u.ID, model.StartConversion{ID: "c1", ProductID: p.ID, Quantity: dec("7")})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	items, _ := s.ListConversionItems(ctx, "c1")
	if len(items) != 1 || !items[0].Quantity.Equal(dec("5")) {
		t.Errorf("expected the stored input to stay at 5, got %+v", items)
	}
}

func TestStartConversionUnknownProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")

	_, err := s.StartConversion(ctx, u.ID, model.StartConversion{ProductID: 42, Quantity: dec("1")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	active, _ := s.ListActiveConversions(ctx, u.ID)
	if len(active) != 0 {
		t.Errorf("expected nothing persisted, got %d conversions", len(active))
	}
}

func TestStartConversionRejectsNonPositiveQuantity(t *testing.T) {
	s := newTestStore(t)
	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")

	_, err := s.StartConversion(context.Background(), u.ID, model.StartConversion{ProductID: p.ID, Quantity: dec("0")})
	if !errors.Is(err, validate.ErrInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListActiveConversions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1 := mustCreateUser(t, s, "u1@example.com")
	u2 := mustCreateUser(t, s, "u2@example.com")
	beef := mustCreateProduct(t, s, "Beef Side", "beef")
	pork := mustCreateProduct(t, s, "Pork Side", "pork")

	a, _ := s.StartConversion(ctx, u1.ID, model.StartConversion{ProductID: beef.ID, Quantity: dec("5")})
	b, _ := s.StartConversion(ctx, u1.ID, model.StartConversion{ProductID: pork.ID, Quantity: dec("2.5")})
	s.StartConversion(ctx, u2.ID, model.StartConversion{ProductID: beef.ID, Quantity: dec("1")})
	done, _ := s.StartConversion(ctx, u1.ID, model.StartConversion{ProductID: beef.ID, Quantity: dec("1")})
	s.CompleteConversion(ctx, done.ID, u1.ID, []model.ConversionOutput{{ProductID: pork.ID, Quantity: dec("1"), StorageType: model.StorageFridge}})

	active, err := s.ListActiveConversions(ctx, u1.ID)
	if err != nil {
		t.Fatalf("ListActiveConversions: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active conversions, got %d", len(active))
	}

	byID := map[string]model.ActiveConversion{}
	for _, ac := range active {
		byID[ac.Conversion.ID] = ac
		if ac.Input.ConversionID != ac.Conversion.ID {
			t.Errorf("input item %d attached to wrong conversion", ac.Input.ID)
		}
		if ac.Product.ID != ac.Conversion.InputProduct {
			t.Errorf("product %d attached to conversion with input %d", ac.Product.ID, ac.Conversion.InputProduct)
		}
	}
	if byID[a.ID].Product.Name != "Beef Side" || !byID[a.ID].Input.Quantity.Equal(dec("5")) {
		t.Errorf("unexpected view for %s: %+v", a.ID, byID[a.ID])
	}
	if byID[b.ID].Product.Name != "Pork Side" || !byID[b.ID].Input.Quantity.Equal(dec("2.5")) {
		t.Errorf("unexpected view for %s: %+v", b.ID, byID[b.ID])
	}
}

func TestCompleteConversion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	in := mustCreateProduct(t, s, "Beef Side", "beef")
	out := mustCreateProduct(t, s, "Beef Rounds", "beef")
	c, _ := s.StartConversion(ctx, u.ID, model.StartConversion{ID: "c1", ProductID: in.ID, Quantity: dec("5")})

	outputs := []model.ConversionOutput{
		{ProductID: out.ID, Quantity: dec("2.5"), StorageType: model.StorageRounds},
		{ProductID: model.WasteProductID, Quantity: dec("1"), StorageType: model.StorageWaste},
	}
	done, err := s.CompleteConversion(ctx, c.ID, u.ID, outputs)
	if err != nil {
		t.Fatalf("CompleteConversion: %v", err)
	}
	if done.Status != model.ConversionCompleted || done.CompletedAt == nil {
		t.Errorf("expected completed conversion, got %+v", done)
	}

	stored, _ := s.GetConversion(ctx, c.ID)
	if !slices.Equal(stored.OutputProducts, []int64{out.ID, model.WasteProductID}) {
		t.Errorf("unexpected output_products %v", stored.OutputProducts)
	}
	if stored.CompletedAt == nil {
		t.Error("expected completed_at to be persisted")
	}

	items, _ := s.ListConversionItems(ctx, c.ID)
	var outs []model.ConversionItem
	for _, it := range items {
		if it.Type == model.ItemTypeOutput {
			outs = append(outs, it)
		}
	}
	if len(outs) != 2 {
		t.Fatalf("expected 2 output items, got %d", len(outs))
	}
	if outs[0].StorageType != model.StorageRounds || !outs[0].Quantity.Equal(dec("2.5")) {
		t.Errorf("unexpected first output %+v", outs[0])
	}
	if outs[1].ProductID != model.WasteProductID || outs[1].StorageType != model.StorageWaste {
		t.Errorf("unexpected second output %+v", outs[1])
	}

	active, _ := s.ListActiveConversions(ctx, u.ID)
	if len(active) != 0 {
		t.Errorf("expected completed conversion to leave the active list, got %d", len(active))
	}
}

func TestCompleteConversionRetryAndConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")
	c, _ := s.StartConversion(ctx, u.ID, model.StartConversion{ProductID: p.ID, Quantity: dec("5")})
	outputs := []model.ConversionOutput{{ProductID: p.ID, Quantity: dec("4"), StorageType: model.StorageFreezer}}

	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, outputs); err != nil {
		t.Fatalf("CompleteConversion: %v", err)
	}
	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, outputs); err != nil {
		t.Fatalf("repeated CompleteConversion: %v", err)
	}
	items, _ := s.ListConversionItems(ctx, c.ID)
	if len(items) != 2 {
		t.Errorf("expected repeat not to add items, got %d", len(items))
	}

	different := []model.ConversionOutput{{ProductID: model.WasteProductID, Quantity: dec("4"), StorageType: model.StorageWaste}}
	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, different); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestCompleteConversionRepeatComparesOutputs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")
	mince := mustCreateProduct(t, s, "Mince", "beef")
	c, _ := s.StartConversion(ctx, u.ID, model.StartConversion{ProductID: p.ID, Quantity: dec("5")})
	outputs := []model.ConversionOutput{
		{ProductID: mince.ID, Quantity: dec("3"), StorageType: model.StorageFridge},
		{ProductID: model.WasteProductID, Quantity: dec("1.5"), StorageType: model.StorageWaste},
	}
	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, outputs); err != nil {
		t.Fatalf("CompleteConversion: %v", err)
	}

	same := []model.ConversionOutput{
		{ProductID: mince.ID, Quantity: dec("3.0"), StorageType: model.StorageFridge},
		{ProductID: model.WasteProductID, Quantity: dec("1.50"), StorageType: model.StorageWaste},
	}
	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, same); err != nil {
		t.Errorf("expected equal outputs to be a retry, got %v", err)
	}

	tests := []struct {
		name    string
		outputs []model.ConversionOutput
	}{
		{"quantity", []model.ConversionOutput{
			{ProductID: mince.ID, Quantity: dec("4"), StorageType: model.StorageFridge},
			{ProductID: model.WasteProductID, Quantity: dec("1.5"), StorageType: model.StorageWaste},
		}},
		{"storage", []model.ConversionOutput{
			{ProductID: mince.ID, Quantity: dec("3"), StorageType: model.StorageFreezer},
			{ProductID: model.WasteProductID, Quantity: dec("1.5"), StorageType: model.StorageWaste},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CompleteConversion(ctx, c.ID, u.ID, tt.outputs); !errors.Is(err, ErrConflict) {
				t.Errorf("expected ErrConflict, got %v", err)
			}
		})
	}

	items, _ := s.ListConversionItems(ctx, c.ID)
	if len(items) != 3 {
		t.Fatalf("expected input and two outputs, got %d items", len(items))
	}
	if items[1].StorageType != model.StorageFridge || !items[1].Quantity.Equal(dec("3")) {
		t.Errorf("expected the stored outputs to be unchanged, got %+v", items[1])
	}
}

func TestCompleteConversionErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	other := mustCreateUser(t, s, "u2@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")
	c, _ := s.StartConversion(ctx, u.ID, model.StartConversion{ProductID: p.ID, Quantity: dec("5")})
	outputs := []model.ConversionOutput{{ProductID: p.ID, Quantity: dec("1"), StorageType: model.StorageFridge}}

	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, nil); !errors.Is(err, validate.ErrInvalid) {
		t.Errorf("expected validation error for empty outputs, got %v", err)
	}
	if _, err := s.CompleteConversion(ctx, "missing", u.ID, outputs); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
	if _, err := s.CompleteConversion(ctx, c.ID, other.ID, outputs); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's conversion, got %v", err)
	}

	if err := s.CancelConversion(ctx, c.ID, u.ID); err != nil {
		t.Fatalf("CancelConversion: %v", err)
	}
	if _, err := s.CompleteConversion(ctx, c.ID, u.ID, outputs); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict completing a cancelled conversion, got %v", err)
	}
}

func TestCancelConversionKeepsItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "u1@example.com")
	p := mustCreateProduct(t, s, "Beef Side", "beef")
	c, _ := s.StartConversion(ctx, u.ID, model.StartConversion{ProductID: p.ID, Quantity: dec("5")})

	if err := s.CancelConversion(ctx, c.ID, u.ID); err != nil {
		t.Fatalf("CancelConversion: %v", err)
	}

	got, _ := s.GetConversion(ctx, c.ID)
	if got.Status != model.ConversionCancelled {
		t.Errorf("expected cancelled, got %q", got.Status)
	}
	items, _ := s.ListConversionItems(ctx, c.ID)
	if len(items) != 1 {
		t.Errorf("expected input item to be kept, got %d items", len(items))
	}

	if err := s.CancelConversion(ctx, c.ID, u.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict cancelling twice, got %v", err)
	}
	if err := s.CancelConversion(ctx, "missing", u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
