package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/stocktaker/internal/auth"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
	"github.com/erazemk/stocktaker/internal/validate"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

func (m *MockStore) GetConversion(ctx context.Context, id string) (*model.Conversion, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.Conversion)
	return c, args.Error(1)
}

func (m *MockStore) ListConversionItems(ctx context.Context, conversionID string) ([]model.ConversionItem, error) {
	args := m.Called(ctx, conversionID)
	items, _ := args.Get(0).([]model.ConversionItem)
	return items, args.Error(1)
}

func (m *MockStore) ListActiveConversions(ctx context.Context, userID string) ([]model.ActiveConversion, error) {
	args := m.Called(ctx, userID)
	active, _ := args.Get(0).([]model.ActiveConversion)
	return active, args.Error(1)
}

func (m *MockStore) StartConversion(ctx context.Context, userID string, req model.StartConversion) (*model.Conversion, error) {
	args := m.Called(ctx, userID, req)
	c, _ := args.Get(0).(*model.Conversion)
	return c, args.Error(1)
}

func (m *MockStore) CompleteConversion(ctx context.Context, id, userID string, outputs []model.ConversionOutput) (*model.Conversion, error) {
	args := m.Called(ctx, id, userID, outputs)
	c, _ := args.Get(0).(*model.Conversion)
	return c, args.Error(1)
}

func (m *MockStore) CancelConversion(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

var (
	ctx      = context.Background()
	approved = auth.Session{UserID: "u1", Email: "u1@example.com", Role: model.RoleUser, Approved: true}
	pending  = auth.Session{UserID: "u2", Email: "u2@example.com", Role: model.RoleUser}
)

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStart(t *testing.T) {
	st := new(MockStore)
	svc := NewService(st, nil)

	req := model.StartConversion{ProductID: 42, Quantity: qty("5")}
	st.On("GetProduct", ctx, int64(42)).Return(&model.Product{ID: 42, Name: "Beef Side"}, nil).Once()
	st.On("StartConversion", ctx, "u1", req).Return(&model.Conversion{
		ID: "c1", InputProduct: 42, Status: model.ConversionInProgress, CreatedBy: "u1",
	}, nil).Once()

	c, err := svc.Start(ctx, approved, req)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, int64(42), c.InputProduct)
	assert.Equal(t, "u1", c.CreatedBy)
	assert.Equal(t, model.ConversionInProgress, c.Status)
	st.AssertExpectations(t)
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		req  model.StartConversion
	}{
		{"zero quantity", model.StartConversion{ProductID: 42, Quantity: qty("0")}},
		{"negative quantity", model.StartConversion{ProductID: 42, Quantity: qty("-1")}},
		{"waste input", model.StartConversion{ProductID: model.WasteProductID, Quantity: qty("1")}},
		{"bad id", model.StartConversion{ID: "not-a-uuid", ProductID: 42, Quantity: qty("1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := new(MockStore)
			_, err := NewService(st, nil).Start(ctx, approved, tt.req)
			assert.ErrorIs(t, err, validate.ErrInvalid)
			st.AssertNotCalled(t, "StartConversion", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestStartUnknownProduct(t *testing.T) {
	st := new(MockStore)
	st.On("GetProduct", ctx, int64(7)).Return(nil, nil).Once()

	_, err := NewService(st, nil).Start(ctx, approved, model.StartConversion{ProductID: 7, Quantity: qty("1")})
	assert.ErrorIs(t, err, validate.ErrInvalid)
	st.AssertNotCalled(t, "StartConversion", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnapprovedSessionIsRejected(t *testing.T) {
	st := new(MockStore)
	svc := NewService(st, nil)

	_, err := svc.Active(ctx, pending)
	assert.ErrorIs(t, err, auth.ErrNotApproved)
	_, err = svc.Start(ctx, pending, model.StartConversion{ProductID: 1, Quantity: qty("1")})
	assert.ErrorIs(t, err, auth.ErrNotApproved)
	_, err = svc.Complete(ctx, pending, "c1", []model.ConversionOutput{{ProductID: 1, Quantity: qty("1"), StorageType: model.StorageFridge}})
	assert.ErrorIs(t, err, auth.ErrNotApproved)
	assert.ErrorIs(t, svc.Cancel(ctx, pending, "c1"), auth.ErrNotApproved)

	st.AssertExpectations(t)
}

func TestCompleteNormalizesWasteStorage(t *testing.T) {
	st := new(MockStore)
	svc := NewService(st, nil)

	outputs := []model.ConversionOutput{
		{ProductID: 7, Quantity: qty("2.5"), StorageType: model.StorageRounds},
		{ProductID: model.WasteProductID, Quantity: qty("1")},
	}
	want := []model.ConversionOutput{
		{ProductID: 7, Quantity: qty("2.5"), StorageType: model.StorageRounds},
		{ProductID: model.WasteProductID, Quantity: qty("1"), StorageType: model.StorageWaste},
	}
	now := time.Now()

	st.On("GetProduct", ctx, int64(7)).Return(&model.Product{ID: 7}, nil).Once()
	st.On("CompleteConversion", ctx, "c1", "u1", want).Return(&model.Conversion{
		ID: "c1", OutputProducts: []int64{7, -1}, CompletedAt: &now, Status: model.ConversionCompleted,
	}, nil).Once()

	c, err := svc.Complete(ctx, approved, "c1", outputs)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, -1}, c.OutputProducts)
	assert.NotNil(t, c.CompletedAt)
	st.AssertExpectations(t)
}

func TestCompleteValidation(t *testing.T) {
	tests := []struct {
		name    string
		outputs []model.ConversionOutput
	}{
		{"empty", nil},
		{"zero quantity", []model.ConversionOutput{{ProductID: 7, Quantity: qty("0"), StorageType: model.StorageFridge}}},
		{"unknown storage", []model.ConversionOutput{{ProductID: 7, Quantity: qty("1"), StorageType: "shelf"}}},
		{"missing storage", []model.ConversionOutput{{ProductID: 7, Quantity: qty("1")}}},
		{"waste in freezer", []model.ConversionOutput{{ProductID: model.WasteProductID, Quantity: qty("1"), StorageType: model.StorageFreezer}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := new(MockStore)
			_, err := NewService(st, nil).Complete(ctx, approved, "c1", tt.outputs)
			assert.ErrorIs(t, err, validate.ErrInvalid)
			st.AssertNotCalled(t, "CompleteConversion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCompletePropagatesStoreErrors(t *testing.T) {
	st := new(MockStore)
	st.On("GetProduct", ctx, int64(7)).Return(&model.Product{ID: 7}, nil)
	st.On("CompleteConversion", ctx, "c1", "u1", mock.Anything).Return(nil, store.ErrConflict).Once()

	_, err := NewService(st, nil).Complete(ctx, approved, "c1", []model.ConversionOutput{{ProductID: 7, Quantity: qty("1"), StorageType: model.StorageFridge}})
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestGetHidesOtherUsersConversions(t *testing.T) {
	st := new(MockStore)
	st.On("GetConversion", ctx, "c9").Return(&model.Conversion{ID: "c9", CreatedBy: "someone-else"}, nil)
	st.On("ListConversionItems", ctx, "c9").Return([]model.ConversionItem{{ID: 1, Type: model.ItemTypeInput}}, nil)
	svc := NewService(st, nil)

	_, err := svc.Get(ctx, approved, "c9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	manager := approved
	manager.Role = model.RoleManager
	detail, err := svc.Get(ctx, manager, "c9")
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)
}

func TestActiveNeverReturnsNil(t *testing.T) {
	st := new(MockStore)
	st.On("ListActiveConversions", ctx, "u1").Return(nil, nil).Once()

	active, err := NewService(st, nil).Active(ctx, approved)
	require.NoError(t, err)
	assert.NotNil(t, active)
	assert.Empty(t, active)
}

func TestCancel(t *testing.T) {
	st := new(MockStore)
	st.On("CancelConversion", ctx, "c1", "u1").Return(nil).Once()

	require.NoError(t, NewService(st, nil).Cancel(ctx, approved, "c1"))
	st.AssertExpectations(t)
}
