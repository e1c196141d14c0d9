// Package conversion implements the server side of the conversion workflow:
// request validation on top of the transactional store operations.
package conversion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/erazemk/stocktaker/internal/auth"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
	"github.com/erazemk/stocktaker/internal/validate"
)

// Store is the persistence the service needs.
type Store interface {
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetConversion(ctx context.Context, id string) (*model.Conversion, error)
	ListConversionItems(ctx context.Context, conversionID string) ([]model.ConversionItem, error)
	ListActiveConversions(ctx context.Context, userID string) ([]model.ActiveConversion, error)
	StartConversion(ctx context.Context, userID string, req model.StartConversion) (*model.Conversion, error)
	CompleteConversion(ctx context.Context, id, userID string, outputs []model.ConversionOutput) (*model.Conversion, error)
	CancelConversion(ctx context.Context, id, userID string) error
}

// Service runs conversion operations on behalf of a session.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService returns a service backed by st. A nil logger uses slog.Default().
func NewService(st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// Active returns the session user's in-progress conversions.
func (s *Service) Active(ctx context.Context, sess auth.Session) ([]model.ActiveConversion, error) {
	if err := sess.RequireApproved(); err != nil {
		return nil, err
	}
	active, err := s.store.ListActiveConversions(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []model.ActiveConversion{}
	}
	return active, nil
}

// Get returns a conversion with its items. Users see their own conversions;
// managers see all of them.
func (s *Service) Get(ctx context.Context, sess auth.Session, id string) (*model.ConversionDetail, error) {
	if err := sess.RequireApproved(); err != nil {
		return nil, err
	}
	c, err := s.store.GetConversion(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || (c.CreatedBy != sess.UserID && !sess.HasRole(model.RoleManager)) {
		return nil, fmt.Errorf("conversion %s: %w", id, store.ErrNotFound)
	}
	items, err := s.store.ListConversionItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ConversionItem{}
	}
	return &model.ConversionDetail{Conversion: *c, Items: items}, nil
}

// Start begins a conversion of req.ProductID.
func (s *Service) Start(ctx context.Context, sess auth.Session, req model.StartConversion) (*model.Conversion, error) {
	if err := sess.RequireApproved(); err != nil {
		return nil, err
	}
	if req.ID != "" {
		if _, err := uuid.Parse(req.ID); err != nil {
			return nil, validate.Errorf("id", "must be a UUID")
		}
	}
	if req.ProductID == model.WasteProductID {
		return nil, validate.Errorf("product_id", "waste cannot be converted")
	}
	if !req.Quantity.IsPositive() {
		return nil, validate.Errorf("quantity", "must be greater than zero")
	}
	if err := s.requireProduct(ctx, "product_id", req.ProductID); err != nil {
		return nil, err
	}

	c, err := s.store.StartConversion(ctx, sess.UserID, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversion started", "user", sess.Email, "conversion", c.ID, "product", req.ProductID, "quantity", req.Quantity.String())
	return c, nil
}

// Complete records outputs for a conversion and closes it. The Waste product
// is always stored with storage type waste.
func (s *Service) Complete(ctx context.Context, sess auth.Session, id string, outputs []model.ConversionOutput) (*model.Conversion, error) {
	if err := sess.RequireApproved(); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, validate.Errorf("outputs", "at least one output is required")
	}

	normalized := make([]model.ConversionOutput, len(outputs))
	for i, o := range outputs {
		field := fmt.Sprintf("outputs[%d]", i)
		if !o.Quantity.IsPositive() {
			return nil, validate.Errorf(field+".quantity", "must be greater than zero")
		}

		if o.ProductID == model.WasteProductID {
			if o.StorageType != "" && o.StorageType != model.StorageWaste {
				return nil, validate.Errorf(field+".storage_type", "waste is always stored as waste")
			}
			o.StorageType = model.StorageWaste
		} else {
			if !model.ValidStorageType(o.StorageType) {
				return nil, validate.Errorf(field+".storage_type", "unknown storage type %q", o.StorageType)
			}
			if err := s.requireProduct(ctx, field+".product_id", o.ProductID); err != nil {
				return nil, err
			}
		}
		normalized[i] = o
	}

	c, err := s.store.CompleteConversion(ctx, id, sess.UserID, normalized)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversion completed", "user", sess.Email, "conversion", id, "outputs", len(normalized))
	return c, nil
}

// Cancel abandons an in-progress conversion.
func (s *Service) Cancel(ctx context.Context, sess auth.Session, id string) error {
	if err := sess.RequireApproved(); err != nil {
		return err
	}
	if err := s.store.CancelConversion(ctx, id, sess.UserID); err != nil {
		return err
	}
	s.logger.Info("conversion cancelled", "user", sess.Email, "conversion", id)
	return nil
}

func (s *Service) requireProduct(ctx context.Context, field string, id int64) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p == nil || p.DeletedAt != nil {
		return validate.Errorf(field, "unknown product %d", id)
	}
	return nil
}
