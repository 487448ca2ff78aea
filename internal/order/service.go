package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

// StockCatalog is the slice of the catalog service the adjustment
// engine needs: current price and disease binding per facility vaccine.
type StockCatalog interface {
	GetFacilityVaccineByID(ctx context.Context, id uuid.UUID) (*catalog.FacilityVaccine, error)
}

type Service struct {
	repo  Repository
	stock StockCatalog
	log   zerolog.Logger
}

func NewService(repo Repository, stock StockCatalog, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		stock: stock,
		log:   log.With().Str("component", "order").Logger(),
	}
}

type Revision struct {
	DiseaseID         uuid.UUID
	FacilityVaccineID uuid.UUID
	Quantity          int
}

// Adjust revises a pending order's vaccine selection and quantities,
// recomputing the total from current catalog prices. Paid orders are
// frozen; the repository re-checks the status inside its transaction so
// a racing payment cannot slip through.
func (s *Service) Adjust(ctx context.Context, orderID uuid.UUID, revisions []Revision) (*Order, error) {
	if len(revisions) == 0 {
		return nil, errs.Validation("order adjustment needs at least one detail")
	}

	existing, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusPending {
		return nil, errs.InvalidTransition("order %s is %s; only pending orders can be adjusted", orderID, existing.Status)
	}

	var total int64
	details := make([]Detail, 0, len(revisions))
	for _, rev := range revisions {
		if rev.Quantity < 0 {
			return nil, errs.Validation("quantity must not be negative")
		}

		fv, err := s.stock.GetFacilityVaccineByID(ctx, rev.FacilityVaccineID)
		if err != nil {
			return nil, err
		}
		if fv.DiseaseID != rev.DiseaseID {
			return nil, errs.Validation("vaccine %s does not cover the selected disease", rev.FacilityVaccineID)
		}
		if rev.Quantity > fv.Quantity {
			return nil, errs.Validation("facility has only %d of vaccine %s in stock", fv.Quantity, rev.FacilityVaccineID)
		}

		total += fv.Price * int64(rev.Quantity)
		details = append(details, Detail{
			ID:                uuid.New(),
			OrderID:           orderID,
			FacilityVaccineID: rev.FacilityVaccineID,
			DiseaseID:         rev.DiseaseID,
			RemainingQuantity: rev.Quantity,
			Price:             fv.Price,
		})
	}

	if err := s.repo.ReplaceDetails(ctx, orderID, details, total); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", orderID.String()).
		Int("details", len(details)).
		Int64("total", total).
		Msg("order adjusted")

	adjusted, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload adjusted order: %w", err)
	}
	return adjusted, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}

// MarkPaid freezes the order once the payment signal arrives; details
// and total stop being adjustable from this point.
func (s *Service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	paid, err := s.repo.MarkPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", orderID.String()).
		Int64("total", paid.TotalAmount).
		Msg("order marked paid")

	return paid, nil
}
