package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service errors
var (
	ErrListingNotFound = fmt.Errorf("listing not found")
	ErrInvalidNumber   = fmt.Errorf("sim card number must not be empty")
	ErrInvalidSaleType = fmt.Errorf("invalid sale type")
	ErrInvalidPrice    = fmt.Errorf("price must be greater than 0")
)

// Service implements the listing lifecycle outside of money movement.
// Status changes tied to sales happen inside the auction and order
// transactions, not here.
type Service struct {
	repo Repository
}

// NewService creates a new listing service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateListing lists a SIM card for sale.
func (s *Service) CreateListing(ctx context.Context, cmd CreateListingCommand) (*SimCard, error) {
	if cmd.Number == "" {
		return nil, ErrInvalidNumber
	}
	if !cmd.SaleType.IsValid() {
		return nil, ErrInvalidSaleType
	}
	// Auction listings carry their price on the auction's base price.
	if cmd.SaleType == SaleTypeFixed && cmd.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	sim := &SimCard{
		ID:        uuid.New(),
		SellerID:  cmd.SellerID,
		Number:    cmd.Number,
		SaleType:  cmd.SaleType,
		Status:    StatusAvailable,
		Price:     cmd.Price,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.CreateListing(ctx, sim); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return sim, nil
}

// GetListing retrieves a listing by ID
func (s *Service) GetListing(ctx context.Context, simCardID uuid.UUID) (*SimCard, error) {
	sim, err := s.repo.GetListingByID(ctx, simCardID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	return sim, nil
}

// ListAvailable retrieves available listings with pagination
func (s *Service) ListAvailable(ctx context.Context, query ListQuery) ([]*SimCard, error) {
	result, err := s.repo.ListAvailable(ctx, query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list available listings: %w", err)
	}
	return result, nil
}
