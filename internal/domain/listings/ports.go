package listings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for listing persistence
type Repository interface {
	// CreateListing creates a new SIM card listing
	CreateListing(ctx context.Context, sim *SimCard) error

	// GetListingByID retrieves a listing by its ID
	GetListingByID(ctx context.Context, simCardID uuid.UUID) (*SimCard, error)

	// GetListingByIDForUpdate retrieves a listing and locks its row.
	// Purchases and settlements lock the listing so a SIM card can only
	// be sold once.
	GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID) (*SimCard, error)

	// UpdateListingStatus flips a listing between available and sold
	// within a transaction
	UpdateListingStatus(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID, status Status) error

	// ListAvailable retrieves available listings with pagination
	ListAvailable(ctx context.Context, limit, offset int) ([]*SimCard, error)
}
