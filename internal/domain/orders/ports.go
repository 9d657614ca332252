package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimi/simbazaar/internal/domain/commission"
	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/pkg/events"
)

// OrderRepository defines the interface for purchase order persistence
type OrderRepository interface {
	// CreateOrder inserts a new order within a transaction
	CreateOrder(ctx context.Context, tx pgx.Tx, order *PurchaseOrder) error

	// GetOrderByID retrieves an order (non-transactional read)
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*PurchaseOrder, error)

	// GetOrderByIDForUpdate retrieves an order and locks its row so
	// concurrent transitions on the same order serialize
	GetOrderByIDForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*PurchaseOrder, error)

	// UpdateOrderState writes the order's status and escrow state within a
	// transaction
	UpdateOrderState(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status Status, escrow EscrowState) error
}

// ListingRepository is the slice of listing persistence order transitions
// need: locking the listing and flipping it between available and sold.
type ListingRepository interface {
	GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID) (*listings.SimCard, error)
	UpdateListingStatus(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID, status listings.Status) error
}

// Ledger is the wallet primitives order transitions compose into their
// transactions.
type Ledger interface {
	Block(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
	Unblock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
	Capture(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
	Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
}

// CommissionRepository persists the append-only commission records written at
// completion.
type CommissionRepository interface {
	SaveRecord(ctx context.Context, tx pgx.Tx, record *commission.Record) error
	GetRecordByOrderID(ctx context.Context, orderID uuid.UUID) (*commission.Record, error)
}

// OutboxRepository defines the interface for saving outbox events within the
// order transactions.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
