package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/internal/domain/orders"
	"github.com/rkarimi/simbazaar/pkg/events"
)

// AuctionRepository defines the interface for auction persistence
type AuctionRepository interface {
	// CreateAuction creates a new auction row
	CreateAuction(ctx context.Context, auction *Auction) error

	// GetAuctionByID retrieves an auction (non-transactional read)
	GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error)

	// GetAuctionByIDForUpdate retrieves an auction and locks its row.
	// This serializes concurrent bids and settlements on the same auction.
	GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Auction, error)

	// UpdateLeader records the new highest bid within a transaction
	UpdateLeader(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount int64, bidderID uuid.UUID) error
}

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid appends a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetBidsByAuctionID retrieves all bids for an auction in chronological order
	GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// GetUnreleasedBids retrieves bids whose reservations are still held,
	// locked for update; must run inside the settlement transaction
	GetUnreleasedBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]*Bid, error)

	// ReleaseBids marks all of a user's unreleased bids on an auction as
	// released at the given time
	ReleaseBids(ctx context.Context, tx pgx.Tx, auctionID, userID uuid.UUID, at time.Time) error
}

// ListingRepository is the slice of listing persistence the auction engine
// needs: locking a listing during bids/settlement and marking it sold.
type ListingRepository interface {
	GetListingByID(ctx context.Context, simCardID uuid.UUID) (*listings.SimCard, error)
	GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID) (*listings.SimCard, error)
	UpdateListingStatus(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID, status listings.Status) error
}

// OutboxRepository defines the interface for saving outbox events within the
// auction transactions.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// Ledger is the wallet primitives the auction engine composes into its
// transactions. Balances are never mutated outside these.
type Ledger interface {
	Block(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
	Unblock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
	Capture(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
}

// OrderCreator opens the purchase order for a settled auction inside the
// settlement transaction.
type OrderCreator interface {
	CreateFromSettlement(ctx context.Context, tx pgx.Tx, sale orders.SettlementSale) (*orders.PurchaseOrder, error)
}
