package auctions

import (
	"time"

	"github.com/google/uuid"
)

// Auction is the bidding state attached to one auctioned SIM card.
// CurrentBid equals the amount of the most recent bid, or the base price when
// no bid has been placed yet; HighestBidderID is nil in that case.
type Auction struct {
	ID              uuid.UUID  `db:"id"`
	SimCardID       uuid.UUID  `db:"sim_card_id"`
	BasePrice       int64      `db:"base_price"`
	CurrentBid      int64      `db:"current_bid"`
	HighestBidderID *uuid.UUID `db:"highest_bidder_id"`
	EndAt           time.Time  `db:"end_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// HasBids reports whether any bid has been accepted.
func (a *Auction) HasBids() bool {
	return a.HighestBidderID != nil
}

// Bid is one accepted bid. The bid facts (user, amount, timestamp) are
// immutable; ReleasedAt is ledger bookkeeping recording when the reservation
// backing this bid was returned to the bidder or captured at settlement.
type Bid struct {
	ID         uuid.UUID  `db:"id"`
	AuctionID  uuid.UUID  `db:"auction_id"`
	UserID     uuid.UUID  `db:"user_id"`
	Amount     int64      `db:"amount"`
	CreatedAt  time.Time  `db:"created_at"`
	ReleasedAt *time.Time `db:"released_at"`
}

// Participant is a bidder's view derived on demand from the bid history.
// There is no separately maintained participants table to drift out of sync.
type Participant struct {
	UserID           uuid.UUID
	LastBidAmount    int64
	LastBidAt        time.Time
	HoldsReservation bool
}

// CreateAuctionCommand represents the command to open an auction for a listing
type CreateAuctionCommand struct {
	SimCardID uuid.UUID
	BasePrice int64
	EndAt     time.Time
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
}

// SettleCommand represents the winner's explicit purchase of a closed auction
type SettleCommand struct {
	AuctionID uuid.UUID
	WinnerID  uuid.UUID
}
