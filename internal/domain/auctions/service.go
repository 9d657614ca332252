package auctions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/internal/domain/orders"
	"github.com/rkarimi/simbazaar/internal/domain/wallet"
	"github.com/rkarimi/simbazaar/pkg/database"
	"github.com/rkarimi/simbazaar/pkg/events"
)

// Validation errors
var (
	ErrAuctionNotFound   = fmt.Errorf("auction not found")
	ErrAuctionExists     = fmt.Errorf("an auction already exists for this listing")
	ErrInvalidBidAmount  = fmt.Errorf("bid amount must be positive")
	ErrBidTooLow         = fmt.Errorf("bid amount must be higher than current bid")
	ErrAuctionClosed     = fmt.Errorf("auction has ended")
	ErrAuctionStillOpen  = fmt.Errorf("auction has not ended yet")
	ErrNotHighestBidder  = fmt.Errorf("only the highest bidder can settle the auction")
	ErrAlreadySold       = fmt.Errorf("sim card is already sold")
	ErrSellerCannotBid   = fmt.Errorf("seller cannot bid on their own listing")
	ErrNotAuctionListing = fmt.Errorf("listing is not an auction")
	ErrInvalidBasePrice  = fmt.Errorf("base price must be greater than 0")
	ErrInvalidEndTime    = fmt.Errorf("end time must be in the future")
)

// validateBidAmount checks that the bid is positive and strictly above the
// current bid. This also rejects the current leader re-bidding at their own
// amount.
func validateBidAmount(bidAmount, currentBid int64) error {
	if bidAmount <= 0 {
		return ErrInvalidBidAmount
	}
	if bidAmount <= currentBid {
		return ErrBidTooLow
	}
	return nil
}

// validateAuctionOpen checks that bids are still accepted. A bid arriving at
// or after end_at is rejected regardless of when it was submitted.
func validateAuctionOpen(now, endAt time.Time) error {
	if !now.Before(endAt) {
		return ErrAuctionClosed
	}
	return nil
}

// Service implements the bid engine and auction settlement. All money
// movement goes through the wallet ledger primitives inside a single
// transaction per operation; auction expiry is checked lazily against the
// injected clock, never by a timer.
type Service struct {
	txManager database.TransactionManager
	auctions  AuctionRepository
	bids      BidRepository
	listings  ListingRepository
	ledger    Ledger
	orders    OrderCreator
	outbox    OutboxRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new auction service. A nil clock defaults to time.Now.
func NewService(
	txManager database.TransactionManager,
	auctionRepo AuctionRepository,
	bidRepo BidRepository,
	listingRepo ListingRepository,
	ledger Ledger,
	orderCreator OrderCreator,
	outboxRepo OutboxRepository,
	logger *slog.Logger,
	clock func() time.Time,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		txManager: txManager,
		auctions:  auctionRepo,
		bids:      bidRepo,
		listings:  listingRepo,
		ledger:    ledger,
		orders:    orderCreator,
		outbox:    outboxRepo,
		logger:    logger,
		now:       clock,
	}
}

// CreateAuction opens bidding on an auction-type listing.
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if cmd.BasePrice <= 0 {
		return nil, ErrInvalidBasePrice
	}
	if !cmd.EndAt.After(s.now()) {
		return nil, ErrInvalidEndTime
	}

	listing, err := s.listings.GetListingByID(ctx, cmd.SimCardID)
	if err != nil {
		return nil, listings.ErrListingNotFound
	}
	if listing.SaleType != listings.SaleTypeAuction {
		return nil, ErrNotAuctionListing
	}
	if listing.Status == listings.StatusSold {
		return nil, ErrAlreadySold
	}

	auction := &Auction{
		ID:         uuid.New(),
		SimCardID:  cmd.SimCardID,
		BasePrice:  cmd.BasePrice,
		CurrentBid: cmd.BasePrice,
		EndAt:      cmd.EndAt,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}

	// The unique constraint on sim_card_id decides races between concurrent
	// creates; the availability check above is only a fast path.
	if err := s.auctions.CreateAuction(ctx, auction); err != nil {
		if errors.Is(err, ErrAuctionExists) {
			return nil, ErrAuctionExists
		}
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	return auction, nil
}

// GetAuction retrieves an auction by ID
func (s *Service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	auction, err := s.auctions.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

// PlaceBid validates and applies a bid as one atomic unit: the previous
// leader's reservation is returned, the new bidder's funds are blocked, the
// bid is appended and the auction leader updated. Any failure rolls the whole
// unit back, so no partial money movement ever survives.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the auction row: concurrent bids on the same auction serialize
	// here and re-validate against the committed current bid.
	auction, err := s.auctions.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, ErrAuctionNotFound
	}

	listing, err := s.listings.GetListingByIDForUpdate(ctx, tx, auction.SimCardID)
	if err != nil {
		return nil, listings.ErrListingNotFound
	}
	if listing.SellerID == cmd.BidderID {
		return nil, ErrSellerCannotBid
	}
	if listing.Status == listings.StatusSold {
		return nil, ErrAlreadySold
	}

	now := s.now()
	if valErr := validateAuctionOpen(now, auction.EndAt); valErr != nil {
		return nil, valErr
	}
	if valErr := validateBidAmount(cmd.Amount, auction.CurrentBid); valErr != nil {
		return nil, valErr
	}

	// Return the previous leader's reservation. A bidder raising their own
	// top bid goes through the same unblock-then-block sequence, so the
	// ledger trail shows both movements.
	if auction.HasBids() {
		prev := *auction.HighestBidderID
		if unblockErr := s.ledger.Unblock(ctx, tx, prev, auction.CurrentBid); unblockErr != nil {
			return nil, fmt.Errorf("failed to release previous leader's funds: %w", unblockErr)
		}
		if releaseErr := s.bids.ReleaseBids(ctx, tx, auction.ID, prev, now); releaseErr != nil {
			return nil, fmt.Errorf("failed to mark previous bids released: %w", releaseErr)
		}
	}

	// Reserve the new bidder's funds. ErrInsufficientFunds propagates to the
	// caller and the rollback restores the previous leader's reservation.
	if blockErr := s.ledger.Block(ctx, tx, cmd.BidderID, cmd.Amount); blockErr != nil {
		return nil, blockErr
	}

	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: cmd.AuctionID,
		UserID:    cmd.BidderID,
		Amount:    cmd.Amount,
		CreatedAt: now,
	}

	if saveErr := s.bids.SaveBid(ctx, tx, bid); saveErr != nil {
		return nil, fmt.Errorf("failed to save bid: %w", saveErr)
	}

	if updateErr := s.auctions.UpdateLeader(ctx, tx, auction.ID, cmd.Amount, cmd.BidderID); updateErr != nil {
		return nil, fmt.Errorf("failed to update auction leader: %w", updateErr)
	}

	payload := bidPlacedPayload{
		BidID:     bid.ID.String(),
		AuctionID: auction.ID.String(),
		SimCardID: auction.SimCardID.String(),
		UserID:    bid.UserID.String(),
		Amount:    bid.Amount,
		PlacedAt:  bid.CreatedAt,
	}
	if eventErr := s.saveEvent(ctx, tx, events.EventTypeBidPlaced, payload); eventErr != nil {
		return nil, eventErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return bid, nil
}

// Settle closes a finished auction at the winner's request, all in one
// transaction: the winner's blocked funds are captured (never refunded to
// them), any straggling loser reservations are returned, the listing is
// marked sold and the purchase order is opened. A missing loser account is
// skipped with an alert instead of failing everyone else's refund.
func (s *Service) Settle(ctx context.Context, cmd SettleCommand) (*orders.PurchaseOrder, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.auctions.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, ErrAuctionNotFound
	}

	listing, err := s.listings.GetListingByIDForUpdate(ctx, tx, auction.SimCardID)
	if err != nil {
		return nil, listings.ErrListingNotFound
	}

	now := s.now()
	if now.Before(auction.EndAt) {
		return nil, ErrAuctionStillOpen
	}
	if !auction.HasBids() || *auction.HighestBidderID != cmd.WinnerID {
		return nil, ErrNotHighestBidder
	}
	if listing.Status == listings.StatusSold {
		return nil, ErrAlreadySold
	}

	// Capture, not unblock: the winner's reserved funds become the sale
	// proceeds and never return to their wallet.
	if capErr := s.ledger.Capture(ctx, tx, cmd.WinnerID, auction.CurrentBid); capErr != nil {
		return nil, fmt.Errorf("failed to capture winner's funds: %w", capErr)
	}
	if releaseErr := s.bids.ReleaseBids(ctx, tx, auction.ID, cmd.WinnerID, now); releaseErr != nil {
		return nil, fmt.Errorf("failed to mark winner's bids released: %w", releaseErr)
	}

	if refundErr := s.refundOutstandingLosers(ctx, tx, auction, cmd.WinnerID, now); refundErr != nil {
		return nil, refundErr
	}

	if statusErr := s.listings.UpdateListingStatus(ctx, tx, listing.ID, listings.StatusSold); statusErr != nil {
		return nil, fmt.Errorf("failed to mark listing sold: %w", statusErr)
	}

	order, err := s.orders.CreateFromSettlement(ctx, tx, orders.SettlementSale{
		BuyerID:   cmd.WinnerID,
		SellerID:  listing.SellerID,
		SimCardID: listing.ID,
		Price:     auction.CurrentBid,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}

	payload := auctionSettledPayload{
		AuctionID: auction.ID.String(),
		SimCardID: listing.ID.String(),
		WinnerID:  cmd.WinnerID.String(),
		Price:     auction.CurrentBid,
		OrderID:   order.ID.String(),
		SettledAt: now,
	}
	if eventErr := s.saveEvent(ctx, tx, events.EventTypeAuctionSettled, payload); eventErr != nil {
		return nil, eventErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return order, nil
}

// refundOutstandingLosers returns any reservation still held by a non-winning
// bidder. With bids released eagerly on outbid this loop is normally empty;
// it exists so a straggling reservation can never strand a loser's funds.
func (s *Service) refundOutstandingLosers(ctx context.Context, tx pgx.Tx, auction *Auction, winnerID uuid.UUID, now time.Time) error {
	outstanding, err := s.bids.GetUnreleasedBids(ctx, tx, auction.ID)
	if err != nil {
		return fmt.Errorf("failed to load outstanding bids: %w", err)
	}

	// Deduplicate by bidder, keeping the latest amount. Bids arrive in
	// chronological order.
	amounts := make(map[uuid.UUID]int64)
	for _, bid := range outstanding {
		if bid.UserID == winnerID {
			continue
		}
		amounts[bid.UserID] = bid.Amount
	}

	// Refund in a fixed order so concurrent settlements acquire account
	// locks consistently.
	losers := make([]uuid.UUID, 0, len(amounts))
	for userID := range amounts {
		losers = append(losers, userID)
	}
	slices.SortFunc(losers, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})

	for _, userID := range losers {
		amount := amounts[userID]

		unblockErr := s.ledger.Unblock(ctx, tx, userID, amount)
		if unblockErr != nil {
			if errors.Is(unblockErr, wallet.ErrAccountNotFound) {
				// A missing account must not block everyone else's
				// refund or the winner's purchase. Skip it, loudly.
				s.logger.Warn("skipping refund for missing account",
					"auction_id", auction.ID,
					"user_id", userID,
					"amount", amount,
				)
				payload := refundSkippedPayload{
					AuctionID: auction.ID.String(),
					UserID:    userID.String(),
					Amount:    amount,
					SkippedAt: now,
				}
				if eventErr := s.saveEvent(ctx, tx, events.EventTypeRefundSkipped, payload); eventErr != nil {
					return eventErr
				}
				continue
			}
			return fmt.Errorf("failed to refund bidder %s: %w", userID, unblockErr)
		}

		if releaseErr := s.bids.ReleaseBids(ctx, tx, auction.ID, userID, now); releaseErr != nil {
			return fmt.Errorf("failed to mark refunded bids released: %w", releaseErr)
		}
	}

	return nil
}

// Participants computes the bidder view on demand from the authoritative bid
// history.
func (s *Service) Participants(ctx context.Context, auctionID uuid.UUID) ([]Participant, error) {
	allBids, err := s.bids.GetBidsByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bids: %w", err)
	}
	return foldParticipants(allBids), nil
}

// foldParticipants reduces a chronological bid sequence to one entry per
// bidder carrying their latest bid.
func foldParticipants(bids []*Bid) []Participant {
	index := make(map[uuid.UUID]int)
	participants := make([]Participant, 0, len(bids))

	for _, bid := range bids {
		p := Participant{
			UserID:           bid.UserID,
			LastBidAmount:    bid.Amount,
			LastBidAt:        bid.CreatedAt,
			HoldsReservation: bid.ReleasedAt == nil,
		}
		if i, ok := index[bid.UserID]; ok {
			participants[i] = p
			continue
		}
		index[bid.UserID] = len(participants)
		participants = append(participants, p)
	}

	return participants
}

func (s *Service) saveEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

type bidPlacedPayload struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	SimCardID string    `json:"sim_card_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

type auctionSettledPayload struct {
	AuctionID string    `json:"auction_id"`
	SimCardID string    `json:"sim_card_id"`
	WinnerID  string    `json:"winner_id"`
	Price     int64     `json:"price"`
	OrderID   string    `json:"order_id"`
	SettledAt time.Time `json:"settled_at"`
}

type refundSkippedPayload struct {
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	SkippedAt time.Time `json:"skipped_at"`
}
