package auctions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/internal/domain/orders"
	"github.com/rkarimi/simbazaar/internal/domain/wallet"
	"github.com/rkarimi/simbazaar/pkg/events"
)

// MockAuctionRepository is a mock implementation of AuctionRepository
type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) CreateAuction(ctx context.Context, auction *Auction) error {
	args := m.Called(ctx, auction)
	return args.Error(0)
}

func (m *MockAuctionRepository) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, tx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) UpdateLeader(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount int64, bidderID uuid.UUID) error {
	args := m.Called(ctx, tx, auctionID, amount, bidderID)
	return args.Error(0)
}

// MockBidRepository is a mock implementation of BidRepository
type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) GetUnreleasedBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, tx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) ReleaseBids(ctx context.Context, tx pgx.Tx, auctionID, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tx, auctionID, userID, at)
	return args.Error(0)
}

// MockListingRepository is a mock implementation of ListingRepository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) GetListingByID(ctx context.Context, simCardID uuid.UUID) (*listings.SimCard, error) {
	args := m.Called(ctx, simCardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listings.SimCard), args.Error(1)
}

func (m *MockListingRepository) GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID) (*listings.SimCard, error) {
	args := m.Called(ctx, tx, simCardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listings.SimCard), args.Error(1)
}

func (m *MockListingRepository) UpdateListingStatus(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID, status listings.Status) error {
	args := m.Called(ctx, tx, simCardID, status)
	return args.Error(0)
}

// MockLedger is a mock implementation of the wallet primitives
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Block(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	args := m.Called(ctx, tx, accountID, amount)
	return args.Error(0)
}

func (m *MockLedger) Unblock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	args := m.Called(ctx, tx, accountID, amount)
	return args.Error(0)
}

func (m *MockLedger) Capture(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	args := m.Called(ctx, tx, accountID, amount)
	return args.Error(0)
}

// MockOrderCreator is a mock implementation of OrderCreator
type MockOrderCreator struct {
	mock.Mock
}

func (m *MockOrderCreator) CreateFromSettlement(ctx context.Context, tx pgx.Tx, sale orders.SettlementSale) (*orders.PurchaseOrder, error) {
	args := m.Called(ctx, tx, sale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.PurchaseOrder), args.Error(1)
}

// MockOutboxRepository is a mock implementation of OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

// stubTx satisfies pgx.Tx for unit tests; only Commit and Rollback are used.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (s *stubTx) Commit(ctx context.Context) error {
	s.committed = true
	return nil
}

func (s *stubTx) Rollback(ctx context.Context) error {
	if !s.committed {
		s.rolledBack = true
	}
	return nil
}

type stubTxManager struct {
	tx *stubTx
}

func (m *stubTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return m.tx, nil
}

type serviceMocks struct {
	auctions *MockAuctionRepository
	bids     *MockBidRepository
	listings *MockListingRepository
	ledger   *MockLedger
	orders   *MockOrderCreator
	outbox   *MockOutboxRepository
	tx       *stubTx
}

func newTestService(now time.Time) (*Service, *serviceMocks) {
	m := &serviceMocks{
		auctions: new(MockAuctionRepository),
		bids:     new(MockBidRepository),
		listings: new(MockListingRepository),
		ledger:   new(MockLedger),
		orders:   new(MockOrderCreator),
		outbox:   new(MockOutboxRepository),
		tx:       &stubTx{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(
		&stubTxManager{tx: m.tx},
		m.auctions, m.bids, m.listings, m.ledger, m.orders, m.outbox,
		logger,
		func() time.Time { return now },
	)
	return svc, m
}

func (m *serviceMocks) assertExpectations(t *testing.T) {
	m.auctions.AssertExpectations(t)
	m.bids.AssertExpectations(t)
	m.listings.AssertExpectations(t)
	m.ledger.AssertExpectations(t)
	m.orders.AssertExpectations(t)
	m.outbox.AssertExpectations(t)
}

func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name       string
		bidAmount  int64
		currentBid int64
		wantErr    error
	}{
		{
			name:       "valid - higher than current bid",
			bidAmount:  1000,
			currentBid: 500,
			wantErr:    nil,
		},
		{
			name:       "invalid - equal to current bid",
			bidAmount:  500,
			currentBid: 500,
			wantErr:    ErrBidTooLow,
		},
		{
			name:       "invalid - lower than current bid",
			bidAmount:  300,
			currentBid: 500,
			wantErr:    ErrBidTooLow,
		},
		{
			name:       "invalid - zero amount",
			bidAmount:  0,
			currentBid: 0,
			wantErr:    ErrInvalidBidAmount,
		},
		{
			name:       "invalid - negative amount",
			bidAmount:  -100,
			currentBid: 0,
			wantErr:    ErrInvalidBidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBidAmount(tt.bidAmount, tt.currentBid)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAuctionOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		endAt   time.Time
		wantErr error
	}{
		{
			name:    "valid - ends in the future",
			endAt:   now.Add(24 * time.Hour),
			wantErr: nil,
		},
		{
			name:    "invalid - ended an hour ago",
			endAt:   now.Add(-1 * time.Hour),
			wantErr: ErrAuctionClosed,
		},
		{
			name:    "invalid - ends exactly now",
			endAt:   now,
			wantErr: ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAuctionOpen(now, tt.endAt)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_PlaceBid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	simCardID := uuid.New()
	sellerID := uuid.New()
	bidderID := uuid.New()
	prevBidderID := uuid.New()

	openListing := func() *listings.SimCard {
		return &listings.SimCard{
			ID:       simCardID,
			SellerID: sellerID,
			SaleType: listings.SaleTypeAuction,
			Status:   listings.StatusAvailable,
		}
	}

	t.Run("first bid blocks funds and records the leader", func(t *testing.T) {
		svc, m := newTestService(now)

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, BasePrice: 1000, CurrentBid: 1000, EndAt: now.Add(time.Hour)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)
		m.ledger.On("Block", mock.Anything, m.tx, bidderID, int64(1500)).Return(nil)
		m.bids.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auctions.Bid")).Return(nil)
		m.auctions.On("UpdateLeader", mock.Anything, m.tx, auctionID, int64(1500), bidderID).Return(nil)
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
			return e.EventType == events.EventTypeBidPlaced
		})).Return(nil)

		bid, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    1500,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1500), bid.Amount)
		assert.True(t, m.tx.committed)
		m.assertExpectations(t)
	})

	t.Run("outbidding releases the previous leader's reservation", func(t *testing.T) {
		svc, m := newTestService(now)
		prev := prevBidderID

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, BasePrice: 1000, CurrentBid: 1500, HighestBidderID: &prev, EndAt: now.Add(time.Hour)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)
		m.ledger.On("Unblock", mock.Anything, m.tx, prevBidderID, int64(1500)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, prevBidderID, now).Return(nil)
		m.ledger.On("Block", mock.Anything, m.tx, bidderID, int64(2000)).Return(nil)
		m.bids.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auctions.Bid")).Return(nil)
		m.auctions.On("UpdateLeader", mock.Anything, m.tx, auctionID, int64(2000), bidderID).Return(nil)
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.Anything).Return(nil)

		_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    2000,
		})

		require.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("leader raising their own bid swaps the reservation", func(t *testing.T) {
		svc, m := newTestService(now)
		self := bidderID

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, CurrentBid: 1500, HighestBidderID: &self, EndAt: now.Add(time.Hour)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)
		// Old reservation comes back before the larger one is taken.
		m.ledger.On("Unblock", mock.Anything, m.tx, bidderID, int64(1500)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, bidderID, now).Return(nil)
		m.ledger.On("Block", mock.Anything, m.tx, bidderID, int64(2500)).Return(nil)
		m.bids.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auctions.Bid")).Return(nil)
		m.auctions.On("UpdateLeader", mock.Anything, m.tx, auctionID, int64(2500), bidderID).Return(nil)
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.Anything).Return(nil)

		_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    2500,
		})

		require.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("rejects a bid at or below the current bid", func(t *testing.T) {
		svc, m := newTestService(now)

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, CurrentBid: 2000, EndAt: now.Add(time.Hour)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)

		_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    2000,
		})

		assert.ErrorIs(t, err, ErrBidTooLow)
		assert.False(t, m.tx.committed)
		m.assertExpectations(t)
	})

	t.Run("rejects a bid after the auction ended", func(t *testing.T) {
		svc, m := newTestService(now)

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, CurrentBid: 1000, EndAt: now.Add(-time.Minute)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)

		_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    1500,
		})

		assert.ErrorIs(t, err, ErrAuctionClosed)
		m.assertExpectations(t)
	})

	t.Run("seller cannot bid on their own listing", func(t *testing.T) {
		svc, m := newTestService(now)

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, CurrentBid: 1000, EndAt: now.Add(time.Hour)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)

		_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  sellerID,
			Amount:    1500,
		})

		assert.ErrorIs(t, err, ErrSellerCannotBid)
		m.assertExpectations(t)
	})

	t.Run("insufficient funds rolls the whole bid back", func(t *testing.T) {
		svc, m := newTestService(now)
		prev := prevBidderID

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(&Auction{ID: auctionID, SimCardID: simCardID, CurrentBid: 1500, HighestBidderID: &prev, EndAt: now.Add(time.Hour)}, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(openListing(), nil)
		m.ledger.On("Unblock", mock.Anything, m.tx, prevBidderID, int64(1500)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, prevBidderID, now).Return(nil)
		m.ledger.On("Block", mock.Anything, m.tx, bidderID, int64(2000)).Return(wallet.ErrInsufficientFunds)

		_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    2000,
		})

		assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
		assert.False(t, m.tx.committed)
		assert.True(t, m.tx.rolledBack)
		m.assertExpectations(t)
	})
}

func TestService_Settle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	simCardID := uuid.New()
	sellerID := uuid.New()
	winnerID := uuid.New()

	endedAuction := func() *Auction {
		winner := winnerID
		return &Auction{
			ID:              auctionID,
			SimCardID:       simCardID,
			BasePrice:       1000,
			CurrentBid:      5000,
			HighestBidderID: &winner,
			EndAt:           now.Add(-time.Hour),
		}
	}

	availableListing := func() *listings.SimCard {
		return &listings.SimCard{
			ID:       simCardID,
			SellerID: sellerID,
			SaleType: listings.SaleTypeAuction,
			Status:   listings.StatusAvailable,
		}
	}

	t.Run("captures the winner and opens the order", func(t *testing.T) {
		svc, m := newTestService(now)
		orderID := uuid.New()

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(endedAuction(), nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(availableListing(), nil)
		m.ledger.On("Capture", mock.Anything, m.tx, winnerID, int64(5000)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, winnerID, now).Return(nil)
		m.bids.On("GetUnreleasedBids", mock.Anything, m.tx, auctionID).Return([]*Bid{}, nil)
		m.listings.On("UpdateListingStatus", mock.Anything, m.tx, simCardID, listings.StatusSold).Return(nil)
		m.orders.On("CreateFromSettlement", mock.Anything, m.tx, orders.SettlementSale{
			BuyerID:   winnerID,
			SellerID:  sellerID,
			SimCardID: simCardID,
			Price:     5000,
		}).Return(&orders.PurchaseOrder{ID: orderID, SimCardID: simCardID}, nil)
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
			return e.EventType == events.EventTypeAuctionSettled
		})).Return(nil)

		order, err := svc.Settle(context.Background(), SettleCommand{AuctionID: auctionID, WinnerID: winnerID})

		require.NoError(t, err)
		assert.Equal(t, orderID, order.ID)
		assert.True(t, m.tx.committed)
		m.assertExpectations(t)
	})

	t.Run("rejects settlement while the auction is still open", func(t *testing.T) {
		svc, m := newTestService(now)
		auction := endedAuction()
		auction.EndAt = now.Add(time.Hour)

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).Return(auction, nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(availableListing(), nil)

		_, err := svc.Settle(context.Background(), SettleCommand{AuctionID: auctionID, WinnerID: winnerID})

		assert.ErrorIs(t, err, ErrAuctionStillOpen)
		m.assertExpectations(t)
	})

	t.Run("only the highest bidder can settle", func(t *testing.T) {
		svc, m := newTestService(now)

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(endedAuction(), nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(availableListing(), nil)

		_, err := svc.Settle(context.Background(), SettleCommand{AuctionID: auctionID, WinnerID: uuid.New()})

		assert.ErrorIs(t, err, ErrNotHighestBidder)
		m.assertExpectations(t)
	})

	t.Run("rejects settling a sold listing twice", func(t *testing.T) {
		svc, m := newTestService(now)
		listing := availableListing()
		listing.Status = listings.StatusSold

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(endedAuction(), nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(listing, nil)

		_, err := svc.Settle(context.Background(), SettleCommand{AuctionID: auctionID, WinnerID: winnerID})

		assert.ErrorIs(t, err, ErrAlreadySold)
		assert.False(t, m.tx.committed)
		m.assertExpectations(t)
	})

	t.Run("refunds straggling losers and skips missing accounts", func(t *testing.T) {
		svc, m := newTestService(now)
		goneLoserID := uuid.New()
		liveLoserID := uuid.New()
		orderID := uuid.New()

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(endedAuction(), nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(availableListing(), nil)
		m.ledger.On("Capture", mock.Anything, m.tx, winnerID, int64(5000)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, winnerID, now).Return(nil)

		// Two losers still hold reservations; one account no longer exists.
		m.bids.On("GetUnreleasedBids", mock.Anything, m.tx, auctionID).Return([]*Bid{
			{ID: uuid.New(), AuctionID: auctionID, UserID: goneLoserID, Amount: 2000, CreatedAt: now.Add(-3 * time.Hour)},
			{ID: uuid.New(), AuctionID: auctionID, UserID: liveLoserID, Amount: 3000, CreatedAt: now.Add(-2 * time.Hour)},
		}, nil)
		m.ledger.On("Unblock", mock.Anything, m.tx, goneLoserID, int64(2000)).Return(wallet.ErrAccountNotFound)
		m.ledger.On("Unblock", mock.Anything, m.tx, liveLoserID, int64(3000)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, liveLoserID, now).Return(nil)

		m.listings.On("UpdateListingStatus", mock.Anything, m.tx, simCardID, listings.StatusSold).Return(nil)
		m.orders.On("CreateFromSettlement", mock.Anything, m.tx, mock.AnythingOfType("orders.SettlementSale")).
			Return(&orders.PurchaseOrder{ID: orderID}, nil)

		// Both the skip alert and the settled event land in the outbox.
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
			return e.EventType == events.EventTypeRefundSkipped
		})).Return(nil).Once()
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
			return e.EventType == events.EventTypeAuctionSettled
		})).Return(nil).Once()

		_, err := svc.Settle(context.Background(), SettleCommand{AuctionID: auctionID, WinnerID: winnerID})

		require.NoError(t, err)
		assert.True(t, m.tx.committed)
		m.assertExpectations(t)
	})

	t.Run("latest amount wins when a loser holds several bids", func(t *testing.T) {
		svc, m := newTestService(now)
		loserID := uuid.New()
		orderID := uuid.New()

		m.auctions.On("GetAuctionByIDForUpdate", mock.Anything, m.tx, auctionID).
			Return(endedAuction(), nil)
		m.listings.On("GetListingByIDForUpdate", mock.Anything, m.tx, simCardID).
			Return(availableListing(), nil)
		m.ledger.On("Capture", mock.Anything, m.tx, winnerID, int64(5000)).Return(nil)
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, winnerID, now).Return(nil)

		m.bids.On("GetUnreleasedBids", mock.Anything, m.tx, auctionID).Return([]*Bid{
			{ID: uuid.New(), AuctionID: auctionID, UserID: loserID, Amount: 2000, CreatedAt: now.Add(-3 * time.Hour)},
			{ID: uuid.New(), AuctionID: auctionID, UserID: loserID, Amount: 4000, CreatedAt: now.Add(-2 * time.Hour)},
		}, nil)
		// Only the latest reservation amount is refunded, once.
		m.ledger.On("Unblock", mock.Anything, m.tx, loserID, int64(4000)).Return(nil).Once()
		m.bids.On("ReleaseBids", mock.Anything, m.tx, auctionID, loserID, now).Return(nil)

		m.listings.On("UpdateListingStatus", mock.Anything, m.tx, simCardID, listings.StatusSold).Return(nil)
		m.orders.On("CreateFromSettlement", mock.Anything, m.tx, mock.AnythingOfType("orders.SettlementSale")).
			Return(&orders.PurchaseOrder{ID: orderID}, nil)
		m.outbox.On("SaveEvent", mock.Anything, m.tx, mock.Anything).Return(nil)

		_, err := svc.Settle(context.Background(), SettleCommand{AuctionID: auctionID, WinnerID: winnerID})

		require.NoError(t, err)
		m.assertExpectations(t)
	})
}

func TestService_CreateAuction(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	simCardID := uuid.New()

	t.Run("opens an auction at the base price", func(t *testing.T) {
		svc, m := newTestService(now)

		m.listings.On("GetListingByID", mock.Anything, simCardID).
			Return(&listings.SimCard{ID: simCardID, SaleType: listings.SaleTypeAuction, Status: listings.StatusAvailable}, nil)
		m.auctions.On("CreateAuction", mock.Anything, mock.AnythingOfType("*auctions.Auction")).Return(nil)

		auction, err := svc.CreateAuction(context.Background(), CreateAuctionCommand{
			SimCardID: simCardID,
			BasePrice: 1000,
			EndAt:     now.Add(48 * time.Hour),
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1000), auction.CurrentBid)
		assert.Nil(t, auction.HighestBidderID)
		m.assertExpectations(t)
	})

	t.Run("rejects a second auction on the same listing", func(t *testing.T) {
		svc, m := newTestService(now)

		m.listings.On("GetListingByID", mock.Anything, simCardID).
			Return(&listings.SimCard{ID: simCardID, SaleType: listings.SaleTypeAuction, Status: listings.StatusAvailable}, nil)
		m.auctions.On("CreateAuction", mock.Anything, mock.AnythingOfType("*auctions.Auction")).Return(ErrAuctionExists)

		_, err := svc.CreateAuction(context.Background(), CreateAuctionCommand{
			SimCardID: simCardID,
			BasePrice: 1000,
			EndAt:     now.Add(48 * time.Hour),
		})

		assert.ErrorIs(t, err, ErrAuctionExists)
		m.assertExpectations(t)
	})

	t.Run("rejects a non-auction listing", func(t *testing.T) {
		svc, m := newTestService(now)

		m.listings.On("GetListingByID", mock.Anything, simCardID).
			Return(&listings.SimCard{ID: simCardID, SaleType: listings.SaleTypeFixed, Status: listings.StatusAvailable}, nil)

		_, err := svc.CreateAuction(context.Background(), CreateAuctionCommand{
			SimCardID: simCardID,
			BasePrice: 1000,
			EndAt:     now.Add(48 * time.Hour),
		})

		assert.ErrorIs(t, err, ErrNotAuctionListing)
		m.assertExpectations(t)
	})

	t.Run("rejects non-positive base price", func(t *testing.T) {
		svc, m := newTestService(now)

		_, err := svc.CreateAuction(context.Background(), CreateAuctionCommand{
			SimCardID: simCardID,
			BasePrice: 0,
			EndAt:     now.Add(48 * time.Hour),
		})

		assert.ErrorIs(t, err, ErrInvalidBasePrice)
		m.assertExpectations(t)
	})

	t.Run("rejects an end time in the past", func(t *testing.T) {
		svc, m := newTestService(now)

		_, err := svc.CreateAuction(context.Background(), CreateAuctionCommand{
			SimCardID: simCardID,
			BasePrice: 1000,
			EndAt:     now.Add(-time.Hour),
		})

		assert.ErrorIs(t, err, ErrInvalidEndTime)
		m.assertExpectations(t)
	})
}

func TestFoldParticipants(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	released := now.Add(30 * time.Minute)
	alice := uuid.New()
	bob := uuid.New()

	bids := []*Bid{
		{UserID: alice, Amount: 1000, CreatedAt: now, ReleasedAt: &released},
		{UserID: bob, Amount: 1500, CreatedAt: now.Add(10 * time.Minute), ReleasedAt: &released},
		{UserID: alice, Amount: 2000, CreatedAt: now.Add(20 * time.Minute)},
	}

	participants := foldParticipants(bids)

	require.Len(t, participants, 2)

	// First-bid order is preserved, latest bid wins per user.
	assert.Equal(t, alice, participants[0].UserID)
	assert.Equal(t, int64(2000), participants[0].LastBidAmount)
	assert.True(t, participants[0].HoldsReservation)

	assert.Equal(t, bob, participants[1].UserID)
	assert.Equal(t, int64(1500), participants[1].LastBidAmount)
	assert.False(t, participants[1].HoldsReservation)
}
