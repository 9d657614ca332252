package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimi/simbazaar/internal/domain/commission"
	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/pkg/database"
	"github.com/rkarimi/simbazaar/pkg/events"
)

// Service errors
var (
	ErrOrderNotFound       = fmt.Errorf("order not found")
	ErrInvalidTransition   = fmt.Errorf("invalid order transition")
	ErrListingNotAvailable = fmt.Errorf("listing is not available")
	ErrNotFixedPrice       = fmt.Errorf("listing is not a fixed-price sale")
	ErrSelfPurchase        = fmt.Errorf("buyer cannot purchase their own listing")
)

// Service drives purchase orders through the verification workflow. Every
// transition that moves money runs as one transaction composed from the
// wallet ledger primitives; a transition that would re-apply money movement
// fails with ErrInvalidTransition instead.
type Service struct {
	txManager   database.TransactionManager
	orders      OrderRepository
	listings    ListingRepository
	ledger      Ledger
	commissions CommissionRepository
	policy      commission.Policy
	outbox      OutboxRepository
	logger      *slog.Logger
}

// NewService creates a new order service
func NewService(
	txManager database.TransactionManager,
	orderRepo OrderRepository,
	listingRepo ListingRepository,
	ledger Ledger,
	commissionRepo CommissionRepository,
	policy commission.Policy,
	outboxRepo OutboxRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:   txManager,
		orders:      orderRepo,
		listings:    listingRepo,
		ledger:      ledger,
		commissions: commissionRepo,
		policy:      policy,
		outbox:      outboxRepo,
		logger:      logger,
	}
}

// CreateFixedPrice opens an order for a fixed-price listing: the buyer's
// funds equal to the price go into escrow and the listing is taken off the
// market, atomically.
func (s *Service) CreateFixedPrice(ctx context.Context, cmd CreateOrderCommand) (*PurchaseOrder, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	listing, err := s.listings.GetListingByIDForUpdate(ctx, tx, cmd.SimCardID)
	if err != nil {
		return nil, listings.ErrListingNotFound
	}
	if listing.SaleType != listings.SaleTypeFixed {
		return nil, ErrNotFixedPrice
	}
	if listing.Status != listings.StatusAvailable {
		return nil, ErrListingNotAvailable
	}
	if listing.SellerID == cmd.BuyerID {
		return nil, ErrSelfPurchase
	}

	order, err := s.buildOrder(ctx, cmd.BuyerID, listing.SellerID, listing.ID, listing.Price, EscrowBlocked)
	if err != nil {
		return nil, err
	}

	// Escrow: the full price moves from the buyer's wallet to blocked.
	if blockErr := s.ledger.Block(ctx, tx, cmd.BuyerID, listing.Price); blockErr != nil {
		return nil, blockErr
	}

	if createErr := s.orders.CreateOrder(ctx, tx, order); createErr != nil {
		return nil, fmt.Errorf("failed to create order: %w", createErr)
	}

	if statusErr := s.listings.UpdateListingStatus(ctx, tx, listing.ID, listings.StatusSold); statusErr != nil {
		return nil, fmt.Errorf("failed to mark listing sold: %w", statusErr)
	}

	if eventErr := s.saveOrderEvent(ctx, tx, events.EventTypeOrderCreated, order); eventErr != nil {
		return nil, eventErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return order, nil
}

// CreateFromSettlement opens the order for an auction the winner just
// settled, inside the settlement transaction. The winner's funds were
// captured there, so the order starts with its escrow already satisfied
// rather than double-blocking the same money.
func (s *Service) CreateFromSettlement(ctx context.Context, tx pgx.Tx, sale SettlementSale) (*PurchaseOrder, error) {
	order, err := s.buildOrder(ctx, sale.BuyerID, sale.SellerID, sale.SimCardID, sale.Price, EscrowCaptured)
	if err != nil {
		return nil, err
	}

	if createErr := s.orders.CreateOrder(ctx, tx, order); createErr != nil {
		return nil, fmt.Errorf("failed to create order: %w", createErr)
	}

	if eventErr := s.saveOrderEvent(ctx, tx, events.EventTypeOrderCreated, order); eventErr != nil {
		return nil, eventErr
	}

	return order, nil
}

// buildOrder assembles a pending order with its commission split computed
// exactly once, at the configured rate in force right now.
func (s *Service) buildOrder(ctx context.Context, buyerID, sellerID, simCardID uuid.UUID, price int64, escrow EscrowState) (*PurchaseOrder, error) {
	percentage, err := s.policy.Percentage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read commission rate: %w", err)
	}

	breakdown, err := commission.Compute(price, percentage)
	if err != nil {
		return nil, fmt.Errorf("failed to compute commission: %w", err)
	}

	return &PurchaseOrder{
		ID:                   uuid.New(),
		BuyerID:              buyerID,
		SellerID:             sellerID,
		SimCardID:            simCardID,
		Price:                price,
		CommissionPercentage: breakdown.Percentage,
		CommissionAmount:     breakdown.CommissionAmount,
		SellerReceivedAmount: breakdown.SellerReceivedAmount,
		BuyerBlockedAmount:   price,
		Status:               StatusPending,
		EscrowState:          escrow,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}, nil
}

// GetOrder retrieves an order by ID
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*PurchaseOrder, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetCommissionRecord retrieves the commission entry written at completion.
func (s *Service) GetCommissionRecord(ctx context.Context, orderID uuid.UUID) (*commission.Record, error) {
	return s.commissions.GetRecordByOrderID(ctx, orderID)
}

// Advance applies a pure status transition with no money movement.
// Completion and cancellation are rejected here; they go through Complete and
// Cancel.
func (s *Service) Advance(ctx context.Context, orderID uuid.UUID, next Status) (*PurchaseOrder, error) {
	if !next.IsValid() || next.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	order, err := s.orders.GetOrderByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if !order.Status.CanAdvanceTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	if updErr := s.orders.UpdateOrderState(ctx, tx, orderID, next, order.EscrowState); updErr != nil {
		return nil, fmt.Errorf("failed to update order: %w", updErr)
	}

	order.Status = next
	if eventErr := s.saveOrderEvent(ctx, tx, events.EventTypeOrderStatus, order); eventErr != nil {
		return nil, eventErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return order, nil
}

// Complete finalizes a verified order in one transaction: the buyer's escrow
// is captured (unless auction settlement already did), the seller is credited
// their proceeds and the immutable commission record is written.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID) (*PurchaseOrder, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	order, err := s.orders.GetOrderByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if order.Status != StatusVerified {
		return nil, fmt.Errorf("%w: cannot complete from %s", ErrInvalidTransition, order.Status)
	}

	// The stored split must still account for the full price; anything else
	// means the order was tampered with or the commission never computed.
	if order.CommissionAmount+order.SellerReceivedAmount != order.Price {
		return nil, fmt.Errorf("%w: commission split does not match price", ErrInvalidTransition)
	}

	switch order.EscrowState {
	case EscrowBlocked:
		if capErr := s.ledger.Capture(ctx, tx, order.BuyerID, order.BuyerBlockedAmount); capErr != nil {
			return nil, fmt.Errorf("failed to capture escrow: %w", capErr)
		}
	case EscrowCaptured:
		// Auction settlement already took the funds.
	case EscrowReleased:
		return nil, fmt.Errorf("%w: escrow already released", ErrInvalidTransition)
	default:
		return nil, fmt.Errorf("%w: unknown escrow state %q", ErrInvalidTransition, order.EscrowState)
	}

	if creditErr := s.ledger.Credit(ctx, tx, order.SellerID, order.SellerReceivedAmount); creditErr != nil {
		return nil, fmt.Errorf("failed to credit seller: %w", creditErr)
	}

	record := &commission.Record{
		ID:                   uuid.New(),
		PurchaseOrderID:      order.ID,
		SalePrice:            order.Price,
		CommissionPercentage: order.CommissionPercentage,
		CommissionAmount:     order.CommissionAmount,
		SellerReceivedAmount: order.SellerReceivedAmount,
		CreatedAt:            time.Now(),
	}
	if saveErr := s.commissions.SaveRecord(ctx, tx, record); saveErr != nil {
		return nil, fmt.Errorf("failed to save commission record: %w", saveErr)
	}

	if updErr := s.orders.UpdateOrderState(ctx, tx, orderID, StatusCompleted, EscrowCaptured); updErr != nil {
		return nil, fmt.Errorf("failed to update order: %w", updErr)
	}

	order.Status = StatusCompleted
	order.EscrowState = EscrowCaptured
	if eventErr := s.saveOrderEvent(ctx, tx, events.EventTypeOrderCompleted, order); eventErr != nil {
		return nil, eventErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return order, nil
}

// Cancel aborts an order from any non-terminal state in one transaction: the
// buyer gets their full escrow back and the listing returns to the market.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (*PurchaseOrder, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	order, err := s.orders.GetOrderByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, order.Status)
	}

	switch order.EscrowState {
	case EscrowBlocked:
		if unblockErr := s.ledger.Unblock(ctx, tx, order.BuyerID, order.BuyerBlockedAmount); unblockErr != nil {
			return nil, fmt.Errorf("failed to release escrow: %w", unblockErr)
		}
	case EscrowCaptured:
		// Settlement already captured the funds, so returning them is a
		// plain wallet credit.
		if creditErr := s.ledger.Credit(ctx, tx, order.BuyerID, order.BuyerBlockedAmount); creditErr != nil {
			return nil, fmt.Errorf("failed to refund buyer: %w", creditErr)
		}
	case EscrowReleased:
		return nil, fmt.Errorf("%w: escrow already released", ErrInvalidTransition)
	default:
		return nil, fmt.Errorf("%w: unknown escrow state %q", ErrInvalidTransition, order.EscrowState)
	}

	if statusErr := s.listings.UpdateListingStatus(ctx, tx, order.SimCardID, listings.StatusAvailable); statusErr != nil {
		return nil, fmt.Errorf("failed to relist sim card: %w", statusErr)
	}

	if updErr := s.orders.UpdateOrderState(ctx, tx, orderID, StatusCancelled, EscrowReleased); updErr != nil {
		return nil, fmt.Errorf("failed to update order: %w", updErr)
	}

	order.Status = StatusCancelled
	order.EscrowState = EscrowReleased
	if eventErr := s.saveOrderEvent(ctx, tx, events.EventTypeOrderCancelled, order); eventErr != nil {
		return nil, eventErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return order, nil
}

type orderEventPayload struct {
	OrderID   string    `json:"order_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	SimCardID string    `json:"sim_card_id"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

func (s *Service) saveOrderEvent(ctx context.Context, tx pgx.Tx, eventType string, order *PurchaseOrder) error {
	payload := orderEventPayload{
		OrderID:   order.ID.String(),
		BuyerID:   order.BuyerID.String(),
		SellerID:  order.SellerID.String(),
		SimCardID: order.SimCardID.String(),
		Price:     order.Price,
		Status:    string(order.Status),
		At:        time.Now(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
