package orders

import (
	"time"

	"github.com/google/uuid"
)

// Status is a purchase order's verification stage.
type Status string

const (
	StatusPending           Status = "pending"
	StatusCodeSent          Status = "code_sent"
	StatusCodeVerified      Status = "code_verified"
	StatusDocumentPending   Status = "document_pending"
	StatusDocumentSubmitted Status = "document_submitted"
	StatusDocumentRejected  Status = "document_rejected"
	StatusVerified          Status = "verified"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// statusTransitions holds the pure status changes with no money movement.
// Completion and cancellation move money and go through their own operations.
// A rejected document loops back to document_submitted when the seller
// resubmits.
var statusTransitions = map[Status][]Status{
	StatusPending:           {StatusCodeSent},
	StatusCodeSent:          {StatusCodeVerified},
	StatusCodeVerified:      {StatusDocumentPending},
	StatusDocumentPending:   {StatusDocumentSubmitted},
	StatusDocumentSubmitted: {StatusVerified, StatusDocumentRejected},
	StatusDocumentRejected:  {StatusDocumentSubmitted},
	StatusVerified:          {},
}

// IsValid checks if the status is one of the known states
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCodeSent, StatusCodeVerified, StatusDocumentPending,
		StatusDocumentSubmitted, StatusDocumentRejected, StatusVerified,
		StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the order can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanAdvanceTo reports whether next is a permitted pure status transition.
func (s Status) CanAdvanceTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EscrowState tracks where the buyer's funds for this order currently sit.
type EscrowState string

const (
	// EscrowBlocked: funds reserved on the buyer's wallet.
	EscrowBlocked EscrowState = "blocked"
	// EscrowCaptured: funds left the buyer permanently (auction settlement
	// or completion).
	EscrowCaptured EscrowState = "captured"
	// EscrowReleased: funds returned to the buyer on cancellation.
	EscrowReleased EscrowState = "released"
)

// PurchaseOrder drives a sale through verification with money held in escrow.
// Commission amounts are computed once at creation and never recomputed.
type PurchaseOrder struct {
	ID                   uuid.UUID   `db:"id"`
	BuyerID              uuid.UUID   `db:"buyer_id"`
	SellerID             uuid.UUID   `db:"seller_id"`
	SimCardID            uuid.UUID   `db:"sim_card_id"`
	Price                int64       `db:"price"`
	CommissionPercentage int64       `db:"commission_percentage"`
	CommissionAmount     int64       `db:"commission_amount"`
	SellerReceivedAmount int64       `db:"seller_received_amount"`
	BuyerBlockedAmount   int64       `db:"buyer_blocked_amount"`
	Status               Status      `db:"status"`
	EscrowState          EscrowState `db:"escrow_state"`
	CreatedAt            time.Time   `db:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at"`
}

// CreateOrderCommand represents a buyer purchasing a fixed-price listing
type CreateOrderCommand struct {
	BuyerID   uuid.UUID
	SimCardID uuid.UUID
}

// SettlementSale carries the facts of a settled auction into order creation.
// The winner's funds are already captured when this is built.
type SettlementSale struct {
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	SimCardID uuid.UUID
	Price     int64
}
