package listings

import (
	"time"

	"github.com/google/uuid"
)

// SaleType describes how a SIM card is sold.
type SaleType string

const (
	SaleTypeFixed   SaleType = "fixed"
	SaleTypeAuction SaleType = "auction"
	SaleTypeInquiry SaleType = "inquiry"
)

// IsValid checks if the sale type is one of the supported values
func (s SaleType) IsValid() bool {
	switch s {
	case SaleTypeFixed, SaleTypeAuction, SaleTypeInquiry:
		return true
	default:
		return false
	}
}

// Status describes the listing lifecycle.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
)

// SimCard represents a SIM card listed on the marketplace.
// Price is in integer currency units; it is zero for auction listings,
// whose price lives on the auction's base price instead.
type SimCard struct {
	ID        uuid.UUID `db:"id"`
	SellerID  uuid.UUID `db:"seller_id"`
	Number    string    `db:"number"`
	SaleType  SaleType  `db:"sale_type"`
	Status    Status    `db:"status"`
	Price     int64     `db:"price"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CreateListingCommand represents the command to list a SIM card
type CreateListingCommand struct {
	SellerID uuid.UUID
	Number   string
	SaleType SaleType
	Price    int64
}

// ListQuery represents pagination parameters for browsing listings
type ListQuery struct {
	Limit  int
	Offset int
}
