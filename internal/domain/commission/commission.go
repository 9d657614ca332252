package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPercentage = fmt.Errorf("commission percentage must be between 0 and 100")
	ErrInvalidSalePrice  = fmt.Errorf("sale price must be positive")
)

// Breakdown is the commission split for a single sale. Computed exactly once
// at sale time and stored on the resulting order; never recomputed afterwards.
type Breakdown struct {
	SalePrice            int64
	Percentage           int64
	CommissionAmount     int64
	SellerReceivedAmount int64
}

// Record is the append-only commission entry written when a sale completes.
type Record struct {
	ID                   uuid.UUID `db:"id"`
	PurchaseOrderID      uuid.UUID `db:"purchase_order_id"`
	SalePrice            int64     `db:"sale_price"`
	CommissionPercentage int64     `db:"commission_percentage"`
	CommissionAmount     int64     `db:"commission_amount"`
	SellerReceivedAmount int64     `db:"seller_received_amount"`
	CreatedAt            time.Time `db:"created_at"`
}

// Compute derives the platform commission and seller proceeds for a sale.
// The commission is floored, so the remainder always goes to the seller and
// CommissionAmount + SellerReceivedAmount == SalePrice holds for every valid
// percentage.
func Compute(salePrice, percentage int64) (Breakdown, error) {
	if salePrice <= 0 {
		return Breakdown{}, ErrInvalidSalePrice
	}
	if percentage < 0 || percentage > 100 {
		return Breakdown{}, ErrInvalidPercentage
	}

	commissionAmount := salePrice * percentage / 100

	return Breakdown{
		SalePrice:            salePrice,
		Percentage:           percentage,
		CommissionAmount:     commissionAmount,
		SellerReceivedAmount: salePrice - commissionAmount,
	}, nil
}

// Policy supplies the commission percentage in force at sale time.
type Policy interface {
	Percentage(ctx context.Context) (int64, error)
}

// StaticPolicy is a Policy backed by a configured rate.
type StaticPolicy struct {
	percentage int64
}

// NewStaticPolicy creates a policy with a fixed percentage.
func NewStaticPolicy(percentage int64) (*StaticPolicy, error) {
	if percentage < 0 || percentage > 100 {
		return nil, ErrInvalidPercentage
	}
	return &StaticPolicy{percentage: percentage}, nil
}

func (p *StaticPolicy) Percentage(ctx context.Context) (int64, error) {
	return p.percentage, nil
}
