package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkarimi/simbazaar/internal/domain/commission"
)

// PostgresCommissionRepository implements orders.CommissionRepository using pgx.
// Commission records are append-only; there is deliberately no update method.
type PostgresCommissionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCommissionRepository creates a new PostgreSQL commission repository
func NewPostgresCommissionRepository(pool *pgxpool.Pool) *PostgresCommissionRepository {
	return &PostgresCommissionRepository{pool: pool}
}

// SaveRecord appends a commission record within a transaction
func (r *PostgresCommissionRepository) SaveRecord(ctx context.Context, tx pgx.Tx, record *commission.Record) error {
	query := `
		INSERT INTO commissions (
			id, purchase_order_id, sale_price, commission_percentage,
			commission_amount, seller_received_amount, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		record.ID,
		record.PurchaseOrderID,
		record.SalePrice,
		record.CommissionPercentage,
		record.CommissionAmount,
		record.SellerReceivedAmount,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert commission record: %w", err)
	}
	return nil
}

// GetRecordByOrderID retrieves the commission record for an order
func (r *PostgresCommissionRepository) GetRecordByOrderID(ctx context.Context, orderID uuid.UUID) (*commission.Record, error) {
	query := `
		SELECT id, purchase_order_id, sale_price, commission_percentage,
			commission_amount, seller_received_amount, created_at
		FROM commissions
		WHERE purchase_order_id = $1
	`
	var record commission.Record
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&record.ID,
		&record.PurchaseOrderID,
		&record.SalePrice,
		&record.CommissionPercentage,
		&record.CommissionAmount,
		&record.SellerReceivedAmount,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("commission record not found")
		}
		return nil, fmt.Errorf("failed to get commission record: %w", err)
	}
	return &record, nil
}
