package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkarimi/simbazaar/internal/domain/orders"
	pkgdb "github.com/rkarimi/simbazaar/pkg/database"
)

// PostgresOrderRepository implements orders.OrderRepository using pgx
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository
func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

// CreateOrder inserts a new purchase order within a transaction
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *orders.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			id, buyer_id, seller_id, sim_card_id, price,
			commission_percentage, commission_amount, seller_received_amount,
			buyer_blocked_amount, status, escrow_state, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.Exec(ctx, query,
		order.ID,
		order.BuyerID,
		order.SellerID,
		order.SimCardID,
		order.Price,
		order.CommissionPercentage,
		order.CommissionAmount,
		order.SellerReceivedAmount,
		order.BuyerBlockedAmount,
		order.Status,
		order.EscrowState,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order (non-transactional read)
func (r *PostgresOrderRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*orders.PurchaseOrder, error) {
	return r.getOrder(ctx, r.pool, orderID, false)
}

// GetOrderByIDForUpdate retrieves an order and locks its row
func (r *PostgresOrderRepository) GetOrderByIDForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*orders.PurchaseOrder, error) {
	return r.getOrder(ctx, tx, orderID, true)
}

func (r *PostgresOrderRepository) getOrder(ctx context.Context, db pkgdb.DBTX, orderID uuid.UUID, forUpdate bool) (*orders.PurchaseOrder, error) {
	query := `
		SELECT id, buyer_id, seller_id, sim_card_id, price,
			commission_percentage, commission_amount, seller_received_amount,
			buyer_blocked_amount, status, escrow_state, created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var order orders.PurchaseOrder
	err := db.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.BuyerID,
		&order.SellerID,
		&order.SimCardID,
		&order.Price,
		&order.CommissionPercentage,
		&order.CommissionAmount,
		&order.SellerReceivedAmount,
		&order.BuyerBlockedAmount,
		&order.Status,
		&order.EscrowState,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orders.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// UpdateOrderState writes the order's status and escrow state
func (r *PostgresOrderRepository) UpdateOrderState(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status orders.Status, escrow orders.EscrowState) error {
	query := `
		UPDATE purchase_orders
		SET status = $1, escrow_state = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, status, escrow, time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}

	return nil
}
