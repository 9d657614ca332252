package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkarimi/simbazaar/internal/domain/listings"
	pkgdb "github.com/rkarimi/simbazaar/pkg/database"
)

// PostgresListingRepository implements listings.Repository (and the narrower
// listing ports of the auction and order services) using pgx
type PostgresListingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresListingRepository creates a new PostgreSQL listing repository
func NewPostgresListingRepository(pool *pgxpool.Pool) *PostgresListingRepository {
	return &PostgresListingRepository{pool: pool}
}

// CreateListing inserts a new SIM card listing
func (r *PostgresListingRepository) CreateListing(ctx context.Context, sim *listings.SimCard) error {
	query := `
		INSERT INTO sim_cards (id, seller_id, number, sale_type, status, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		sim.ID,
		sim.SellerID,
		sim.Number,
		sim.SaleType,
		sim.Status,
		sim.Price,
		sim.CreatedAt,
		sim.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// GetListingByID retrieves a listing (non-transactional read)
func (r *PostgresListingRepository) GetListingByID(ctx context.Context, simCardID uuid.UUID) (*listings.SimCard, error) {
	return r.getListing(ctx, r.pool, simCardID, false)
}

// GetListingByIDForUpdate retrieves a listing and locks its row
func (r *PostgresListingRepository) GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID) (*listings.SimCard, error) {
	return r.getListing(ctx, tx, simCardID, true)
}

func (r *PostgresListingRepository) getListing(ctx context.Context, db pkgdb.DBTX, simCardID uuid.UUID, forUpdate bool) (*listings.SimCard, error) {
	query := `
		SELECT id, seller_id, number, sale_type, status, price, created_at, updated_at
		FROM sim_cards
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var sim listings.SimCard
	err := db.QueryRow(ctx, query, simCardID).Scan(
		&sim.ID,
		&sim.SellerID,
		&sim.Number,
		&sim.SaleType,
		&sim.Status,
		&sim.Price,
		&sim.CreatedAt,
		&sim.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, listings.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &sim, nil
}

// UpdateListingStatus flips a listing's status within a transaction
func (r *PostgresListingRepository) UpdateListingStatus(ctx context.Context, tx pgx.Tx, simCardID uuid.UUID, status listings.Status) error {
	query := `
		UPDATE sim_cards
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := tx.Exec(ctx, query, status, time.Now(), simCardID)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return listings.ErrListingNotFound
	}

	return nil
}

// ListAvailable retrieves available listings with pagination
func (r *PostgresListingRepository) ListAvailable(ctx context.Context, limit, offset int) ([]*listings.SimCard, error) {
	query := `
		SELECT id, seller_id, number, sale_type, status, price, created_at, updated_at
		FROM sim_cards
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, listings.StatusAvailable, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var result []*listings.SimCard
	for rows.Next() {
		var sim listings.SimCard
		if err := rows.Scan(
			&sim.ID,
			&sim.SellerID,
			&sim.Number,
			&sim.SaleType,
			&sim.Status,
			&sim.Price,
			&sim.CreatedAt,
			&sim.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		result = append(result, &sim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return result, nil
}
