package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkarimi/simbazaar/internal/domain/auctions"
)

// PostgresBidRepository implements auctions.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid appends a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auctions.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, user_id, amount, created_at, released_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.UserID,
		bid.Amount,
		bid.CreatedAt,
		bid.ReleasedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidsByAuctionID retrieves all bids for an auction in chronological order
func (r *PostgresBidRepository) GetBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*auctions.Bid, error) {
	query := `
		SELECT id, auction_id, user_id, amount, created_at, released_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	return scanBids(rows)
}

// GetUnreleasedBids retrieves bids whose reservations are still held, locked
// for the duration of the settlement transaction
func (r *PostgresBidRepository) GetUnreleasedBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]*auctions.Bid, error) {
	query := `
		SELECT id, auction_id, user_id, amount, created_at, released_at
		FROM bids
		WHERE auction_id = $1 AND released_at IS NULL
		ORDER BY created_at ASC
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unreleased bids: %w", err)
	}
	defer rows.Close()

	return scanBids(rows)
}

// ReleaseBids marks all of a user's unreleased bids on an auction as released
func (r *PostgresBidRepository) ReleaseBids(ctx context.Context, tx pgx.Tx, auctionID, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE bids
		SET released_at = $1
		WHERE auction_id = $2 AND user_id = $3 AND released_at IS NULL
	`
	if _, err := tx.Exec(ctx, query, at, auctionID, userID); err != nil {
		return fmt.Errorf("failed to release bids: %w", err)
	}
	return nil
}

func scanBids(rows pgx.Rows) ([]*auctions.Bid, error) {
	var result []*auctions.Bid
	for rows.Next() {
		var bid auctions.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.UserID,
			&bid.Amount,
			&bid.CreatedAt,
			&bid.ReleasedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
