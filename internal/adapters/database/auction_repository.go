package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkarimi/simbazaar/internal/domain/auctions"
	pkgdb "github.com/rkarimi/simbazaar/pkg/database"
)

const uniqueViolationCode = "23505"

// PostgresAuctionRepository implements auctions.AuctionRepository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// CreateAuction inserts a new auction row
func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, auction *auctions.Auction) error {
	query := `
		INSERT INTO auctions (id, sim_card_id, base_price, current_bid, highest_bidder_id, end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		auction.ID,
		auction.SimCardID,
		auction.BasePrice,
		auction.CurrentBid,
		auction.HighestBidderID,
		auction.EndAt,
		auction.CreatedAt,
		auction.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return auctions.ErrAuctionExists
		}
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetAuctionByID retrieves an auction (non-transactional read)
func (r *PostgresAuctionRepository) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	return r.getAuction(ctx, r.pool, auctionID, false)
}

// GetAuctionByIDForUpdate retrieves an auction and locks its row.
// Concurrent bids on the same auction serialize on this lock.
func (r *PostgresAuctionRepository) GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auctions.Auction, error) {
	return r.getAuction(ctx, tx, auctionID, true)
}

func (r *PostgresAuctionRepository) getAuction(ctx context.Context, db pkgdb.DBTX, auctionID uuid.UUID, forUpdate bool) (*auctions.Auction, error) {
	query := `
		SELECT id, sim_card_id, base_price, current_bid, highest_bidder_id, end_at, created_at, updated_at
		FROM auctions
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var auction auctions.Auction
	err := db.QueryRow(ctx, query, auctionID).Scan(
		&auction.ID,
		&auction.SimCardID,
		&auction.BasePrice,
		&auction.CurrentBid,
		&auction.HighestBidderID,
		&auction.EndAt,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &auction, nil
}

// UpdateLeader records the new highest bid within a transaction
func (r *PostgresAuctionRepository) UpdateLeader(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount int64, bidderID uuid.UUID) error {
	query := `
		UPDATE auctions
		SET current_bid = $1, highest_bidder_id = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, amount, bidderID, time.Now(), auctionID)
	if err != nil {
		return fmt.Errorf("failed to update auction leader: %w", err)
	}

	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotFound
	}

	return nil
}
