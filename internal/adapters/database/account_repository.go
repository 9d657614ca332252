package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkarimi/simbazaar/internal/domain/wallet"
	pkgdb "github.com/rkarimi/simbazaar/pkg/database"
)

// PostgresAccountRepository implements wallet.AccountRepository using pgx
type PostgresAccountRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// CreateAccount inserts a new account with zero balances
func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, account *wallet.Account) error {
	query := `
		INSERT INTO accounts (id, wallet_balance, blocked_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.WalletBalance,
		account.BlockedBalance,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account (non-transactional read)
func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*wallet.Account, error) {
	return r.getAccount(ctx, r.pool, accountID, false)
}

// GetAccountByIDForUpdate retrieves an account and locks its row
func (r *PostgresAccountRepository) GetAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*wallet.Account, error) {
	return r.getAccount(ctx, tx, accountID, true)
}

func (r *PostgresAccountRepository) getAccount(ctx context.Context, db pkgdb.DBTX, accountID uuid.UUID, forUpdate bool) (*wallet.Account, error) {
	query := `
		SELECT id, wallet_balance, blocked_balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var account wallet.Account
	err := db.QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.WalletBalance,
		&account.BlockedBalance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// UpdateBalances writes both balance columns within a transaction
func (r *PostgresAccountRepository) UpdateBalances(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, walletBalance, blockedBalance int64) error {
	query := `
		UPDATE accounts
		SET wallet_balance = $1, blocked_balance = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, walletBalance, blockedBalance, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrAccountNotFound
	}

	return nil
}
