package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// CreateAccount creates a new account row
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccountByID retrieves an account (non-transactional read)
	GetAccountByID(ctx context.Context, accountID uuid.UUID) (*Account, error)

	// GetAccountByIDForUpdate retrieves an account and locks its row.
	// Every balance mutation goes through this lock so concurrent
	// operations on the same account serialize.
	GetAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*Account, error)

	// UpdateBalances writes both balance columns within a transaction
	UpdateBalances(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, walletBalance, blockedBalance int64) error
}
