package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimi/simbazaar/pkg/database"
)

// Ledger is the sole mutator of account balances. Other services compose its
// transactional primitives (Block/Unblock/Capture/Credit/Debit) into their own
// units of work by passing the surrounding pgx.Tx; no component touches a
// balance column directly.
type Ledger struct {
	txManager database.TransactionManager
	accounts  AccountRepository
}

// NewLedger creates a new wallet ledger
func NewLedger(txManager database.TransactionManager, accounts AccountRepository) *Ledger {
	return &Ledger{
		txManager: txManager,
		accounts:  accounts,
	}
}

// Block reserves amount from the account's wallet balance.
func (l *Ledger) Block(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	return l.apply(ctx, tx, accountID, func(a *Account) error { return a.Block(amount) })
}

// Unblock returns a previously blocked amount to the wallet balance.
func (l *Ledger) Unblock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	return l.apply(ctx, tx, accountID, func(a *Account) error { return a.Unblock(amount) })
}

// Capture removes a blocked amount permanently; the funds leave the account.
func (l *Ledger) Capture(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	return l.apply(ctx, tx, accountID, func(a *Account) error { return a.Capture(amount) })
}

// Credit adds amount to the wallet balance.
func (l *Ledger) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	return l.apply(ctx, tx, accountID, func(a *Account) error { return a.Credit(amount) })
}

// Debit removes amount from the wallet balance without escrow.
func (l *Ledger) Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	return l.apply(ctx, tx, accountID, func(a *Account) error { return a.Debit(amount) })
}

// apply locks the account row, applies the mutation, and writes both balances
// back. Validation failures surface as the account's sentinel errors and the
// row stays untouched (the caller's transaction rolls back).
func (l *Ledger) apply(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, mutate func(*Account) error) error {
	account, err := l.accounts.GetAccountByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return err
	}

	if err := mutate(account); err != nil {
		return err
	}

	if err := l.accounts.UpdateBalances(ctx, tx, accountID, account.WalletBalance, account.BlockedBalance); err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}

	return nil
}

// CreateAccount provisions an empty wallet for a user.
func (l *Ledger) CreateAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	account := &Account{
		ID:        accountID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := l.accounts.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetBalance returns the account's current wallet and blocked balances.
func (l *Ledger) GetBalance(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return l.accounts.GetAccountByID(ctx, accountID)
}

// Deposit credits amount to the wallet as a standalone transaction.
func (l *Ledger) Deposit(ctx context.Context, accountID uuid.UUID, amount int64) error {
	tx, err := l.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := l.Credit(ctx, tx, accountID, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Withdraw debits amount from the wallet as a standalone transaction.
func (l *Ledger) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) error {
	tx, err := l.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := l.Debit(ctx, tx, accountID, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
