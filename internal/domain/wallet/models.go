package wallet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Balance mutation errors. ErrInvalidLedgerState means a caller tried to
// release or capture more than is blocked, which is a bookkeeping bug
// upstream, never something to clamp over.
var (
	ErrInvalidAmount      = fmt.Errorf("amount must be positive")
	ErrInsufficientFunds  = fmt.Errorf("insufficient wallet balance")
	ErrInvalidLedgerState = fmt.Errorf("amount exceeds blocked balance")
	ErrAccountNotFound    = fmt.Errorf("account not found")
)

// Account is a user's wallet view: funds available to spend plus funds
// reserved against active bids and pending purchases.
type Account struct {
	ID             uuid.UUID `db:"id"`
	WalletBalance  int64     `db:"wallet_balance"`
	BlockedBalance int64     `db:"blocked_balance"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Block moves amount from the wallet to the blocked balance.
func (a *Account) Block(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.WalletBalance < amount {
		return ErrInsufficientFunds
	}
	a.WalletBalance -= amount
	a.BlockedBalance += amount
	return nil
}

// Unblock returns amount from the blocked balance to the wallet.
func (a *Account) Unblock(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.BlockedBalance < amount {
		return ErrInvalidLedgerState
	}
	a.BlockedBalance -= amount
	a.WalletBalance += amount
	return nil
}

// Capture removes amount from the blocked balance permanently; the funds
// leave this account (e.g. paid out to a seller).
func (a *Account) Capture(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.BlockedBalance < amount {
		return ErrInvalidLedgerState
	}
	a.BlockedBalance -= amount
	return nil
}

// Credit adds amount directly to the wallet.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.WalletBalance += amount
	return nil
}

// Debit removes amount directly from the wallet (non-escrow spend).
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.WalletBalance < amount {
		return ErrInsufficientFunds
	}
	a.WalletBalance -= amount
	return nil
}
