package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateAccount is returned when creating an account whose id already exists.
	ErrDuplicateAccount = errors.New("account id already exists")

	// ErrAccountNotFound is returned when an account id is unknown.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAccountID is returned when an account id is empty or malformed.
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrNegativeBalance is returned when an account is created with a negative balance.
	ErrNegativeBalance = errors.New("initial balance cannot be negative")
)

// Account represents an account entity in the domain layer.
// The balance uses exact decimal arithmetic and must never go negative.
type Account struct {
	AccountID string
	Balance   decimal.Decimal
}

// Validate ensures the account adheres to domain rules.
func (a *Account) Validate() error {
	if a.AccountID == "" {
		return ErrInvalidAccountID
	}
	if a.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}
