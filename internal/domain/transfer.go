package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrTransferNotFound is returned when a transfer id is unknown.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrSameAccount is returned when source and target accounts are identical.
	ErrSameAccount = errors.New("source and target accounts cannot be the same")

	// ErrNonPositiveAmount is returned when the transfer amount is zero or negative.
	ErrNonPositiveAmount = errors.New("transfer amount must be positive")
)

// TransferStatus represents the lifecycle state of a transfer job.
type TransferStatus string

const (
	StatusInProgress        TransferStatus = "IN_PROGRESS"
	StatusDebitSuccess      TransferStatus = "DEBIT_SUCCESS"
	StatusSuccess           TransferStatus = "SUCCESS"
	StatusInsufficientFunds TransferStatus = "INSUFFICIENT_FUNDS"
	StatusFailed            TransferStatus = "FAILED"
	StatusTimedOut          TransferStatus = "TIMED_OUT"
)

// Terminal reports whether no further status transitions can occur.
func (s TransferStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusInsufficientFunds, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// TransferJob represents a funds-transfer job in the domain layer.
// TransferID, the account ids and Amount are immutable after creation;
// only Status (and UpdatedAt) change, driven by stage outcomes.
type TransferJob struct {
	TransferID      uuid.UUID
	SourceAccountID string
	TargetAccountID string
	Amount          decimal.Decimal
	Status          TransferStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTransferJob creates an IN_PROGRESS job with a freshly assigned transfer id.
func NewTransferJob(sourceID, targetID string, amount decimal.Decimal) *TransferJob {
	now := time.Now()
	return &TransferJob{
		TransferID:      uuid.New(),
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          amount,
		Status:          StatusInProgress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate ensures the transfer job adheres to domain rules.
func (j *TransferJob) Validate() error {
	if j.SourceAccountID == "" || j.TargetAccountID == "" {
		return ErrInvalidAccountID
	}
	if j.SourceAccountID == j.TargetAccountID {
		return ErrSameAccount
	}
	if j.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}
	return nil
}
