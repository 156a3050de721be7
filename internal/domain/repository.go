package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account persistence operations.
// Debit and Credit are the only balance-mutating operations; callers serialize
// same-account calls through the account registry, and the repository keeps
// each stage idempotent per transfer id (the replay guard).
type AccountRepository interface {
	// Create creates a new account
	// Returns ErrDuplicateAccount if the account id already exists
	Create(ctx context.Context, account *Account) error

	// Get retrieves a balance snapshot for an account
	// Returns ErrAccountNotFound if the account id is unknown
	Get(ctx context.Context, accountID string) (*Account, error)

	// Debit subtracts amount from the account balance if it covers the amount,
	// otherwise returns ErrInsufficientFunds and leaves the balance unchanged.
	// A debit already applied for transferID is skipped and reported as success.
	Debit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error

	// Credit adds amount to the account balance.
	// A credit already applied for transferID is skipped and reported as success.
	Credit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error
}

// TransferRepository defines the interface for transfer-job persistence operations.
type TransferRepository interface {
	// Create inserts a new job; a second create with the same transfer id is a
	// no-op and does not overwrite the stored record
	Create(ctx context.Context, job *TransferJob) error

	// Find retrieves a job by transfer id
	// Returns ErrTransferNotFound if the transfer id is unknown
	Find(ctx context.Context, transferID uuid.UUID) (*TransferJob, error)

	// Update overwrites the stored record for job.TransferID
	Update(ctx context.Context, job *TransferJob) error
}

// Notifier sends best-effort notifications to account holders.
// Failures are logged and discarded; they never alter a job's outcome.
type Notifier interface {
	NotifyAboutTransfer(ctx context.Context, accountID, description string) error
}
