package transfer

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// SubmitInput represents the input for submitting a funds transfer.
type SubmitInput struct {
	SourceAccountID string
	TargetAccountID string
	Amount          decimal.Decimal
}

// Service handles transfer submission and status lookup. Submission records
// the job and hands it to the engine; callers observe progress by polling.
type Service struct {
	Accounts domain.AccountRepository
	Jobs     domain.TransferRepository
	Engine   *Engine
}

// NewService creates a new transfer Service instance.
func NewService(accounts domain.AccountRepository, jobs domain.TransferRepository, engine *Engine) *Service {
	return &Service{
		Accounts: accounts,
		Jobs:     jobs,
		Engine:   engine,
	}
}

// Submit validates the request, persists an IN_PROGRESS job and enqueues the
// debit stage. It returns the job immediately without waiting for completion.
// The balance check here is advisory only; the debit stage re-checks it
// authoritatively since the balance may change before the stage runs.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*domain.TransferJob, error) {
	if input.SourceAccountID == "" || input.TargetAccountID == "" {
		return nil, domain.ErrInvalidAccountID
	}
	if input.SourceAccountID == input.TargetAccountID {
		return nil, domain.ErrSameAccount
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrNonPositiveAmount
	}

	source, err := s.Accounts.Get(ctx, input.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Accounts.Get(ctx, input.TargetAccountID); err != nil {
		return nil, err
	}
	if source.Balance.LessThan(input.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	job := domain.NewTransferJob(input.SourceAccountID, input.TargetAccountID, input.Amount)
	if err := s.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.Engine.EnqueueDebit(job)

	out := *job
	return &out, nil
}

// GetStatus returns the current job record for a transfer id.
func (s *Service) GetStatus(ctx context.Context, transferID uuid.UUID) (*domain.TransferJob, error) {
	return s.Jobs.Find(ctx, transferID)
}
