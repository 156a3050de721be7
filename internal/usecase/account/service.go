package account

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// Service handles account creation and lookup operations.
type Service struct {
	Accounts domain.AccountRepository
}

// NewService creates a new account Service instance.
func NewService(accounts domain.AccountRepository) *Service {
	return &Service{Accounts: accounts}
}

// Create opens an account with the given id and initial balance.
func (s *Service) Create(ctx context.Context, accountID string, initialBalance decimal.Decimal) (*domain.Account, error) {
	acc := &domain.Account{
		AccountID: accountID,
		Balance:   initialBalance,
	}
	if err := acc.Validate(); err != nil {
		return nil, err
	}
	if err := s.Accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Get retrieves a balance snapshot for an account.
func (s *Service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidAccountID
	}
	return s.Accounts.Get(ctx, accountID)
}
