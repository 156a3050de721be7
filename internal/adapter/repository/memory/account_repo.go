package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// stage discriminates the two halves of a transfer in the applied-set keys.
type stage string

const (
	stageDebit  stage = "DEBIT"
	stageCredit stage = "CREDIT"
)

type appliedKey struct {
	transferID uuid.UUID
	stage      stage
}

// accountRepository implements domain.AccountRepository with an in-memory map.
// The mutex only guards map and balance access; ordering of whole debit/credit
// stages on the same account is the account registry's job, not this one's.
type accountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	applied  map[appliedKey]struct{}
}

// NewAccountRepository creates a new in-memory account repository.
func NewAccountRepository() domain.AccountRepository {
	return &accountRepository{
		accounts: make(map[string]*domain.Account),
		applied:  make(map[appliedKey]struct{}),
	}
}

// Create creates a new account, rejecting duplicate ids.
func (r *accountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.AccountID]; ok {
		return domain.ErrDuplicateAccount
	}
	r.accounts[account.AccountID] = &domain.Account{
		AccountID: account.AccountID,
		Balance:   account.Balance,
	}
	return nil
}

// Get retrieves a balance snapshot for an account.
func (r *accountRepository) Get(_ context.Context, accountID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.Account{AccountID: account.AccountID, Balance: account.Balance}, nil
}

// Debit atomically checks and subtracts amount from the account balance.
// A transfer id whose debit was already applied is skipped and reported as success.
func (r *accountRepository) Debit(_ context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}

	key := appliedKey{transferID: transferID, stage: stageDebit}
	if _, done := r.applied[key]; done {
		return nil
	}

	if account.Balance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}

	account.Balance = account.Balance.Sub(amount)
	r.applied[key] = struct{}{}
	return nil
}

// Credit adds amount to the account balance.
// A transfer id whose credit was already applied is skipped and reported as success.
func (r *accountRepository) Credit(_ context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}

	key := appliedKey{transferID: transferID, stage: stageCredit}
	if _, done := r.applied[key]; done {
		return nil
	}

	account.Balance = account.Balance.Add(amount)
	r.applied[key] = struct{}{}
	return nil
}
