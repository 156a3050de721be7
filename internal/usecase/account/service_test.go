package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// MockAccountRepository is a mock implementation of AccountRepository for testing
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Debit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, accountID, transferID, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) Credit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, accountID, transferID, amount)
	return args.Error(0)
}

func TestCreateAccount(t *testing.T) {
	repo := new(MockAccountRepository)
	service := NewService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	acc, err := service.Create(context.Background(), "Id-123", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "Id-123", acc.AccountID)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(1000)))
	repo.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateAccountRejectsInvalidInput(t *testing.T) {
	repo := new(MockAccountRepository)
	service := NewService(repo)

	_, err := service.Create(context.Background(), "", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrInvalidAccountID)

	_, err = service.Create(context.Background(), "Id-123", decimal.NewFromInt(-10))
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateAccountPropagatesDuplicate(t *testing.T) {
	repo := new(MockAccountRepository)
	service := NewService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrDuplicateAccount)

	_, err := service.Create(context.Background(), "Id-123", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestGetAccount(t *testing.T) {
	repo := new(MockAccountRepository)
	service := NewService(repo)

	repo.On("Get", mock.Anything, "Id-123").Return(&domain.Account{
		AccountID: "Id-123", Balance: decimal.NewFromInt(42),
	}, nil)

	acc, err := service.Get(context.Background(), "Id-123")
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(42)))

	_, err = service.Get(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAccountID)
}
