package seeder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// AccountSeeder creates a set of accounts at startup. Used for development and
// demo deployments where the in-memory store starts empty.
type AccountSeeder struct {
	repo domain.AccountRepository
}

// NewAccountSeeder creates a new AccountSeeder instance.
func NewAccountSeeder(repo domain.AccountRepository) *AccountSeeder {
	return &AccountSeeder{repo: repo}
}

// Seed parses a "id:balance,id:balance" list and ensures each account exists.
// Accounts that already exist are left untouched.
func (s *AccountSeeder) Seed(ctx context.Context, list string) error {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	for _, entry := range strings.Split(list, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid seed entry %q, expected id:balance", entry)
		}

		balance, err := decimal.NewFromString(parts[1])
		if err != nil {
			return fmt.Errorf("invalid seed balance for account %s: %w", parts[0], err)
		}

		acc := &domain.Account{AccountID: parts[0], Balance: balance}
		if err := acc.Validate(); err != nil {
			return fmt.Errorf("invalid seed account %s: %w", parts[0], err)
		}

		if err := s.repo.Create(ctx, acc); err != nil {
			if errors.Is(err, domain.ErrDuplicateAccount) {
				continue
			}
			return fmt.Errorf("failed to seed account %s: %w", parts[0], err)
		}
	}
	return nil
}
