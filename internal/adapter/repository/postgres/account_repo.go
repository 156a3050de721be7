package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// accountRepository implements domain.AccountRepository on PostgreSQL.
// The replay guard is a (transfer_id, stage) row inserted in the same
// database transaction as the balance update, so a replayed stage observes
// the conflict and skips the mutation.
type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (account_id, balance)
		VALUES ($1, $2)
	`

	_, err := r.db.ExecContext(ctx, query, account.AccountID, account.Balance.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Get retrieves a balance snapshot for an account
func (r *accountRepository) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `
		SELECT account_id, balance
		FROM accounts
		WHERE account_id = $1
	`

	var account domain.Account
	var balanceStr string

	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&account.AccountID, &balanceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance

	return &account, nil
}

// Debit subtracts amount from the account balance, guarded against both
// insufficient funds and stage replay.
func (r *accountRepository) Debit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	return r.applyStage(ctx, accountID, transferID, "DEBIT", `
		UPDATE accounts
		SET balance = balance - $1
		WHERE account_id = $2 AND balance >= $1
	`, amount)
}

// Credit adds amount to the account balance, guarded against stage replay.
func (r *accountRepository) Credit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	return r.applyStage(ctx, accountID, transferID, "CREDIT", `
		UPDATE accounts
		SET balance = balance + $1
		WHERE account_id = $2
	`, amount)
}

// applyStage records the stage as applied and runs the balance update inside
// one database transaction.
func (r *accountRepository) applyStage(ctx context.Context, accountID string, transferID uuid.UUID, stage, updateQuery string, amount decimal.Decimal) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	guardQuery := `
		INSERT INTO transfer_stage_applies (transfer_id, stage)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	res, err := dbTx.ExecContext(ctx, guardQuery, transferID, stage)
	if err != nil {
		return fmt.Errorf("failed to record stage: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read stage result: %w", err)
	}
	if inserted == 0 {
		// Stage already applied for this transfer id; skip the mutation.
		return dbTx.Commit()
	}

	res, err = dbTx.ExecContext(ctx, updateQuery, amount.String(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if updated == 0 {
		// Distinguish a missing account from an uncovered debit.
		var exists bool
		if err := dbTx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1)`, accountID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account existence: %w", err)
		}
		if !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrInsufficientFunds
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
