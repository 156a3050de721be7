package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// transferRepository implements domain.TransferRepository on PostgreSQL.
type transferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *sql.DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// Create inserts a new job; replays of the same transfer id are no-ops
func (r *transferRepository) Create(ctx context.Context, job *domain.TransferJob) error {
	query := `
		INSERT INTO transfer_jobs (transfer_id, source_account_id, target_account_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transfer_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		job.TransferID,
		job.SourceAccountID,
		job.TargetAccountID,
		job.Amount.String(),
		string(job.Status),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer job: %w", err)
	}
	return nil
}

// Find retrieves a job by transfer id
func (r *transferRepository) Find(ctx context.Context, transferID uuid.UUID) (*domain.TransferJob, error) {
	query := `
		SELECT transfer_id, source_account_id, target_account_id, amount, status, created_at, updated_at
		FROM transfer_jobs
		WHERE transfer_id = $1
	`

	var job domain.TransferJob
	var amountStr, statusStr string

	err := r.db.QueryRowContext(ctx, query, transferID).Scan(
		&job.TransferID,
		&job.SourceAccountID,
		&job.TargetAccountID,
		&amountStr,
		&statusStr,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer job: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	job.Amount = amount
	job.Status = domain.TransferStatus(statusStr)

	return &job, nil
}

// Update overwrites the stored record for job.TransferID
func (r *transferRepository) Update(ctx context.Context, job *domain.TransferJob) error {
	query := `
		UPDATE transfer_jobs
		SET status = $2, updated_at = $3
		WHERE transfer_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, job.TransferID, string(job.Status), job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update transfer job: %w", err)
	}
	return nil
}
