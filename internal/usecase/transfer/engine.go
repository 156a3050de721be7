package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
	"github.com/nmacedo/fundsflow-backend/internal/worker"
)

const (
	defaultMaxAttempts = 50
	defaultBackoffStep = 10 * time.Millisecond
)

// EngineConfig controls stage retry behaviour and pool sizing.
type EngineConfig struct {
	// MaxAttempts is the retry ceiling per stage; exceeding it marks the job TIMED_OUT.
	MaxAttempts int
	// BackoffStep scales the re-enqueue delay: attempt n waits n * BackoffStep.
	BackoffStep time.Duration
	// Worker counts for the three pools.
	DebitWorkers  int
	CreditWorkers int
	NotifyWorkers int
	// QueueSize bounds each pool's task queue.
	QueueSize int
}

// Engine drives the transfer state machine. Debit stages, credit stages and
// notifications run on separate pools so none of them can starve the others.
// A stage that finds its account busy re-enqueues itself after a delay instead
// of sleeping on the worker, keeping workers free for unrelated transfers.
type Engine struct {
	accounts domain.AccountRepository
	jobs     domain.TransferRepository
	registry *AccountRegistry
	notifier domain.Notifier
	logger   *slog.Logger
	cfg      EngineConfig

	debitPool  *worker.Pool
	creditPool *worker.Pool
	notifyPool *worker.Pool
}

// NewEngine creates an engine and starts its worker pools.
func NewEngine(
	accounts domain.AccountRepository,
	jobs domain.TransferRepository,
	registry *AccountRegistry,
	notifier domain.Notifier,
	logger *slog.Logger,
	cfg EngineConfig,
) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = defaultBackoffStep
	}
	return &Engine{
		accounts:   accounts,
		jobs:       jobs,
		registry:   registry,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
		debitPool:  worker.NewPool("debit", cfg.DebitWorkers, cfg.QueueSize, logger),
		creditPool: worker.NewPool("credit", cfg.CreditWorkers, cfg.QueueSize, logger),
		notifyPool: worker.NewPool("notify", cfg.NotifyWorkers, cfg.QueueSize, logger),
	}
}

// EnqueueDebit schedules the first debit attempt for a job. It never waits for
// the stage to run.
func (e *Engine) EnqueueDebit(job *domain.TransferJob) {
	j := *job
	if !e.debitPool.Submit(func() { e.runDebit(&j, 0) }) {
		e.logger.Warn("debit stage not enqueued, engine stopped", "transfer_id", job.TransferID)
	}
}

// Stop shuts down the worker pools and waits for in-flight stages.
func (e *Engine) Stop() {
	e.debitPool.Stop()
	e.creditPool.Stop()
	e.notifyPool.Stop()
}

// runDebit executes one debit attempt for a job.
func (e *Engine) runDebit(job *domain.TransferJob, attempt int) {
	if attempt > e.cfg.MaxAttempts {
		e.logger.Warn("debit retries exhausted",
			"transfer_id", job.TransferID, "account_id", job.SourceAccountID, "attempts", attempt)
		e.setStatus(job, domain.StatusTimedOut)
		return
	}

	if !e.registry.TryAcquire(job.SourceAccountID) {
		next := attempt + 1
		e.debitPool.SubmitAfter(e.backoff(next), func() { e.runDebit(job, next) })
		return
	}

	e.logger.Debug("initiating debit", "transfer_id", job.TransferID, "amount", job.Amount)
	err := e.applyStage(job.SourceAccountID, func() error {
		return e.accounts.Debit(context.Background(), job.SourceAccountID, job.TransferID, job.Amount)
	})

	switch {
	case err == nil:
		e.setStatus(job, domain.StatusDebitSuccess)
		e.notifyAsync(job.SourceAccountID,
			fmt.Sprintf("account %s debited by amount %s", job.SourceAccountID, job.Amount))
		if !e.creditPool.Submit(func() { e.runCredit(job, 0) }) {
			e.logger.Warn("credit stage not enqueued, engine stopped", "transfer_id", job.TransferID)
		}
	case errors.Is(err, domain.ErrInsufficientFunds):
		e.setStatus(job, domain.StatusInsufficientFunds)
	default:
		e.logger.Error("debit stage failed", "transfer_id", job.TransferID, "error", err)
		e.setStatus(job, domain.StatusFailed)
	}
}

// runCredit executes one credit attempt for a job. Credit has no
// insufficient-funds failure mode; once the ticket is granted it succeeds.
func (e *Engine) runCredit(job *domain.TransferJob, attempt int) {
	if attempt > e.cfg.MaxAttempts {
		e.logger.Warn("credit retries exhausted",
			"transfer_id", job.TransferID, "account_id", job.TargetAccountID, "attempts", attempt)
		e.setStatus(job, domain.StatusTimedOut)
		return
	}

	if !e.registry.TryAcquire(job.TargetAccountID) {
		next := attempt + 1
		e.creditPool.SubmitAfter(e.backoff(next), func() { e.runCredit(job, next) })
		return
	}

	e.logger.Debug("initiating credit", "transfer_id", job.TransferID, "amount", job.Amount)
	err := e.applyStage(job.TargetAccountID, func() error {
		return e.accounts.Credit(context.Background(), job.TargetAccountID, job.TransferID, job.Amount)
	})

	if err != nil {
		e.logger.Error("credit stage failed", "transfer_id", job.TransferID, "error", err)
		e.setStatus(job, domain.StatusFailed)
		return
	}

	e.setStatus(job, domain.StatusSuccess)
	e.notifyAsync(job.TargetAccountID,
		fmt.Sprintf("account %s credited with amount %s", job.TargetAccountID, job.Amount))
}

// applyStage runs a balance operation while holding the account's ticket.
// The ticket is released even if the operation panics, and the panic comes
// back as an error so the job transitions to FAILED instead of stranding
// IN_PROGRESS with the account marked busy forever.
func (e *Engine) applyStage(accountID string, op func() error) (err error) {
	defer e.registry.Release(accountID)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return op()
}

// backoff returns the re-enqueue delay for the given attempt number.
func (e *Engine) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * e.cfg.BackoffStep
}

// setStatus transitions the job and persists the new record.
func (e *Engine) setStatus(job *domain.TransferJob, status domain.TransferStatus) {
	job.Status = status
	job.UpdatedAt = time.Now()
	if err := e.jobs.Update(context.Background(), job); err != nil {
		e.logger.Error("failed to persist job status",
			"transfer_id", job.TransferID, "status", status, "error", err)
	}
}

// notifyAsync dispatches a notification on the notification pool. Delivery is
// best effort; a failure is logged and never reaches the job.
func (e *Engine) notifyAsync(accountID, description string) {
	submitted := e.notifyPool.Submit(func() {
		if err := e.notifier.NotifyAboutTransfer(context.Background(), accountID, description); err != nil {
			e.logger.Warn("notification failed", "account_id", accountID, "error", err)
		}
	})
	if !submitted {
		e.logger.Debug("notification dropped, engine stopped", "account_id", accountID)
	}
}
