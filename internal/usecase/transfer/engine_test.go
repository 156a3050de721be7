package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmacedo/fundsflow-backend/internal/adapter/repository/memory"
	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyAboutTransfer(_ context.Context, accountID, description string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, accountID+": "+description)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type engineFixture struct {
	engine   *Engine
	service  *Service
	accounts domain.AccountRepository
	jobs     domain.TransferRepository
	notifier *recordingNotifier
	registry *AccountRegistry
}

func newEngineFixture(t *testing.T, cfg EngineConfig) *engineFixture {
	t.Helper()

	if cfg.BackoffStep == 0 {
		cfg.BackoffStep = time.Millisecond
	}

	accounts := memory.NewAccountRepository()
	jobs := memory.NewTransferRepository()
	registry := NewAccountRegistry()
	notif := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(accounts, jobs, registry, notif, logger, cfg)
	t.Cleanup(engine.Stop)

	return &engineFixture{
		engine:   engine,
		service:  NewService(accounts, jobs, engine),
		accounts: accounts,
		jobs:     jobs,
		notifier: notif,
		registry: registry,
	}
}

func (f *engineFixture) createAccount(t *testing.T, id string, balance int64) {
	t.Helper()
	err := f.accounts.Create(context.Background(), &domain.Account{
		AccountID: id,
		Balance:   decimal.NewFromInt(balance),
	})
	require.NoError(t, err)
}

func (f *engineFixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.Get(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func (f *engineFixture) waitTerminal(t *testing.T, transferID uuid.UUID) domain.TransferStatus {
	t.Helper()
	var status domain.TransferStatus
	require.Eventually(t, func() bool {
		job, err := f.jobs.Find(context.Background(), transferID)
		if err != nil {
			return false
		}
		status = job.Status
		return status.Terminal()
	}, 5*time.Second, 2*time.Millisecond, "transfer %s never reached a terminal status", transferID)
	return status
}

func TestTransferHappyPath(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{})
	f.createAccount(t, "A", 1000)
	f.createAccount(t, "B", 2000)

	job, err := f.service.Submit(context.Background(), SubmitInput{
		SourceAccountID: "A",
		TargetAccountID: "B",
		Amount:          decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, job.Status)

	status := f.waitTerminal(t, job.TransferID)
	assert.Equal(t, domain.StatusSuccess, status)
	assert.True(t, f.balance(t, "A").Equal(decimal.NewFromInt(900)))
	assert.True(t, f.balance(t, "B").Equal(decimal.NewFromInt(2100)))

	// Both account holders are notified, eventually.
	require.Eventually(t, func() bool { return f.notifier.count() == 2 },
		2*time.Second, 2*time.Millisecond)
}

func TestTransferInsufficientFundsAtSubmission(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{})
	f.createAccount(t, "A", 100)
	f.createAccount(t, "B", 0)

	_, err := f.service.Submit(context.Background(), SubmitInput{
		SourceAccountID: "A",
		TargetAccountID: "B",
		Amount:          decimal.NewFromInt(200),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.True(t, f.balance(t, "A").Equal(decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, "B").Equal(decimal.Zero))
}

func TestConcurrentTransfersSamePairNoLostUpdates(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{DebitWorkers: 8, CreditWorkers: 8})
	f.createAccount(t, "A", 5000)
	f.createAccount(t, "B", 4000)

	const transfers = 20
	ids := make([]uuid.UUID, 0, transfers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.service.Submit(context.Background(), SubmitInput{
				SourceAccountID: "A",
				TargetAccountID: "B",
				Amount:          decimal.NewFromInt(100),
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids = append(ids, job.TransferID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, domain.StatusSuccess, f.waitTerminal(t, id))
	}
	assert.True(t, f.balance(t, "A").Equal(decimal.NewFromInt(3000)))
	assert.True(t, f.balance(t, "B").Equal(decimal.NewFromInt(6000)))
}

func TestConcurrentTransfersDrainSourceConsistently(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{DebitWorkers: 8, CreditWorkers: 8})
	f.createAccount(t, "X", 500)
	f.createAccount(t, "Y", 0)

	// 10 transfers of 100 against a balance of 500: each must end SUCCESS or
	// INSUFFICIENT_FUNDS, and the final balance must match the success count.
	const transfers = 10
	amount := decimal.NewFromInt(100)
	ids := make(chan uuid.UUID, transfers)
	var wg sync.WaitGroup

	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.service.Submit(context.Background(), SubmitInput{
				SourceAccountID: "X",
				TargetAccountID: "Y",
				Amount:          amount,
			})
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return // rejected by the advisory check, no job created
			}
			if !assert.NoError(t, err) {
				return
			}
			ids <- job.TransferID
		}()
	}
	wg.Wait()
	close(ids)

	succeeded := 0
	for id := range ids {
		switch status := f.waitTerminal(t, id); status {
		case domain.StatusSuccess:
			succeeded++
		case domain.StatusInsufficientFunds:
		default:
			t.Fatalf("unexpected terminal status %s", status)
		}
	}

	require.LessOrEqual(t, succeeded, 5)
	want := decimal.NewFromInt(500 - int64(succeeded)*100)
	assert.True(t, f.balance(t, "X").Equal(want),
		"balance %s does not match %d successful transfers", f.balance(t, "X"), succeeded)
	assert.True(t, f.balance(t, "Y").Equal(decimal.NewFromInt(int64(succeeded)*100)))
}

func TestConcurrentTransfersDisjointPairs(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{DebitWorkers: 8, CreditWorkers: 8})

	const pairs = 10
	for i := 0; i < pairs; i++ {
		f.createAccount(t, fmt.Sprintf("src-%d", i), 1000)
		f.createAccount(t, fmt.Sprintf("dst-%d", i), 0)
	}

	ids := make([]uuid.UUID, 0, pairs)
	for i := 0; i < pairs; i++ {
		job, err := f.service.Submit(context.Background(), SubmitInput{
			SourceAccountID: fmt.Sprintf("src-%d", i),
			TargetAccountID: fmt.Sprintf("dst-%d", i),
			Amount:          decimal.NewFromInt(250),
		})
		require.NoError(t, err)
		ids = append(ids, job.TransferID)
	}

	for i, id := range ids {
		assert.Equal(t, domain.StatusSuccess, f.waitTerminal(t, id))
		assert.True(t, f.balance(t, fmt.Sprintf("src-%d", i)).Equal(decimal.NewFromInt(750)))
		assert.True(t, f.balance(t, fmt.Sprintf("dst-%d", i)).Equal(decimal.NewFromInt(250)))
	}
}

func TestStageReplayAppliesBalanceEffectsOnce(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{})
	f.createAccount(t, "A", 1000)
	f.createAccount(t, "B", 2000)

	job := domain.NewTransferJob("A", "B", decimal.NewFromInt(100))
	require.NoError(t, f.jobs.Create(context.Background(), job))

	// Simulate re-delivery of the debit stage: both runs complete the state
	// machine, but the ledger must see one debit and one credit.
	first := *job
	second := *job
	f.engine.runDebit(&first, 0)
	f.engine.runDebit(&second, 0)

	require.Eventually(t, func() bool {
		stored, err := f.jobs.Find(context.Background(), job.TransferID)
		return err == nil && stored.Status == domain.StatusSuccess
	}, 5*time.Second, 2*time.Millisecond)

	assert.True(t, f.balance(t, "A").Equal(decimal.NewFromInt(900)))
	assert.True(t, f.balance(t, "B").Equal(decimal.NewFromInt(2100)))
}

func TestDebitContentionTimesOut(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{MaxAttempts: 3})
	f.createAccount(t, "A", 1000)
	f.createAccount(t, "B", 0)

	// Hold the source account for the whole test so every attempt is denied.
	require.True(t, f.registry.TryAcquire("A"))
	defer f.registry.Release("A")

	job, err := f.service.Submit(context.Background(), SubmitInput{
		SourceAccountID: "A",
		TargetAccountID: "B",
		Amount:          decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTimedOut, f.waitTerminal(t, job.TransferID))
	assert.True(t, f.balance(t, "A").Equal(decimal.NewFromInt(1000)))
	assert.True(t, f.balance(t, "B").Equal(decimal.Zero))
}

func TestCreditContentionRetriesUntilReleased(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{})
	f.createAccount(t, "A", 1000)
	f.createAccount(t, "B", 0)

	require.True(t, f.registry.TryAcquire("B"))

	job, err := f.service.Submit(context.Background(), SubmitInput{
		SourceAccountID: "A",
		TargetAccountID: "B",
		Amount:          decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// The debit completes but the credit keeps getting denied.
	require.Eventually(t, func() bool {
		stored, err := f.jobs.Find(context.Background(), job.TransferID)
		return err == nil && stored.Status == domain.StatusDebitSuccess
	}, 5*time.Second, 2*time.Millisecond)

	f.registry.Release("B")

	assert.Equal(t, domain.StatusSuccess, f.waitTerminal(t, job.TransferID))
	assert.True(t, f.balance(t, "B").Equal(decimal.NewFromInt(100)))
}

func TestHeldTicketDoesNotBlockOtherAccounts(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{})
	f.createAccount(t, "A", 1000)
	f.createAccount(t, "C", 1000)
	f.createAccount(t, "D", 0)

	// A stuck ticket on one account must not serialize work on others.
	require.True(t, f.registry.TryAcquire("A"))
	defer f.registry.Release("A")

	job, err := f.service.Submit(context.Background(), SubmitInput{
		SourceAccountID: "C",
		TargetAccountID: "D",
		Amount:          decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, f.waitTerminal(t, job.TransferID))
	assert.True(t, f.balance(t, "C").Equal(decimal.NewFromInt(900)))
	assert.True(t, f.balance(t, "D").Equal(decimal.NewFromInt(100)))
}

// panickyAccountRepository panics on the first debit of one account.
type panickyAccountRepository struct {
	domain.AccountRepository
	targetID string
	tripped  atomic.Bool
}

func (r *panickyAccountRepository) Debit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	if accountID == r.targetID && !r.tripped.Swap(true) {
		panic("storage driver crashed")
	}
	return r.AccountRepository.Debit(ctx, accountID, transferID, amount)
}

func TestStagePanicFailsJobAndReleasesTicket(t *testing.T) {
	accounts := memory.NewAccountRepository()
	panicky := &panickyAccountRepository{AccountRepository: accounts, targetID: "A"}
	jobs := memory.NewTransferRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(panicky, jobs, NewAccountRegistry(), &recordingNotifier{}, logger,
		EngineConfig{BackoffStep: time.Millisecond})
	t.Cleanup(engine.Stop)
	service := NewService(panicky, jobs, engine)

	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, &domain.Account{
		AccountID: "A", Balance: decimal.NewFromInt(1000),
	}))
	require.NoError(t, accounts.Create(ctx, &domain.Account{
		AccountID: "B", Balance: decimal.Zero,
	}))

	crashed, err := service.Submit(ctx, SubmitInput{
		SourceAccountID: "A", TargetAccountID: "B", Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// The panicking stage must terminate the job, not strand it IN_PROGRESS.
	var status domain.TransferStatus
	require.Eventually(t, func() bool {
		job, err := jobs.Find(ctx, crashed.TransferID)
		if err != nil {
			return false
		}
		status = job.Status
		return status.Terminal()
	}, 5*time.Second, 2*time.Millisecond)
	assert.Equal(t, domain.StatusFailed, status)

	acc, err := accounts.Get(ctx, "A")
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(1000)))

	// The ticket was released: a later transfer on the same account succeeds
	// instead of exhausting its retries.
	healthy, err := service.Submit(ctx, SubmitInput{
		SourceAccountID: "A", TargetAccountID: "B", Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := jobs.Find(ctx, healthy.TransferID)
		return err == nil && job.Status == domain.StatusSuccess
	}, 5*time.Second, 2*time.Millisecond)

	acc, err = accounts.Get(ctx, "A")
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(900)))
}

// faultyAccountRepository fails debits on one account to exercise fault isolation.
type faultyAccountRepository struct {
	domain.AccountRepository
	poisonedID string
}

func (r *faultyAccountRepository) Debit(ctx context.Context, accountID string, transferID uuid.UUID, amount decimal.Decimal) error {
	if accountID == r.poisonedID {
		return errors.New("storage glitch")
	}
	return r.AccountRepository.Debit(ctx, accountID, transferID, amount)
}

func TestUnexpectedStageErrorFailsOnlyThatJob(t *testing.T) {
	accounts := memory.NewAccountRepository()
	faulty := &faultyAccountRepository{AccountRepository: accounts, poisonedID: "broken"}
	jobs := memory.NewTransferRepository()
	notif := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(faulty, jobs, NewAccountRegistry(), notif, logger, EngineConfig{BackoffStep: time.Millisecond})
	t.Cleanup(engine.Stop)
	service := NewService(faulty, jobs, engine)

	ctx := context.Background()
	for _, acc := range []struct {
		id      string
		balance int64
	}{{"broken", 1000}, {"A", 1000}, {"B", 0}} {
		require.NoError(t, accounts.Create(ctx, &domain.Account{
			AccountID: acc.id,
			Balance:   decimal.NewFromInt(acc.balance),
		}))
	}

	failing, err := service.Submit(ctx, SubmitInput{
		SourceAccountID: "broken", TargetAccountID: "B", Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	healthy, err := service.Submit(ctx, SubmitInput{
		SourceAccountID: "A", TargetAccountID: "B", Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	waitStatus := func(id uuid.UUID) domain.TransferStatus {
		var status domain.TransferStatus
		require.Eventually(t, func() bool {
			job, err := jobs.Find(ctx, id)
			if err != nil {
				return false
			}
			status = job.Status
			return status.Terminal()
		}, 5*time.Second, 2*time.Millisecond)
		return status
	}

	assert.Equal(t, domain.StatusFailed, waitStatus(failing.TransferID))
	assert.Equal(t, domain.StatusSuccess, waitStatus(healthy.TransferID))
}
