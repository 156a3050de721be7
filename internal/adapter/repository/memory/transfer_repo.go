package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// transferRepository implements domain.TransferRepository with an in-memory map.
// Records are stored and returned as copies so concurrent status polls never
// observe a job mid-mutation.
type transferRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]domain.TransferJob
}

// NewTransferRepository creates a new in-memory transfer repository.
func NewTransferRepository() domain.TransferRepository {
	return &transferRepository{
		jobs: make(map[uuid.UUID]domain.TransferJob),
	}
}

// Create inserts a new job; replays of the same transfer id are no-ops.
func (r *transferRepository) Create(_ context.Context, job *domain.TransferJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.TransferID]; ok {
		return nil
	}
	r.jobs[job.TransferID] = *job
	return nil
}

// Find retrieves a job by transfer id.
func (r *transferRepository) Find(_ context.Context, transferID uuid.UUID) (*domain.TransferJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[transferID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return &job, nil
}

// Update overwrites the stored record for job.TransferID.
func (r *transferRepository) Update(_ context.Context, job *domain.TransferJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.TransferID] = *job
	return nil
}
