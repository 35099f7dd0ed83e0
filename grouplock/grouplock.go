// Package grouplock serializes mutations to a single group's ledger.
// Each group gets its own lock, so unrelated groups never contend.
package grouplock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrContended is returned when the lock can't be acquired within the
// registry's timeout. Callers should treat it as retryable.
var ErrContended = errors.New("group lock: acquisition timed out")

type Registry struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]chan struct{}
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		groups:  make(map[uuid.UUID]chan struct{}),
		timeout: timeout,
	}
}

// Acquire takes the exclusive lock for groupID, waiting at most the
// registry timeout. On success the returned func releases the lock and
// must always be called.
func (r *Registry) Acquire(ctx context.Context, groupID uuid.UUID) (func(), error) {
	sem := r.semaphore(groupID)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-timer.C:
		return nil, ErrContended
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget evicts the lock entry for a group that no longer exists, so the
// registry doesn't grow with every group ever seen. A lock that is still
// held stays registered; the holder's release keeps working either way.
func (r *Registry) Forget(groupID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sem, ok := r.groups[groupID]; ok && len(sem) == 0 {
		delete(r.groups, groupID)
	}
}

func (r *Registry) semaphore(groupID uuid.UUID) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	sem, ok := r.groups[groupID]
	if !ok {
		sem = make(chan struct{}, 1)
		r.groups[groupID] = sem
	}
	return sem
}
