package engine

import (
	"sync"
	"time"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

var _ interfaces.SessionRegistry = (*Registry)(nil)

// Registry is the in-memory idempotency guard. It tracks one ReviewSession
// per dedup key and guarantees at most one running session per key under
// concurrent webhook deliveries.
//
// Terminal sessions are kept for the retention window (forever when zero) so
// retried deliveries of an already reviewed revision are rejected instead of
// re-run. Expired entries are evicted lazily on Admit.
type Registry struct {
	mu        sync.Mutex
	sessions  map[model.DedupKey]*model.ReviewSession
	retention time.Duration
	now       func() time.Time
}

// NewRegistry creates a session registry with the given retention window
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		sessions:  make(map[model.DedupKey]*model.ReviewSession),
		retention: retention,
		now:       time.Now,
	}
}

// Admit performs an atomic check-and-set on the session map. It returns nil
// when the caller now owns a running session for the key, or a typed
// rejection when one is already running or already finished.
func (r *Registry) Admit(key model.DedupKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		if s.Status == model.SessionRunning {
			return model.ErrSessionInProgress
		}
		if !r.expired(s) {
			return model.ErrDuplicateSession
		}
		// terminal and past retention, fall through and re-admit
	}

	r.sessions[key] = &model.ReviewSession{
		Key:       key,
		Status:    model.SessionRunning,
		StartedAt: r.now(),
	}
	return nil
}

// Release transitions a running session to a terminal status. Releasing a key
// that is not running is a no-op, a terminal status is never overwritten.
func (r *Registry) Release(key model.DedupKey, status model.SessionStatus) {
	if !status.IsTerminal() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok || s.Status != model.SessionRunning {
		return
	}
	s.Status = status
	s.FinishedAt = r.now()
}

// Status returns the current status for a key, if the registry knows it
func (r *Registry) Status(key model.DedupKey) (model.SessionStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok {
		return "", false
	}
	return s.Status, true
}

func (r *Registry) expired(s *model.ReviewSession) bool {
	if r.retention <= 0 {
		return false
	}
	return r.now().Sub(s.FinishedAt) > r.retention
}
