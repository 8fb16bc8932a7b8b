package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

type applicationKey struct {
	jobID  int64
	userID string
}

// Applications records applications and owns user credit balances.
type Applications struct {
	mu       sync.Mutex
	jobs     *Catalog
	apps     map[applicationKey]board.Application
	nextID   int64
	profiles map[string]*int
}

var (
	_ board.ApplicationStore = (*Applications)(nil)
	_ board.CreditLedger     = (*Applications)(nil)
)

// NewApplications returns an empty store. When jobs is non-nil, inserts for unknown
// job ids fail like a foreign key would.
func NewApplications(jobs *Catalog) *Applications {
	return &Applications{
		jobs:     jobs,
		apps:     make(map[applicationKey]board.Application),
		profiles: make(map[string]*int),
	}
}

// SetCredits creates or replaces a profile. A nil balance means unlimited.
func (a *Applications) SetCredits(userID string, credits *int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if credits != nil {
		v := *credits
		credits = &v
	}
	a.profiles[userID] = credits
}

// GetBalance implements board.CreditLedger.
func (a *Applications) GetBalance(_ context.Context, userID string) (*int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	credits, ok := a.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, board.ErrNotFound)
	}
	if credits == nil {
		return nil, nil
	}
	v := *credits
	return &v, nil
}

// Decrement implements board.CreditLedger. Unlimited, exhausted and missing
// profiles are not debited and yield ErrNotFound.
func (a *Applications) Decrement(_ context.Context, userID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	credits, ok := a.profiles[userID]
	if !ok || credits == nil || *credits <= 0 {
		return 0, fmt.Errorf("debitable profile %s: %w", userID, board.ErrNotFound)
	}
	*credits--
	return *credits, nil
}

// InsertApplication implements board.ApplicationStore.
func (a *Applications) InsertApplication(_ context.Context, jobID int64, userID string) (board.Application, error) {
	if a.jobs != nil && !a.jobs.HasJob(jobID) {
		return board.Application{}, fmt.Errorf("job %d: %w", jobID, board.ErrNotFound)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := applicationKey{jobID: jobID, userID: userID}
	if _, dup := a.apps[key]; dup {
		return board.Application{}, fmt.Errorf("application for job %d by %s: %w", jobID, userID, board.ErrConflict)
	}
	a.nextID++
	app := board.Application{
		ID:        a.nextID,
		JobID:     jobID,
		UserID:    userID,
		Status:    board.ApplicationPending,
		CreatedAt: time.Now().UTC(),
	}
	a.apps[key] = app
	return app, nil
}

// Count returns the number of stored applications.
func (a *Applications) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.apps)
}
