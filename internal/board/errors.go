package board

import (
	"errors"
	"fmt"
)

// Error taxonomy. Wrap these with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	// ErrTransport covers network failures, timeouts and non-success statuses.
	ErrTransport = errors.New("transport error")
	// ErrParse marks malformed or unexpected HTML. Callers treat it as zero results.
	ErrParse = errors.New("parse error")
	// ErrConflict is a unique-key violation on insert.
	ErrConflict = errors.New("conflict")
	// ErrConfig is a missing or invalid setting. Runs abort before doing any work.
	ErrConfig = errors.New("config error")
	// ErrNotFound is returned by stores for missing rows.
	ErrNotFound = errors.New("not found")
)

// ConsistencyWarning reports a secondary write that failed after the primary write committed.
type ConsistencyWarning struct {
	UserID string
	JobID  int64
	Err    error
}

func (w *ConsistencyWarning) Error() string {
	return fmt.Sprintf("application for job %d by user %s recorded but credit update failed: %v", w.JobID, w.UserID, w.Err)
}

func (w *ConsistencyWarning) Unwrap() error {
	return w.Err
}
