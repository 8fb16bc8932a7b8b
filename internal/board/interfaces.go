package board

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a raw page body. Any error means "no data for this URL".
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) ([]byte, error)
}

// CompanyStore is the company catalog.
type CompanyStore interface {
	ListCompanies(ctx context.Context) ([]Company, error)
	// UpsertCompanies writes the batch keyed on CareerPageURL and returns rows written.
	UpsertCompanies(ctx context.Context, batch []Company) (int, error)
}

// JobStore is the job catalog.
type JobStore interface {
	// UpsertJobs writes the batch keyed on URL and returns rows inserted or updated.
	UpsertJobs(ctx context.Context, batch []Job, policy ConflictPolicy) (int, error)
	// ListJobs returns the newest jobs first.
	ListJobs(ctx context.Context, limit int) ([]Job, error)
}

// ApplicationStore records applications. A duplicate (job, user) pair yields ErrConflict.
type ApplicationStore interface {
	InsertApplication(ctx context.Context, jobID int64, userID string) (Application, error)
}

// CreditLedger exposes the credit balance on a user's profile.
type CreditLedger interface {
	// GetBalance returns nil for unlimited users and ErrNotFound when no profile exists.
	GetBalance(ctx context.Context, userID string) (*int, error)
	// Decrement subtracts one credit from a finite balance and returns the new balance.
	Decrement(ctx context.Context, userID string) (int, error)
}

// Publisher pushes run summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// VisitCache remembers candidate pages visited by recent discovery runs.
type VisitCache interface {
	Seen(ctx context.Context, pageURL string) (bool, error)
	MarkSeen(ctx context.Context, pageURL string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
