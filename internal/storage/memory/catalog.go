// Package memory provides in-process catalog, application and blob stores for
// development and tests. Upsert semantics match the Postgres stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// Catalog holds companies and jobs.
type Catalog struct {
	mu        sync.RWMutex
	companies []board.Company
	companyIx map[string]int
	jobs      []board.Job
	jobIx     map[string]int
	nextJobID int64
	now       func() time.Time
}

var (
	_ board.CompanyStore = (*Catalog)(nil)
	_ board.JobStore     = (*Catalog)(nil)
)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		companyIx: make(map[string]int),
		jobIx:     make(map[string]int),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListCompanies returns companies in insertion order.
func (c *Catalog) ListCompanies(_ context.Context) ([]board.Company, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]board.Company, len(c.companies))
	copy(out, c.companies)
	return out, nil
}

// UpsertCompanies inserts new career page URLs and overwrites name/source of known ones.
func (c *Catalog) UpsertCompanies(_ context.Context, batch []board.Company) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, co := range batch {
		if co.CareerPageURL == "" {
			return 0, fmt.Errorf("company %q has no career page url: %w", co.Name, board.ErrParse)
		}
	}
	for _, co := range batch {
		if i, ok := c.companyIx[co.CareerPageURL]; ok {
			c.companies[i] = co
			continue
		}
		c.companyIx[co.CareerPageURL] = len(c.companies)
		c.companies = append(c.companies, co)
	}
	return len(batch), nil
}

// UpsertJobs inserts unseen URLs. Known URLs are skipped under ConflictIgnore and
// refreshed (keeping id and created_at) under ConflictOverwrite.
func (c *Catalog) UpsertJobs(_ context.Context, batch []board.Job, policy board.ConflictPolicy) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	written := 0
	for _, j := range batch {
		if i, ok := c.jobIx[j.URL]; ok {
			if policy != board.ConflictOverwrite {
				continue
			}
			existing := c.jobs[i]
			j.ID = existing.ID
			j.CreatedAt = existing.CreatedAt
			c.jobs[i] = j
			written++
			continue
		}
		c.nextJobID++
		j.ID = c.nextJobID
		if j.CreatedAt.IsZero() {
			j.CreatedAt = c.now()
		}
		c.jobIx[j.URL] = len(c.jobs)
		c.jobs = append(c.jobs, j)
		written++
	}
	return written, nil
}

// ListJobs returns up to limit jobs, newest first. A non-positive limit returns all.
func (c *Catalog) ListJobs(_ context.Context, limit int) ([]board.Job, error) {
	c.mu.RLock()
	out := make([]board.Job, len(c.jobs))
	copy(out, c.jobs)
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasJob reports whether id exists.
func (c *Catalog) HasJob(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, j := range c.jobs {
		if j.ID == id {
			return true
		}
	}
	return false
}
