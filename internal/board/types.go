package board

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Company is a hiring organisation whose job board lives on a known ATS platform.
// CareerPageURL is the natural key.
type Company struct {
	Name          string `json:"name"`
	CareerPageURL string `json:"career_page_url"`
	Source        string `json:"source"`
}

// Job is a single open position scraped from a company's board. URL is the natural key.
type Job struct {
	ID        int64     `json:"id,omitempty"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	Location  *string   `json:"location,omitempty"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate rejects records that must never reach the catalog.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("job title is required: %w", ErrParse)
	}
	if strings.TrimSpace(j.Company) == "" {
		return fmt.Errorf("job company is required: %w", ErrParse)
	}
	if strings.TrimSpace(j.Source) == "" {
		return fmt.Errorf("job source is required: %w", ErrParse)
	}
	u, err := url.Parse(j.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("job url %q is not absolute: %w", j.URL, ErrParse)
	}
	return nil
}

// LocationOrEmpty returns the location text or "" when absent.
func (j Job) LocationOrEmpty() string {
	if j.Location == nil {
		return ""
	}
	return *j.Location
}

// ApplicationStatus tracks an application through the external execution bot.
type ApplicationStatus string

// Application status values. Transitions past pending are owned by the apply bot.
const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationCompleted ApplicationStatus = "completed"
	ApplicationFailed    ApplicationStatus = "failed"
	ApplicationSkipped   ApplicationStatus = "skipped"
)

// Application is one user's request to apply to one job.
type Application struct {
	ID        int64             `json:"id"`
	JobID     int64             `json:"job_id"`
	UserID    string            `json:"user_id"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// ConflictPolicy decides what a job upsert does with an already-known URL.
type ConflictPolicy string

// Supported conflict policies.
const (
	ConflictIgnore    ConflictPolicy = "ignore"
	ConflictOverwrite ConflictPolicy = "overwrite"
)

// ParseConflictPolicy maps a config string onto a ConflictPolicy.
func ParseConflictPolicy(raw string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ConflictIgnore:
		return ConflictIgnore, nil
	case ConflictOverwrite:
		return ConflictOverwrite, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q: %w", raw, ErrConfig)
	}
}

// Stage names a pipeline stage for logs, metrics and run summaries.
type Stage string

// Pipeline stages.
const (
	StageDiscovery Stage = "discovery"
	StageScrape    Stage = "scrape"
)

// RunSummary is reported by every discovery/scrape run and published when a topic is set.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Stage      Stage     `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Candidates counts the pages or companies visited.
	Candidates int `json:"candidates"`
	// Failures counts isolated per-item failures.
	Failures int `json:"failures"`
	// Records is the deduplicated batch size handed to the catalog.
	Records int `json:"records"`
	// Written is what the catalog reported as inserted or updated.
	Written int `json:"written"`
	// Skipped counts companies passed over because no extractor handles their platform.
	Skipped int `json:"skipped,omitempty"`
}

// StageName is used by publishers to tag messages.
func (s RunSummary) StageName() string { return string(s.Stage) }
