package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

const upsertCompaniesSQL = `
INSERT INTO companies (name, career_page_url, source)
SELECT * FROM unnest($1::text[], $2::text[], $3::text[])
ON CONFLICT (career_page_url) DO UPDATE
SET name = EXCLUDED.name, source = EXCLUDED.source`

const insertJobsSQL = `
INSERT INTO jobs (title, company, location, url, source, created_at)
SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::timestamptz[])
ON CONFLICT (url) `

const (
	jobsIgnoreSuffix    = `DO NOTHING`
	jobsOverwriteSuffix = `DO UPDATE
SET title = EXCLUDED.title, company = EXCLUDED.company, location = EXCLUDED.location, source = EXCLUDED.source`
)

// DefaultJobLimit caps ListJobs when the caller passes a non-positive limit.
const DefaultJobLimit = 100

// ListCompanies returns the catalog in insertion order.
func (s *Store) ListCompanies(ctx context.Context) ([]board.Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, career_page_url, source FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []board.Company
	for rows.Next() {
		var c board.Company
		if err := rows.Scan(&c.Name, &c.CareerPageURL, &c.Source); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return out, nil
}

// UpsertCompanies writes batch in one statement. The batch must not repeat a URL.
func (s *Store) UpsertCompanies(ctx context.Context, batch []board.Company) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	names := make([]string, len(batch))
	urls := make([]string, len(batch))
	sources := make([]string, len(batch))
	for i, c := range batch {
		names[i], urls[i], sources[i] = c.Name, c.CareerPageURL, c.Source
	}
	tag, err := s.pool.Exec(ctx, upsertCompaniesSQL, names, urls, sources)
	if err != nil {
		return 0, fmt.Errorf("upsert companies: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UpsertJobs writes batch in one statement under policy. The batch must not repeat a URL.
func (s *Store) UpsertJobs(ctx context.Context, batch []board.Job, policy board.ConflictPolicy) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	titles := make([]string, len(batch))
	companies := make([]string, len(batch))
	locations := make([]*string, len(batch))
	urls := make([]string, len(batch))
	sources := make([]string, len(batch))
	created := make([]time.Time, len(batch))
	for i, j := range batch {
		titles[i], companies[i], locations[i], urls[i], sources[i] = j.Title, j.Company, j.Location, j.URL, j.Source
		created[i] = j.CreatedAt
		if created[i].IsZero() {
			created[i] = s.now()
		}
	}

	query := insertJobsSQL + jobsIgnoreSuffix
	if policy == board.ConflictOverwrite {
		query = insertJobsSQL + jobsOverwriteSuffix
	}
	tag, err := s.pool.Exec(ctx, query, titles, companies, locations, urls, sources, created)
	if err != nil {
		return 0, fmt.Errorf("upsert jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListJobs returns the newest jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]board.Job, error) {
	if limit <= 0 {
		limit = DefaultJobLimit
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, title, company, location, url, source, created_at
FROM jobs
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []board.Job
	for rows.Next() {
		var j board.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.URL, &j.Source, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}
