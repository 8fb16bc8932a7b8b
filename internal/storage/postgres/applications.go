package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// InsertApplication records a pending application. A repeated (job, user) pair is
// ErrConflict and an unknown job is ErrNotFound.
func (s *Store) InsertApplication(ctx context.Context, jobID int64, userID string) (board.Application, error) {
	app := board.Application{JobID: jobID, UserID: userID, Status: board.ApplicationPending}
	err := s.pool.QueryRow(ctx, `
INSERT INTO applications (job_id, user_id, status)
VALUES ($1, $2, $3)
RETURNING id, created_at`, jobID, userID, string(board.ApplicationPending)).Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return board.Application{}, fmt.Errorf("application for job %d: %w", jobID, board.ErrConflict)
		case codeForeignKeyViolation:
			return board.Application{}, fmt.Errorf("job %d: %w", jobID, board.ErrNotFound)
		}
		return board.Application{}, fmt.Errorf("insert application: %w", err)
	}
	return app, nil
}

// GetBalance returns the profile's credits; nil means unlimited.
func (s *Store) GetBalance(ctx context.Context, userID string) (*int, error) {
	var credits *int
	err := s.pool.QueryRow(ctx, `SELECT credits FROM profiles WHERE id = $1`, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, board.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credits: %w", err)
	}
	return credits, nil
}

// Decrement debits one credit in a single statement so concurrent submissions cannot
// both spend the last credit. Unlimited, exhausted or missing profiles yield ErrNotFound.
func (s *Store) Decrement(ctx context.Context, userID string) (int, error) {
	var left int
	err := s.pool.QueryRow(ctx, `
UPDATE profiles SET credits = credits - 1
WHERE id = $1 AND credits IS NOT NULL AND credits > 0
RETURNING credits`, userID).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("debitable profile %s: %w", userID, board.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("decrement credits: %w", err)
	}
	return left, nil
}

// SetCredits creates or replaces a profile balance. Nil means unlimited.
func (s *Store) SetCredits(ctx context.Context, userID string, credits *int) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO profiles (id, credits) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET credits = EXCLUDED.credits`, userID, credits)
	if err != nil {
		return fmt.Errorf("set credits: %w", err)
	}
	return nil
}
