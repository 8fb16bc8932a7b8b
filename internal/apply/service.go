// Package apply records a user's application to a job, gated on profile credits.
package apply

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/metrics"
)

// Outcome classifies a submission attempt.
type Outcome string

// Outcomes. Partial means the application was recorded but the debit was not.
const (
	OutcomeSubmitted       Outcome = "submitted"
	OutcomePartial         Outcome = "partial"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeNoProfile       Outcome = "no_profile"
	OutcomeNoCredits       Outcome = "no_credits"
	OutcomeAlreadyApplied  Outcome = "already_applied"
	OutcomeFailed          Outcome = "failed"
)

// User-facing messages. These never carry internal error detail.
const (
	MsgLoginRequired   = "must be logged in"
	MsgProfileRequired = "must complete profile"
	MsgNoCredits       = "no credits left"
	MsgAlreadyApplied  = "already applied"
	MsgCouldNotSubmit  = "could not submit"
	MsgCreditDrift     = "submitted but credit update failed"
	MsgSubmitted       = "application submitted"
)

// Result is returned for every attempt.
type Result struct {
	Outcome     Outcome            `json:"outcome"`
	Message     string             `json:"message"`
	Application *board.Application `json:"application,omitempty"`
	// Credits is the balance after the debit; nil for unlimited users and failures.
	Credits *int `json:"credits_remaining,omitempty"`
	// Warning is set for OutcomePartial.
	Warning *board.ConsistencyWarning `json:"-"`
}

// Recorded reports whether an application row exists as a result of this attempt.
func (r Result) Recorded() bool {
	return r.Outcome == OutcomeSubmitted || r.Outcome == OutcomePartial
}

// Service runs the submission state machine.
type Service struct {
	apps    board.ApplicationStore
	credits board.CreditLedger
	logger  *zap.Logger
}

// NewService wires the application store and credit ledger.
func NewService(apps board.ApplicationStore, credits board.CreditLedger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{apps: apps, credits: credits, logger: logger.Named("apply")}
}

// Submit applies userID to jobID. The application is inserted before the credit is
// debited: a failed debit leaves the application in place and is reported as a
// consistency warning rather than rolled back.
func (s *Service) Submit(ctx context.Context, userID string, jobID int64) Result {
	res := s.submit(ctx, strings.TrimSpace(userID), jobID)
	metrics.ObserveApplication(string(res.Outcome))
	return res
}

func (s *Service) submit(ctx context.Context, userID string, jobID int64) Result {
	if userID == "" {
		return fail(OutcomeUnauthenticated, MsgLoginRequired)
	}
	log := s.logger.With(zap.String("user_id", userID), zap.Int64("job_id", jobID))

	balance, err := s.credits.GetBalance(ctx, userID)
	switch {
	case errors.Is(err, board.ErrNotFound):
		return fail(OutcomeNoProfile, MsgProfileRequired)
	case err != nil:
		log.Error("read credit balance", zap.Error(err))
		return fail(OutcomeFailed, MsgCouldNotSubmit)
	}
	if balance != nil && *balance <= 0 {
		return fail(OutcomeNoCredits, MsgNoCredits)
	}

	app, err := s.apps.InsertApplication(ctx, jobID, userID)
	switch {
	case errors.Is(err, board.ErrConflict):
		return fail(OutcomeAlreadyApplied, MsgAlreadyApplied)
	case err != nil:
		log.Error("insert application", zap.Error(err))
		return fail(OutcomeFailed, MsgCouldNotSubmit)
	}

	if balance == nil {
		log.Info("application submitted", zap.Bool("unlimited", true))
		return Result{Outcome: OutcomeSubmitted, Message: MsgSubmitted, Application: &app}
	}

	left, err := s.credits.Decrement(ctx, userID)
	if err != nil {
		warning := &board.ConsistencyWarning{UserID: userID, JobID: jobID, Err: err}
		metrics.IncConsistencyWarnings()
		log.Error("application recorded but credit decrement failed", zap.Error(err))
		return Result{Outcome: OutcomePartial, Message: MsgCreditDrift, Application: &app, Warning: warning}
	}
	log.Info("application submitted", zap.Int("credits_remaining", left))
	return Result{Outcome: OutcomeSubmitted, Message: MsgSubmitted, Application: &app, Credits: &left}
}

func fail(o Outcome, msg string) Result {
	return Result{Outcome: o, Message: msg}
}
