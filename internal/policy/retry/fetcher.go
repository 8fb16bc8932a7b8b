// Package retry wraps a fetcher with jittered exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

// Policy bounds the attempts and the delay between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the defaults used when only MaxAttempts is configured.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// ShouldRetry decides whether attempt (zero based) may be followed by another.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt+1 >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, board.ErrConfig) {
		return false
	}
	return true
}

// Backoff returns the wait before the attempt after attempt: half the capped
// exponential delay plus up to the same again in jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	half := time.Duration(delay / 2)
	return half + jitter(half)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Fetcher retries the wrapped fetcher under a Policy.
type Fetcher struct {
	next   board.Fetcher
	policy Policy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ board.Fetcher = (*Fetcher)(nil)

// NewFetcher wraps next. A policy with fewer than two attempts returns next unchanged.
func NewFetcher(next board.Fetcher, policy Policy, logger *zap.Logger) board.Fetcher {
	if policy.MaxAttempts < 2 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{next: next, policy: policy, logger: logger.Named("retry"), sleep: sleepCtx}
}

// Fetch calls the wrapped fetcher until it succeeds, the error is final or ctx ends.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := f.next.Fetch(ctx, targetURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil || !f.policy.ShouldRetry(err, attempt) {
			return nil, err
		}
		wait := f.policy.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", targetURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("retry %s: %w", targetURL, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
