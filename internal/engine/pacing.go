package engine

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// PacingConfig holds the externally configurable delays. The contract
// (monotonic backoff, hard cap, fixed batch pause) is not configurable.
type PacingConfig struct {
	// RequestInterval is the minimum spacing between upstream requests.
	RequestInterval time.Duration
	// BatchSize is the number of processed items between long pauses.
	// Zero disables batch pauses.
	BatchSize int
	// BatchPause is the long pause taken at each batch boundary.
	BatchPause time.Duration
}

// Pacer keeps the sustained request rate under a safe threshold for the
// upstream portal and supplies backoff durations on failure. Both traversal
// stages share one pacer per phase.
type Pacer struct {
	limiter    *rate.Limiter
	batchSize  int
	batchPause time.Duration
	policy     *RetryPolicy
	logger     arbor.ILogger
}

// NewPacer builds a pacer from config and an injected retry policy.
func NewPacer(cfg PacingConfig, policy *RetryPolicy, logger arbor.ILogger) *Pacer {
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Pacer{
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		batchSize:  cfg.BatchSize,
		batchPause: cfg.BatchPause,
		policy:     policy,
		logger:     logger,
	}
}

// BeforeRequest blocks until the inter-request interval is satisfied.
func (p *Pacer) BeforeRequest(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// OnBatchBoundary pauses for the configured long pause every batchSize
// processed items. n is the count of items processed so far in this run.
func (p *Pacer) OnBatchBoundary(ctx context.Context, n int) error {
	if p.batchSize <= 0 || n == 0 || n%p.batchSize != 0 {
		return nil
	}

	p.logger.Info().
		Int("processed", n).
		Dur("pause", p.batchPause).
		Msg("Batch boundary pause")

	timer := time.NewTimer(p.batchPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the failure backoff for the given attempt (from 0).
func (p *Pacer) Backoff(attempt int) time.Duration {
	return p.policy.CalculateBackoff(attempt)
}

// WithRetry runs fn, retrying retryable failures with backoff up to the
// policy's attempt cap. The final error is returned once the cap is hit or
// the failure is not retryable.
func (p *Pacer) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !p.policy.ShouldRetry(attempt+1, lastErr) {
			return lastErr
		}

		backoff := p.Backoff(attempt)
		p.logger.Debug().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Retrying after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
