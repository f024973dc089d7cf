package vdb

import (
	"context"
	"fmt"
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
)

// RetryConfig configures retry behavior for a VirtualizedDatabase. Adapted
// from the teacher's adapters.RetryConfig: only transient failures are
// retried, never semantic ones (a malformed pushdown is a bug, not a
// flake).
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retrying wraps a VirtualizedDatabase with query retry on transient
// failures. It never retries a TimeseriesValidationError: a column
// mismatch means the VQ and the backend disagree about schema, which a
// retry cannot fix.
type Retrying struct {
	inner  VirtualizedDatabase
	config RetryConfig
}

func NewRetrying(inner VirtualizedDatabase, config RetryConfig) *Retrying {
	if config.MaxAttempts <= 0 {
		config = DefaultRetryConfig()
	}
	return &Retrying{inner: inner, config: config}
}

func (r *Retrying) Name() string                             { return r.inner.Name() }
func (r *Retrying) PushdownSettings() prepare.Capabilities    { return r.inner.PushdownSettings() }
func (r *Retrying) Ping(ctx context.Context) error            { return r.inner.Ping(ctx) }
func (r *Retrying) Close() error                              { return r.inner.Close() }

func (r *Retrying) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	var lastErr error
	delay := r.config.InitialDelay
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sm, err := r.inner.Query(ctx, vq)
		if err == nil {
			return sm, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == r.config.MaxAttempts {
			return nil, fmt.Errorf("vdb: %s query failed after %d attempt(s): %w", r.inner.Name(), attempt, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * r.config.BackoffMultiplier)
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		}
	}
	return nil, lastErr
}

// isRetryable reports whether err looks like a transient backend failure
// rather than a semantic one. Validation errors and context cancellation
// are never retried; every other error, authentication failures
// included, counts as retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var validation *algebra.TimeseriesValidationError
	if asTimeseriesValidation(err, &validation) {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	return true
}

func asTimeseriesValidation(err error, target **algebra.TimeseriesValidationError) bool {
	v, ok := err.(*algebra.TimeseriesValidationError)
	if ok {
		*target = v
	}
	return ok
}
