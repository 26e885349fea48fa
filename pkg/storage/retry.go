package storage

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is the single bounded retry loop applied uniformly to
// idempotent storage operations: a fixed number of attempts with a fixed
// short delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the pipeline's upload/ledger retry behaviour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 2 * time.Second}
}

// Do runs op until it succeeds, attempts are exhausted, or the context is
// cancelled. The op must be idempotent.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled after %d attempts: %w", i+1, ctx.Err())
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
