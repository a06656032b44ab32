package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"SASVerify/internal/address"
	"SASVerify/internal/logger"
)

// RetryPolicy configures WithRetry. A zero MaxRetries disables retries.
type RetryPolicy struct {
	MaxRetries      uint64        // MaxRetries is the number of extra attempts
	InitialInterval time.Duration // InitialInterval is the first backoff delay
	MaxInterval     time.Duration // MaxInterval caps a single delay
	MaxElapsed      time.Duration // MaxElapsed caps the total time spent retrying
}

// DefaultRetryPolicy returns the delays used when only a retry count is configured.
func DefaultRetryPolicy(maxRetries uint64) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      maxRetries,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsed:      10 * time.Second,
	}
}

// retrying wraps an Accessor with exponential backoff.
type retrying struct {
	next   Accessor
	policy RetryPolicy
}

// WithRetry returns acc unchanged when the policy allows no retries, and
// otherwise an Accessor retrying transient failures. ErrNotFound and
// context errors are returned immediately.
func WithRetry(acc Accessor, policy RetryPolicy) Accessor {
	if policy.MaxRetries == 0 {
		return acc
	}
	return &retrying{next: acc, policy: policy}
}

// GetAccount reads through the wrapped accessor, retrying transient errors.
func (r *retrying) GetAccount(ctx context.Context, addr address.Pubkey) (*Account, error) {
	var (
		account *Account
		lastErr error
	)

	op := func() error {
		account, lastErr = r.next.GetAccount(ctx, addr)
		if lastErr == nil {
			return nil
		}

		if isPermanent(lastErr) {
			return backoff.Permanent(lastErr)
		}

		return lastErr
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("account read failed, retrying", "address", addr.Short(), "wait", wait, "error", err)
	}

	// The schedule's own result is ignored: lastErr keeps the wrapped cause.
	_ = backoff.RetryNotify(op, r.backOff(ctx), notify)

	return account, lastErr
}

// backOff builds a fresh schedule for one call.
func (r *retrying) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		eb.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		eb.MaxInterval = r.policy.MaxInterval
	}
	eb.MaxElapsedTime = r.policy.MaxElapsed

	return backoff.WithContext(backoff.WithMaxRetries(eb, r.policy.MaxRetries), ctx)
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
