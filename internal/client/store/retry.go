package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	apperrors "alawein/internal/pkg/errors"
)

// RetryPolicy wraps every remote call. The zero value is a single attempt
// without a deadline.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Timeout bounds the whole call including retries.
	Timeout time.Duration
}

func (p RetryPolicy) run(ctx context.Context, call func(ctx context.Context) error) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if p.MaxAttempts <= 1 {
		return call(ctx)
	}

	backoff := p.Backoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	b := retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewExponential(backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := call(ctx)
		if re, ok := apperrors.As[*apperrors.RemoteError](err); ok && re.Retryable() {
			return retry.RetryableError(err)
		}
		return err
	})
}

type idempotencyKey struct{}

// WithIdempotencyKey attaches key to every POST made with ctx. Retries of the
// same logical mutation must reuse the context so the server can deduplicate.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// NewIdempotencyKey returns ctx carrying a fresh key.
func NewIdempotencyKey(ctx context.Context) context.Context {
	return WithIdempotencyKey(ctx, uuid.New().String())
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}
