package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 50 * time.Millisecond
	maxBackoff      = 2 * time.Second
)

// Policy bounds how often an operation is re-attempted.
type Policy struct {
	Attempts uint64
	Backoff  time.Duration
}

func (p Policy) backoff() goretry.Backoff {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	base := p.Backoff
	if base <= 0 {
		base = defaultBackoff
	}
	b := goretry.NewExponential(base)
	b = goretry.WithJitterPercent(20, b)
	b = goretry.WithCappedDuration(maxBackoff, b)
	return goretry.WithMaxRetries(attempts, b)
}

// transient lists the codes worth another attempt from inside the same
// request. Dependency and internal failures are left to the client.
var transient = map[pkgerrors.Code]struct{}{
	pkgerrors.CodeBusy:              {},
	pkgerrors.CodeDuplicateOrderNum: {},
}

// OnRetryable runs fn and re-runs it while it fails with lock contention or
// an order number collision. The final error is returned unwrapped so callers
// still see the typed error.
func OnRetryable(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	return goretry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if typed := pkgerrors.As(err); typed != nil {
			if _, ok := transient[typed.Code()]; ok {
				return goretry.RetryableError(err)
			}
		}
		return err
	})
}
