package lock

import (
	"context"
	"errors"
	"log/slog"

	"identity-recon/pkg/platform/circuit"
	"identity-recon/pkg/platform/sentinel"
)

// Locker acquires a set of keys and returns the function that releases them.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (func(context.Context) error, error)
}

// BreakerLocker guards a Locker with a circuit breaker. Once the backend has
// been unavailable for long enough, Acquire proceeds without the lock and
// reconciliation relies on store-level key locks alone. Contention timeouts
// are not backend failures and are returned unchanged.
type BreakerLocker struct {
	next    Locker
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewBreakerLocker wraps next. A nil logger uses slog.Default.
func NewBreakerLocker(next Locker, breaker *circuit.Breaker, logger *slog.Logger) *BreakerLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerLocker{next: next, breaker: breaker, logger: logger}
}

func (l *BreakerLocker) Acquire(ctx context.Context, keys []string) (func(context.Context) error, error) {
	release, err := l.next.Acquire(ctx, keys)
	if err == nil {
		if _, change := l.breaker.RecordSuccess(); change.Closed {
			l.logger.InfoContext(ctx, "identity lock backend recovered", "breaker", l.breaker.Name())
		}
		return release, nil
	}
	if !errors.Is(err, sentinel.ErrUnavailable) {
		return nil, err
	}

	useFallback, change := l.breaker.RecordFailure()
	if change.Opened {
		l.logger.WarnContext(ctx, "identity lock backend unavailable, continuing without distributed lock",
			"breaker", l.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return nil, err
	}
	return noopRelease, nil
}

func noopRelease(context.Context) error { return nil }
