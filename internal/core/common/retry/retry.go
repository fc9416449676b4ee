package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict marks a compare-and-set write that lost a race. The caller
// re-reads and tries again under the same policy.
var ErrConflict = errors.New("concurrent modification")

type Policy struct {
	MaxTries        uint
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        3,
		MaxElapsedTime:  2 * time.Second,
		InitialInterval: 25 * time.Millisecond,
	}
}

// IsTransient reports whether a storage error is worth retrying: lost
// connections, serialization failures, deadlocks, lock timeouts and lost
// compare-and-set races.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable:
		return true
	}
	return pgerrcode.IsConnectionException(pgErr.Code)
}

// IsUniqueViolation reports a unique constraint failure, optionally for a
// specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Do runs op until it succeeds, returns a non-transient error, or the policy
// runs out. Non-transient errors are returned unchanged on the first attempt.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op func(ctx context.Context) error) error {
	if p.MaxTries == 0 {
		p.MaxTries = 1
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(p.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			if logger != nil {
				logger.Warn("retrying transient storage error", "error", err, "next_attempt_in", next)
			}
		}),
	}
	if p.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsedTime))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(ctx); err != nil {
			if IsTransient(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, opts...)

	return unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}
