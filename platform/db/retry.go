package db

import (
	"context"
	"errors"
	"net"
	"time"

	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

const msgUnavailable = "storage temporarily unavailable, please retry"

// Retrier retries primary writes on transient failures with capped exponential backoff.
// Non-transient errors are returned immediately. Exhausted retries surface as
// apperr.KindUnavailable.
type Retrier struct {
	maxRetries uint64
	base       time.Duration
	max        time.Duration
	log        *logger.Logger
}

// NewRetrier builds a Retrier from configuration.
func NewRetrier(cfg config.RetryConfig, log *logger.Logger) *Retrier {
	return NewRetrierWithPolicy(cfg.GetRetryMaxRetries(), cfg.GetRetryBaseDelay(), cfg.GetRetryMaxDelay(), log)
}

// NewRetrierWithPolicy builds a Retrier with an explicit policy.
func NewRetrierWithPolicy(maxRetries uint64, base, max time.Duration, log *logger.Logger) *Retrier {
	return &Retrier{maxRetries: maxRetries, base: base, max: max, log: log}
}

// Do runs fn, retrying while it fails with a transient error.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.WithCappedDuration(r.max, retry.NewExponential(r.base)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if r.log != nil {
			r.log.RetryAttempt(op, attempt, err)
		}
		return retry.RetryableError(err)
	})
	if err != nil && IsTransient(err) {
		return apperr.Unavailable(msgUnavailable, err).WithOp(op)
	}
	return err
}

// IsTransient reports whether err is worth retrying: dropped connections,
// timeouts, serialization failures and server shutdowns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apperr.GetKind(err) != apperr.KindUnknown {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
			return true
		}
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
