// Package executor runs transactional units of work with bounded
// retry-on-conflict. Deadlocks and serialization failures are expected under
// the benchmark's contended workloads; the executor rolls the transaction
// back, waits, and tries again, up to a fixed number of attempts.
package executor

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/common/bencherrors"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 50 * time.Millisecond
)

// Tx is the slice of pgx.Tx the workloads need. pgx.Tx satisfies it, and
// tests substitute fakes.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts transactions. The workload package adapts pooled pgx
// connections to it; tests use fakes.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// OnRetry is invoked whenever an attempt is abandoned to a transient conflict
// and another attempt will follow.
type OnRetry func(attempt int, err error)

// Executor retries transactional closures on transient conflicts.
type Executor struct {
	maxAttempts uint
	delay       time.Duration
	onRetry     OnRetry
}

func New() *Executor {
	return NewWithOptions(DefaultMaxAttempts, DefaultRetryDelay, nil)
}

func NewWithOptions(maxAttempts uint, delay time.Duration, onRetry OnRetry) *Executor {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &Executor{maxAttempts: maxAttempts, delay: delay, onRetry: onRetry}
}

// Execute runs op inside a transaction and commits it. Every attempt either
// commits or rolls back before Execute returns or retries; a transaction is
// never left open.
//
// Transient conflicts are retried up to the attempt budget with a fixed
// delay; exhausting the budget yields *bencherrors.ErrConflictExhausted. Any
// other error fails immediately after a single attempt.
func (e *Executor) Execute(ctx context.Context, db Beginner, op func(tx Tx) error) error {
	err := retry.Do(
		func() error {
			return e.attempt(ctx, db, op)
		},
		retry.Context(ctx),
		retry.Attempts(e.maxAttempts),
		retry.Delay(e.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(bencherrors.IsTransientConflict),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < e.maxAttempts && bencherrors.IsTransientConflict(err) {
				log.WithError(err).Warnf("transient conflict on attempt %d of %d, retrying after %s", n+1, e.maxAttempts, e.delay)
				if e.onRetry != nil {
					e.onRetry(int(n)+1, err)
				}
			}
		}),
	)
	if err != nil && bencherrors.IsTransientConflict(err) {
		return errors.WithStack(&bencherrors.ErrConflictExhausted{
			Attempts:  int(e.maxAttempts),
			LastError: err,
		})
	}
	return err
}

func (e *Executor) attempt(ctx context.Context, db Beginner, op func(tx Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return errors.WithMessage(err, "beginning transaction")
	}
	if err := op(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.WithError(rbErr).Error("rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		// A failed commit has already terminated the transaction server-side;
		// the rollback is a local cleanup and ErrTxClosed is expected.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.WithError(rbErr).Error("rollback after failed commit failed")
		}
		return err
	}
	return nil
}
