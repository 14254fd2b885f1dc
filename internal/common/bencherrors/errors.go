// Package bencherrors contains the error types shared across the benchmark
// engine, together with the classification logic that decides whether a
// database error is worth retrying.
//
// If multiple errors occur in some function, that function should return an
// error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual
// errors.
package bencherrors

import (
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "batchSize"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %s", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for field %s; %s", err.Value, err.Name, err.Message)
}

// ErrConflictExhausted indicates that a transactional unit of work kept
// hitting transient conflicts (deadlocks or serialization failures) until the
// retry budget ran out. It is distinct from a plain operation failure: the
// operation itself was well-formed, the database just never let it through.
type ErrConflictExhausted struct {
	// Number of attempts made before giving up.
	Attempts int
	// The conflict reported on the final attempt.
	LastError error
}

func (err *ErrConflictExhausted) Error() string {
	return fmt.Sprintf("gave up after %d conflicting attempts: %s", err.Attempts, err.LastError)
}

func (err *ErrConflictExhausted) Unwrap() error {
	return err.LastError
}

// IsConflictExhausted returns true if err is, or wraps, an
// ErrConflictExhausted.
func IsConflictExhausted(err error) bool {
	var target *ErrConflictExhausted
	return errors.As(err, &target)
}

// IsTransientConflict returns true if err is a Postgres error that indicates
// the operation may succeed if the whole transaction is retried, i.e., a
// deadlock, a serialization failure, or a lock timeout. Anything else,
// including network errors, is deliberately not treated as a conflict:
// retrying those here would mask real problems.
func IsTransientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgerrcode.IsTransactionRollback(pgErr.Code) || pgErr.Code == pgerrcode.LockNotAvailable
}
