package bencherrors

import (
	"io"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientConflict(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected bool
	}{
		"deadlock": {
			err:      &pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			expected: true,
		},
		"serialization failure": {
			err:      &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			expected: true,
		},
		"lock not available": {
			err:      &pgconn.PgError{Code: pgerrcode.LockNotAvailable},
			expected: true,
		},
		"wrapped deadlock": {
			err:      errors.WithMessage(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}, "executing batch"),
			expected: true,
		},
		"unique violation": {
			err:      &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			expected: false,
		},
		"syntax error": {
			err:      &pgconn.PgError{Code: pgerrcode.SyntaxError},
			expected: false,
		},
		"non postgres error": {
			err:      io.EOF,
			expected: false,
		},
		"nil": {
			err:      nil,
			expected: false,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsTransientConflict(tc.err))
		})
	}
}

func TestIsConflictExhausted(t *testing.T) {
	base := &ErrConflictExhausted{Attempts: 3, LastError: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}}
	assert.True(t, IsConflictExhausted(base))
	assert.True(t, IsConflictExhausted(errors.WithStack(base)))
	assert.False(t, IsConflictExhausted(io.EOF))
	assert.ErrorIs(t, base, base.LastError)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		"value -1 is invalid for field batchSize; must be positive",
		(&ErrInvalidArgument{Name: "batchSize", Value: -1, Message: "must be positive"}).Error(),
	)
	assert.Equal(t,
		"value 0 is invalid for field workers",
		(&ErrInvalidArgument{Name: "workers", Value: 0}).Error(),
	)
}
