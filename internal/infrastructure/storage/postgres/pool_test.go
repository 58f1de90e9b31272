package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"explostock/internal/core/apperror"
)

func TestPoolConfig_SessionSettings(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/explostock")
	assert.Equal(t, []string{
		"SET application_name = 'explostock'",
		"SET lock_timeout = 5000",
		"SET statement_timeout = 30000",
	}, cfg.sessionSettings())

	cfg.ApplicationName = "o'brien"
	cfg.LockTimeout = 0
	cfg.StatementTimeout = 1500 * time.Millisecond
	assert.Equal(t, []string{
		"SET application_name = 'o''brien'",
		"SET statement_timeout = 1500",
	}, cfg.sessionSettings())
}

func TestMapError(t *testing.T) {
	pgErr := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, ConstraintName: "c"})
	}

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no rows", pgx.ErrNoRows, apperror.CodeNotFound},
		{"unique", pgErr(pgUniqueViolation), apperror.CodeDuplicate},
		{"serialization", pgErr(pgSerializationFailure), apperror.CodeConcurrentModification},
		{"deadlock", pgErr(pgDeadlockDetected), apperror.CodeConcurrentModification},
		{"lock timeout", pgErr(pgLockNotAvailable), apperror.CodeConcurrentModification},
		{"check", pgErr(pgCheckViolation), apperror.CodeValidation},
		{"foreign key", pgErr(pgForeignKeyViolation), apperror.CodeValidation},
		{"other", errors.New("connection reset"), apperror.CodePersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperror.HasCode(MapError("op", "batch", tt.err), tt.code))
		})
	}

	assert.Nil(t, MapError("op", "batch", nil))

	appErr := apperror.NewInvalidState("batch", "b-1", "allocate", "Expired")
	assert.Same(t, appErr, MapError("op", "batch", appErr))
}
