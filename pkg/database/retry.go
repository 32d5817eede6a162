package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/velocab/ridecore/pkg/resilience"
)

func pgRetryConfig() resilience.RetryConfig {
	config := resilience.DefaultRetryConfig()
	config.MaxAttempts = 3
	config.InitialBackoff = 100 * time.Millisecond
	config.MaxBackoff = 2 * time.Second
	config.RetryableChecker = isPostgresRetryable
	return config
}

// RetryableQueryRow executes a single-row query with retry logic for
// transient failures.
func RetryableQueryRow[T any](ctx context.Context, pool interface {
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}, query string, args []interface{}, scanner func(pgx.Row) (T, error)) (T, error) {
	result, err := resilience.RetryWithName(ctx, pgRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return scanner(pool.QueryRow(ctx, query, args...))
	}, "database.query_row")

	if err != nil {
		return *new(T), err
	}
	return result.(T), nil
}

// RetryableQuery executes a multi-row query with retry logic for transient
// failures. The scanner must fully consume the rows.
func RetryableQuery[T any](ctx context.Context, pool interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}, query string, args []interface{}, scanner func(pgx.Rows) (T, error)) (T, error) {
	result, err := resilience.RetryWithName(ctx, pgRetryConfig(), func(ctx context.Context) (interface{}, error) {
		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			return *new(T), err
		}
		defer rows.Close()

		return scanner(rows)
	}, "database.query")

	if err != nil {
		return *new(T), err
	}
	return result.(T), nil
}

// RetryableExec executes a command with retry logic for transient failures.
func RetryableExec(ctx context.Context, pool interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
}, query string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := resilience.RetryWithName(ctx, pgRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return pool.Exec(ctx, query, args...)
	}, "database.exec")

	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return result.(pgconn.CommandTag), nil
}

// RetryableTransaction runs fn inside a transaction, retrying the whole
// transaction on serialization failures and deadlocks. fn must be safe to
// re-run from scratch.
func RetryableTransaction(ctx context.Context, pool interface {
	Begin(context.Context) (pgx.Tx, error)
}, fn func(pgx.Tx) error) error {
	config := pgRetryConfig()
	config.InitialBackoff = 50 * time.Millisecond
	config.MaxBackoff = 1 * time.Second

	_, err := resilience.RetryWithName(ctx, config, func(ctx context.Context) (interface{}, error) {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}

		return nil, nil
	}, "database.transaction")

	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint name. Idempotency-key replays surface
// as unique violations and must not be retried.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// isPostgresRetryable determines if a PostgreSQL error should be retried
func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P03", // cannot_connect_now
			"08000", "08003", "08006": // connection_exception
			return true
		}
		// Constraint violations, data exceptions and syntax errors will
		// not succeed on retry.
		if strings.HasPrefix(pgErr.Code, "23") ||
			strings.HasPrefix(pgErr.Code, "22") ||
			strings.HasPrefix(pgErr.Code, "42") {
			return false
		}
		return false
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}

	// Network-level failures are worth one more try.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout")
}
