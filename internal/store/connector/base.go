package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/retry"
)

// Base implements the Connector operations shared by every SQL dialect.
// Backends embed it and provide Load, Validate and Connect.
type Base struct {
	DB      *sql.DB
	Dialect Dialect
	Retry   *retry.Config
}

func (b *Base) logger() *common.Logger {
	return common.GetLogger().WithStore(b.Dialect.DriverName())
}

func (b *Base) ready() error {
	if b.DB == nil {
		return errors.New("store is not connected")
	}
	return nil
}

// Close closes the database connection
func (b *Base) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// Ensure creates the state and runs tables.
func (b *Base) Ensure(ctx context.Context, th TableNames) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := th.Validate(); err != nil {
		return err
	}
	logger := b.logger()
	logger.Debug("ensuring state tables", "tables", []string{th.State, th.Runs})

	for i, q := range b.Dialect.EnsureStatements(th) {
		if _, err := b.DB.ExecContext(ctx, q); err != nil {
			logger.Error("failed to create table", "error", err, "table_index", i+1, "sql", q)
			return fmt.Errorf("failed to create table %d in schema setup: %w", i+1, err)
		}
	}
	return nil
}

// Get returns the value stored under key.
func (b *Base) Get(ctx context.Context, th TableNames, key string) (string, bool, error) {
	if err := b.ready(); err != nil {
		return "", false, err
	}
	q := fmt.Sprintf("SELECT value FROM %s WHERE key = %s", th.State, b.Dialect.Placeholder(1))

	type result struct {
		value string
		found bool
	}
	r, err := retry.WithRetryValue(ctx, b.Retry, func() (result, error) {
		var v string
		err := b.DB.QueryRowContext(ctx, q, key).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return result{}, nil
		}
		if err != nil {
			return result{}, err
		}
		return result{value: v, found: true}, nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return r.value, r.found, nil
}

// Put upserts value under key.
func (b *Base) Put(ctx context.Context, th TableNames, key, value string) error {
	if err := b.ready(); err != nil {
		return err
	}
	q := b.Dialect.UpsertStatement(th.State)
	_, err := retry.WithRetryExec(ctx, b.Retry, func() (sql.Result, error) {
		return b.DB.ExecContext(ctx, q, key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	b.logger().Debug("state document written", "key", key)
	return nil
}

// RecordRun appends one attempt to the run history. RanAt is kept when
// set and defaults to now.
func (b *Base) RecordRun(ctx context.Context, th TableNames, run Run) error {
	if err := b.ready(); err != nil {
		return err
	}
	ranAt := time.Now().UTC()
	if run.RanAt != "" {
		t, err := time.Parse(time.RFC3339Nano, run.RanAt)
		if err != nil {
			return fmt.Errorf("invalid run time %q: %w", run.RanAt, err)
		}
		ranAt = t.UTC()
	}
	d := b.Dialect
	q := fmt.Sprintf("INSERT INTO %s(migration_id, direction, phase, failed, output, ran_at) VALUES(%s,%s,%s,%s,%s,%s)",
		th.Runs, d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4), d.Placeholder(5), d.Placeholder(6))

	_, err := retry.WithRetryExec(ctx, b.Retry, func() (sql.Result, error) {
		return b.DB.ExecContext(ctx, q, run.MigrationID, run.Direction, run.Phase,
			d.ConvertBoolToStorage(run.Failed), run.Output, d.ConvertTimeToStorage(ranAt))
	})
	if err != nil {
		return fmt.Errorf("failed to record run (migration %s, direction %s, phase %s): %w",
			run.MigrationID, run.Direction, run.Phase, err)
	}
	return nil
}

// ListRuns returns the run history ordered by id.
func (b *Base) ListRuns(ctx context.Context, th TableNames) ([]Run, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT id, migration_id, direction, phase, failed, output, ran_at FROM %s ORDER BY id ASC", th.Runs)
	rows, err := b.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r      Run
			failed interface{}
			ranAt  interface{}
		)
		if err := rows.Scan(&r.ID, &r.MigrationID, &r.Direction, &r.Phase, &failed, &r.Output, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Failed = b.Dialect.ConvertBoolFromStorage(failed)
		r.RanAt = b.Dialect.ConvertTimeFromStorage(ranAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
