package connector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"
)

// Run represents a single migration attempt from the runs table.
type Run struct {
	ID          int
	MigrationID string
	Direction   string
	Phase       string
	Failed      bool
	Output      string
	RanAt       string // RFC3339Nano
}

// TableNames represents database table names
type TableNames struct {
	State string
	Runs  string
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects names that cannot be interpolated into SQL safely.
func (th TableNames) Validate() error {
	for _, n := range []string{th.State, th.Runs} {
		if !identifier.MatchString(n) {
			return fmt.Errorf("invalid table name %q", n)
		}
	}
	return nil
}

// Dialect captures the SQL differences between backends.
type Dialect interface {
	Placeholder(index int) string
	EnsureStatements(th TableNames) []string
	UpsertStatement(table string) string
	ConvertBoolToStorage(b bool) interface{}
	ConvertBoolFromStorage(val interface{}) bool
	ConvertTimeToStorage(t time.Time) interface{}
	ConvertTimeFromStorage(val interface{}) string
	Connect(dsn string) (*sql.DB, error)
	DriverName() string
}

// Connector is a SQL state backend: a key/value table for the state and
// schema documents plus an append-only run history.
type Connector interface {
	Load(config map[string]interface{}) error
	Validate() error
	Connect(ctx context.Context) error
	Ensure(ctx context.Context, th TableNames) error
	Get(ctx context.Context, th TableNames, key string) (string, bool, error)
	Put(ctx context.Context, th TableNames, key, value string) error
	RecordRun(ctx context.Context, th TableNames, run Run) error
	ListRuns(ctx context.Context, th TableNames) ([]Run, error)
	Close() error
}
