package migration

import (
	"errors"
	"fmt"
)

// ErrNoMigrations is reported when an operation needs at least one
// migration on disk.
var ErrNoMigrations = errors.New("no migrations found, run migrado init")

// ErrInitialExists is returned by Init when the first migration is already
// on disk. Nothing is written and the run is not a failure.
var ErrInitialExists = errors.New("initial migration already exists")

// UsageError is a problem with the invocation or configuration that the
// user has to fix. Nothing has been mutated when it is returned.
type UsageError struct {
	Msg string
	Err error
}

func (e *UsageError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "usage error"
	}
}

func (e *UsageError) Unwrap() error { return e.Err }

// Usagef builds a UsageError from a format string.
func Usagef(format string, args ...any) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// IsUsage reports whether err is or wraps a UsageError.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// TransactionExecutionError is a rejected transactional apply. The runner
// recovers from it by falling back to script execution.
type TransactionExecutionError struct {
	ID        string
	Direction Direction
	Err       error
}

func (e *TransactionExecutionError) Error() string {
	return fmt.Sprintf("%s migration %s failed in transaction: %v", e.Direction, e.ID, e.Err)
}

func (e *TransactionExecutionError) Unwrap() error { return e.Err }

// ScriptExecutionError is a failed out-of-band script run. It aborts the
// run; Output carries what the script runner printed.
type ScriptExecutionError struct {
	ID        string
	Direction Direction
	Output    string
	Err       error
}

func (e *ScriptExecutionError) Error() string {
	msg := fmt.Sprintf("%s migration %s failed as script: %v", e.Direction, e.ID, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *ScriptExecutionError) Unwrap() error { return e.Err }
