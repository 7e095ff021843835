package main

import (
	"os"

	"github.com/loykin/migrado"
	"github.com/loykin/migrado/internal/common"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct{}

// NewDefaultExitHandler creates a new default exit handler
func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{}
}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs err with the logger configured for the invocation and
// exits with the code matching its kind.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	allKeyvals := append([]any{"error", err}, keyvals...)
	common.GetLogger().WithComponent("main").Error(msg, allKeyvals...)
	h.Exit(exitCode(err))
}

// exitCode maps usage errors to 2 and every other failure to 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case migrado.IsUsage(err):
		return exitUsage
	default:
		return exitFailure
	}
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = NewDefaultExitHandler()
