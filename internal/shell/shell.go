// Package shell runs migration bodies through arangosh.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/migrado/internal/auth"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/constants"
)

// failureMarkers in arangosh output mean the script raised even when the
// process exited zero.
var failureMarkers = []string{"JavaScript exception", "ArangoError"}

// Runner executes scripts with arangosh.
type Runner struct {
	// Path is the arangosh binary, looked up in PATH when relative.
	Path     string
	Endpoint string
	Database string
	Timeout  time.Duration
	Auth     auth.Method
	Logger   *common.Logger
}

// Args returns the arangosh command line for body, minus the binary.
func (r *Runner) Args(body string) []string {
	args := []string{
		"--server.endpoint", r.Endpoint,
		"--server.database", r.Database,
	}
	if r.Timeout > 0 {
		args = append(args, "--server.request-timeout", strconv.Itoa(int(r.Timeout.Seconds())))
	}
	method := r.Auth
	if method == nil {
		method = auth.None()
	}
	args = append(args, method.ShellArgs()...)
	args = append(args, "--javascript.execute-string", "("+body+")()")
	return args
}

func (r *Runner) logger() *common.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return common.GetLogger().WithComponent("arangosh")
}

// RunScript executes body as `(body)()` and returns the combined output.
// Escaped newlines in the output are expanded.
func (r *Runner) RunScript(ctx context.Context, body string) (string, error) {
	path := r.Path
	if path == "" {
		path = constants.DefaultArangosh
	}
	args := r.Args(body)
	logger := r.logger()
	logger.Debug("running arangosh", "command", logger.Masked(path+" "+strings.Join(args, " ")))

	// #nosec G204 -- the binary and the script are chosen by the operator
	cmd := exec.CommandContext(ctx, path, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.ReplaceAll(buf.String(), `\n`, "\n")

	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return out, fmt.Errorf("arangosh not found at %q: %w", path, err)
		}
		return out, fmt.Errorf("arangosh: %w", err)
	}
	for _, marker := range failureMarkers {
		if strings.Contains(out, marker) {
			return out, fmt.Errorf("arangosh reported %s", marker)
		}
	}
	return out, nil
}
