package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// promptPassword reads a password from the terminal without echo.
func promptPassword(label string) (string, error) {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return "", errors.New("stdin is not a terminal, pass --password or -y")
	}
	_, _ = fmt.Fprint(os.Stderr, label)
	// #nosec G115 -- file descriptors fit in an int
	b, err := term.ReadPassword(int(fd))
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
