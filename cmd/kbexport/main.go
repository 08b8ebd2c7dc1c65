// kbexport exports knowledge-base articles to PDF, tracks catalog changes
// between runs and packages the exported files.
//
// Usage:
//
//	kbexport run     [--mode=<mode>] [--newer-only] [--package=<none|zip|merge|both>]
//	kbexport list
//	kbexport changes
//	kbexport files   [--package=...]
//	kbexport sync    [--newer-only] [--package=...]
//	kbexport status  [--articles] [--diff]
//	kbexport serve
//
// Settings come from --config/--profile and KBEXPORT_PASSWORD.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kbexport/internal/config"
	"kbexport/internal/lock"
)

// Exit statuses.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
	exitLocked = 3
)

// exitError carries an explicit exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, lock.ErrLocked):
		return exitLocked
	default:
		return exitFailed
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kbexport:", err)
	}
	os.Exit(exitCode(err))
}
