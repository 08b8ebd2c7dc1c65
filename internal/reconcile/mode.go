package reconcile

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"kbexport/internal/monitor"
)

// Mode names one of the four catalog operations.
type Mode string

const (
	ModeList             Mode = "list"
	ModeListChanges      Mode = "list_changes"
	ModeListFiles        Mode = "list_files"
	ModeListChangesFiles Mode = "list_changes_files"
)

// Modes lists every operation in documentation order.
var Modes = []Mode{ModeList, ModeListChanges, ModeListFiles, ModeListChangesFiles}

// ParseMode validates an operation name. Hyphens are accepted for underscores.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want list, list_changes, list_files or list_changes_files)", s)
}

// RendersFiles reports whether m writes article files.
func (m Mode) RendersFiles() bool { return m == ModeListFiles || m == ModeListChangesFiles }

// Options select and parameterize an operation.
type Options struct {
	Mode Mode
	// NewerOnly applies to ModeListChangesFiles only.
	NewerOnly bool
}

// Run executes the selected operation. A panic inside the operation is
// recovered and returned as an error.
func Run(ctx context.Context, c *Controller, opts Options) (res *Result, err error) {
	op := string(opts.Mode)
	c.notify(monitor.Event{Kind: monitor.KindStart, Operation: op})
	defer func() {
		if r := recover(); r != nil {
			c.logger().ErrorContext(ctx, "operation panicked", "op", op, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("%s: panic: %v", op, r)
		}
		if err != nil {
			c.notify(monitor.Event{Kind: monitor.KindError, Operation: op, Err: err})
			return
		}
		c.notify(monitor.Event{Kind: monitor.KindDone, Operation: op, Count: len(res.Rendered)})
	}()

	switch opts.Mode {
	case ModeList:
		snap, err := c.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res := newResult(opts.Mode)
		res.Articles = len(snap)
		return res, nil
	case ModeListChanges:
		report, n, err := c.listChanges(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res := newResult(opts.Mode)
		res.Report = report
		res.Articles = n
		res.FirstRun = report == nil
		return res, nil
	case ModeListFiles:
		res, err := c.ListFiles(ctx)
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		return res, nil
	case ModeListChangesFiles:
		res, err := c.ListChangesFiles(ctx, opts.NewerOnly)
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("unknown mode %q", opts.Mode)
}
