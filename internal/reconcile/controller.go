// Package reconcile keeps the snapshot store, the change report and the
// rendered-article folder in step with the remote catalog.
//
// Every operation is a linear pipeline recreated per call. Re-running a whole
// operation is always safe; nothing is resumed from a half-finished run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"kbexport/internal/catalog"
	"kbexport/internal/logging"
	"kbexport/internal/monitor"
	"kbexport/internal/render"
	"kbexport/internal/store"
)

// Fetcher reads the current remote catalog.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (catalog.Snapshot, error)
}

// Controller runs the catalog operations against one output directory.
type Controller struct {
	Store    store.Store
	Fetcher  Fetcher
	Renderer render.Renderer
	// FilesDir receives one rendered file per article.
	FilesDir string

	// Observer receives progress events; nil discards them.
	Observer monitor.Observer
	Logger   *slog.Logger
	// Now stamps change reports; nil means time.Now.
	Now func() time.Time
}

// Result summarizes one operation.
type Result struct {
	Mode Mode `json:"mode"`
	// FirstRun is set when a change-tracking operation found no prior
	// snapshot.
	FirstRun bool `json:"first_run"`
	// Articles is the size of the snapshot fetched by this run.
	Articles int                   `json:"articles"`
	Report   *catalog.ChangeReport `json:"report,omitempty"`
	Rendered []string              `json:"rendered"`
	Failed   []string              `json:"failed"`
	Deleted  []string              `json:"deleted"`
	// DeleteFailed lists files that should have been removed but could not be.
	DeleteFailed []string `json:"delete_failed,omitempty"`
}

func newResult(m Mode) *Result {
	return &Result{Mode: m, Rendered: []string{}, Failed: []string{}, Deleted: []string{}}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.New("reconcile")
}

func (c *Controller) notify(e monitor.Event) {
	if c.Observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	c.Observer.Notify(e)
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// clearWorkspace drops the rotated snapshot and the change report left by an
// earlier change-tracking run. Rendered files are not touched.
func (c *Controller) clearWorkspace() error {
	if err := c.Store.Remove(store.PreviousOf(store.Primary)); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}
	if err := c.Store.RemoveReport(); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}
	return nil
}

// List clears the workspace, fetches the catalog and saves it as the primary
// snapshot.
func (c *Controller) List(ctx context.Context) (catalog.Snapshot, error) {
	if err := c.clearWorkspace(); err != nil {
		return nil, err
	}
	snap, err := c.Fetcher.FetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Save(store.Primary, snap); err != nil {
		return nil, err
	}
	c.logger().InfoContext(ctx, "snapshot saved", "articles", len(snap))
	c.notify(monitor.Event{Kind: monitor.KindSnapshotSaved, Operation: string(ModeList), Count: len(snap)})
	return snap, nil
}

// ListChanges fetches the catalog, rotates the primary snapshot, diffs the
// two and persists the change report. Without a primary snapshot it warns
// and returns a nil report.
//
// The catalog is fetched before anything is rotated, so a failed fetch leaves
// the stored snapshots as they were.
func (c *Controller) ListChanges(ctx context.Context) (*catalog.ChangeReport, error) {
	report, _, err := c.listChanges(ctx)
	return report, err
}

func (c *Controller) listChanges(ctx context.Context) (*catalog.ChangeReport, int, error) {
	ok, err := c.Store.Exists(store.Primary)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		c.logger().WarnContext(ctx, "no previous snapshot, nothing to compare against; run list first")
		c.notify(monitor.Event{Kind: monitor.KindWarning, Operation: string(ModeListChanges), Message: "no previous snapshot"})
		return nil, 0, nil
	}

	current, err := c.Fetcher.FetchSnapshot(ctx)
	if err != nil {
		return nil, 0, err
	}
	if id := current.DuplicateIdentity(); id != "" {
		return nil, 0, fmt.Errorf("fetched snapshot repeats sys_id %q", id)
	}

	prevName, err := c.Store.Rotate(store.Primary)
	if err != nil {
		return nil, 0, err
	}
	if err := c.Store.Save(store.Primary, current); err != nil {
		if rerr := c.restorePrimary(prevName); rerr != nil {
			return nil, 0, errors.Join(err, rerr)
		}
		return nil, 0, err
	}
	c.notify(monitor.Event{Kind: monitor.KindSnapshotSaved, Operation: string(ModeListChanges), Count: len(current)})

	previous, err := c.Store.Load(prevName)
	if err != nil {
		return nil, 0, err
	}
	report := catalog.DiffAt(previous, current, c.now())
	listing, err := catalog.UnifiedListing(previous, current, string(prevName), string(store.Primary))
	if err != nil {
		return nil, 0, fmt.Errorf("listing diff: %w", err)
	}
	if err := c.Store.SaveReport(report, listing); err != nil {
		return nil, 0, err
	}

	ch := report.Changes
	c.logger().InfoContext(ctx, "changes computed",
		"added", len(ch.Added), "updated", len(ch.Updated), "removed", len(ch.Removed))
	c.notify(monitor.Event{
		Kind:      monitor.KindChanges,
		Operation: string(ModeListChanges),
		Count:     len(ch.Added) + len(ch.Updated) + len(ch.Removed),
		Message:   fmt.Sprintf("%d added, %d updated, %d removed", len(ch.Added), len(ch.Updated), len(ch.Removed)),
	})
	return report, len(current), nil
}

// restorePrimary puts the rotated snapshot back after a failed save.
func (c *Controller) restorePrimary(prev store.Name) error {
	snap, err := c.Store.Load(prev)
	if err != nil {
		return fmt.Errorf("restore primary: %w", err)
	}
	if err := c.Store.Save(store.Primary, snap); err != nil {
		return fmt.Errorf("restore primary: %w", err)
	}
	return nil
}

// ListFiles runs List and renders every article of the new snapshot.
func (c *Controller) ListFiles(ctx context.Context) (*Result, error) {
	res := newResult(ModeListFiles)
	snap, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	res.Articles = len(snap)
	if err := c.renderAll(ctx, snap.Numbers(), res); err != nil {
		return res, err
	}
	return res, nil
}

// ListChangesFiles runs ListChanges and applies the report to FilesDir.
// Without a primary snapshot it falls back to ListFiles.
//
// In full mode the files of updated and removed articles are deleted before
// updated and added articles are rendered again. With newerOnly nothing is
// deleted: FilesDir is an inbox that only receives new and changed articles
// and is drained by its consumer between runs.
func (c *Controller) ListChangesFiles(ctx context.Context, newerOnly bool) (*Result, error) {
	ok, err := c.Store.Exists(store.Primary)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger().InfoContext(ctx, "no previous snapshot, populating every article")
		res, err := c.ListFiles(ctx)
		if res != nil {
			res.Mode = ModeListChangesFiles
			res.FirstRun = true
		}
		return res, err
	}

	res := newResult(ModeListChangesFiles)
	report, n, err := c.listChanges(ctx)
	if err != nil {
		return nil, err
	}
	res.Articles = n
	res.Report = report
	if report == nil {
		return res, nil
	}

	if !newerOnly {
		c.deleteAll(ctx, report.Changes.Stale(), res)
	}
	if err := c.renderAll(ctx, report.Changes.Refetch(), res); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Controller) deleteAll(ctx context.Context, numbers []string, res *Result) {
	for _, number := range numbers {
		path, err := render.Path(c.FilesDir, number)
		if err == nil {
			err = os.Remove(path)
		}
		switch {
		case err == nil:
			res.Deleted = append(res.Deleted, number)
			c.notify(monitor.Event{Kind: monitor.KindDeleted, Operation: string(res.Mode), Number: number})
		case errors.Is(err, os.ErrNotExist):
		default:
			res.DeleteFailed = append(res.DeleteFailed, number)
			c.logger().WarnContext(ctx, "delete failed", "number", number, "error", err)
			c.notify(monitor.Event{Kind: monitor.KindWarning, Operation: string(res.Mode), Number: number, Message: "delete failed", Err: err})
		}
	}
}

// renderAll renders numbers one at a time, in order. A failing article is
// recorded and skipped; only cancellation stops the batch.
func (c *Controller) renderAll(ctx context.Context, numbers []string, res *Result) error {
	if len(numbers) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.FilesDir, 0o755); err != nil {
		return fmt.Errorf("create files dir: %w", err)
	}
	log := c.logger()
	for i, number := range numbers {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if _, err := c.Renderer.Render(ctx, number, c.FilesDir); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failed = append(res.Failed, number)
			log.WarnContext(ctx, "render failed", "number", number, "error", err)
			c.notify(monitor.Event{Kind: monitor.KindRenderFailed, Operation: string(res.Mode), Number: number, Err: err})
			continue
		}
		res.Rendered = append(res.Rendered, number)
		log.InfoContext(ctx, "rendered", "number", number,
			"progress", fmt.Sprintf("%d/%d", i+1, len(numbers)), "elapsed", time.Since(start).Round(time.Millisecond))
		c.notify(monitor.Event{Kind: monitor.KindRendered, Operation: string(res.Mode), Number: number, Count: i + 1})
	}
	return nil
}
