// Package mcp exposes the catalog operations as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"kbexport/internal/catalog"
	"kbexport/internal/lock"
	"kbexport/internal/logging"
	"kbexport/internal/monitor"
	"kbexport/internal/reconcile"
	"kbexport/internal/store"
)

// ControllerFactory builds the controller for one run_operation call. The
// returned close function releases per-run resources such as the browser.
type ControllerFactory func(obs monitor.Observer) (*reconcile.Controller, func() error, error)

// Config wires the server to one output directory.
type Config struct {
	Store store.Store
	// LockDir holds the session lock taken around every operation.
	LockDir       string
	NewController ControllerFactory
	Version       string
}

// Server wraps the MCP SDK server. Operations run one at a time.
type Server struct {
	MCPServer *sdkmcp.Server

	cfg    Config
	events *monitor.Recorder
	runMu  sync.Mutex
}

// NewServer creates an MCP server with the kbexport tools registered.
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{cfg: cfg, events: &monitor.Recorder{}}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "kbexport", Version: cfg.Version},
		nil,
	)
	s.registerTools()
	return s
}

// Events returns the server's event log.
func (s *Server) Events() *monitor.Recorder { return s.events }

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_operation",
		Description: "Run one catalog operation (list, list_changes, list_files, list_changes_files) against the configured output directory and return its result.",
	}, s.handleRunOperation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_changes",
		Description: "Return the last persisted change report and the listing diff, if any.",
	}, s.handleGetChanges)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_snapshot",
		Description: "Return the stored catalog snapshot (primary, or the rotated previous one).",
	}, s.handleGetSnapshot)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_events",
		Description: "Read progress events recorded by operations run through this server, optionally from an index onward.",
	}, s.handleGetEvents)
}

// --- Tool input/output types ---

type runOperationInput struct {
	Mode      string `json:"mode" jsonschema:"operation: list, list_changes, list_files or list_changes_files"`
	NewerOnly bool   `json:"newer_only,omitempty" jsonschema:"list_changes_files only: never delete local files"`
}

type runOperationOutput struct {
	Mode     string     `json:"mode"`
	FirstRun bool       `json:"first_run"`
	Articles int        `json:"articles"`
	Report   *reportOut `json:"report,omitempty"`
	Rendered []string   `json:"rendered"`
	Failed   []string   `json:"failed"`
	Deleted  []string   `json:"deleted"`
	// DeleteFailed lists stale files that could not be removed.
	DeleteFailed []string `json:"delete_failed,omitempty"`
	EventsFrom   int      `json:"events_from"`
}

// reportOut is a change report with the timestamp as RFC 3339 text.
type reportOut struct {
	LastUpdatedOn string   `json:"last_updated_on"`
	Added         []string `json:"added"`
	Updated       []string `json:"updated"`
	Removed       []string `json:"removed"`
}

func toReportOut(r *catalog.ChangeReport) *reportOut {
	if r == nil {
		return nil
	}
	nonNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	return &reportOut{
		LastUpdatedOn: r.LastUpdatedOn.UTC().Format(time.RFC3339),
		Added:         nonNil(r.Changes.Added),
		Updated:       nonNil(r.Changes.Updated),
		Removed:       nonNil(r.Changes.Removed),
	}
}

type getChangesInput struct{}

type getChangesOutput struct {
	Found   bool       `json:"found"`
	Report  *reportOut `json:"report,omitempty"`
	Listing string     `json:"listing,omitempty"`
}

type getSnapshotInput struct {
	Previous bool `json:"previous,omitempty" jsonschema:"read the rotated previous snapshot instead of the primary"`
	Limit    int  `json:"limit,omitempty" jsonschema:"return at most this many articles (0 = all)"`
}

type getSnapshotOutput struct {
	Found    bool                    `json:"found"`
	Total    int                     `json:"total"`
	Articles []catalog.ArticleRecord `json:"articles"`
}

type getEventsInput struct {
	Since int `json:"since,omitempty" jsonschema:"return events from this index onward (0-based)"`
}

type eventOut struct {
	Time      string `json:"ts"`
	Kind      string `json:"kind"`
	Operation string `json:"op,omitempty"`
	Number    string `json:"number,omitempty"`
	Count     int    `json:"count,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type getEventsOutput struct {
	Events []eventOut `json:"events"`
	Total  int        `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleRunOperation(ctx context.Context, _ *sdkmcp.CallToolRequest, input runOperationInput) (*sdkmcp.CallToolResult, runOperationOutput, error) {
	mode, err := reconcile.ParseMode(input.Mode)
	if err != nil {
		return nil, runOperationOutput{}, err
	}
	if !s.runMu.TryLock() {
		return nil, runOperationOutput{}, errors.New("an operation is already running")
	}
	defer s.runMu.Unlock()

	l, err := lock.Acquire(s.cfg.LockDir)
	if err != nil {
		return nil, runOperationOutput{}, err
	}
	defer func() {
		if err := l.Release(); err != nil {
			logging.New("mcp").Warn("release lock", "error", err)
		}
	}()

	from := s.events.Len()
	ctrl, closeFn, err := s.cfg.NewController(s.events)
	if err != nil {
		return nil, runOperationOutput{}, fmt.Errorf("run_operation: %w", err)
	}
	defer func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}()

	res, err := reconcile.Run(ctx, ctrl, reconcile.Options{Mode: mode, NewerOnly: input.NewerOnly})
	if err != nil {
		return nil, runOperationOutput{}, err
	}
	return nil, runOperationOutput{
		Mode:         string(res.Mode),
		FirstRun:     res.FirstRun,
		Articles:     res.Articles,
		Report:       toReportOut(res.Report),
		Rendered:     res.Rendered,
		Failed:       res.Failed,
		Deleted:      res.Deleted,
		DeleteFailed: res.DeleteFailed,
		EventsFrom:   from,
	}, nil
}

func (s *Server) handleGetChanges(_ context.Context, _ *sdkmcp.CallToolRequest, _ getChangesInput) (*sdkmcp.CallToolResult, getChangesOutput, error) {
	report, err := s.cfg.Store.LoadReport()
	if errors.Is(err, store.ErrNotFound) {
		return nil, getChangesOutput{Found: false}, nil
	}
	if err != nil {
		return nil, getChangesOutput{}, err
	}
	listing, err := s.cfg.Store.LoadListing()
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, getChangesOutput{}, err
	}
	return nil, getChangesOutput{Found: true, Report: toReportOut(report), Listing: listing}, nil
}

func (s *Server) handleGetSnapshot(_ context.Context, _ *sdkmcp.CallToolRequest, input getSnapshotInput) (*sdkmcp.CallToolResult, getSnapshotOutput, error) {
	name := store.Primary
	if input.Previous {
		name = store.PreviousOf(store.Primary)
	}
	snap, err := s.cfg.Store.Load(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, getSnapshotOutput{Found: false, Articles: []catalog.ArticleRecord{}}, nil
	}
	if err != nil {
		return nil, getSnapshotOutput{}, err
	}
	out := getSnapshotOutput{Found: true, Total: len(snap), Articles: snap}
	if input.Limit > 0 && input.Limit < len(snap) {
		out.Articles = snap[:input.Limit]
	}
	return nil, out, nil
}

func (s *Server) handleGetEvents(_ context.Context, _ *sdkmcp.CallToolRequest, input getEventsInput) (*sdkmcp.CallToolResult, getEventsOutput, error) {
	events := s.events.Since(input.Since)
	out := getEventsOutput{Events: make([]eventOut, 0, len(events)), Total: s.events.Len()}
	for _, e := range events {
		eo := eventOut{
			Time:      e.Time.UTC().Format(time.RFC3339),
			Kind:      string(e.Kind),
			Operation: e.Operation,
			Number:    e.Number,
			Count:     e.Count,
			Message:   e.Message,
		}
		if e.Err != nil {
			eo.Error = e.Err.Error()
		}
		out.Events = append(out.Events, eo)
	}
	return nil, out, nil
}
