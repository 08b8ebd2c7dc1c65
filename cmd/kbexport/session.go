package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"kbexport/internal/config"
	"kbexport/internal/format"
	"kbexport/internal/lock"
	"kbexport/internal/logging"
	"kbexport/internal/monitor"
	"kbexport/internal/pack"
	"kbexport/internal/reconcile"
	"kbexport/internal/render"
	"kbexport/internal/snow"
	"kbexport/internal/store"
)

// operationFlags are the per-run overrides shared by run, files and sync.
type operationFlags struct {
	mode      string
	newerOnly bool
	pkg       string
}

// loadConfig merges defaults, profiles and command-line overrides and sets
// up logging. It does not validate.
func loadConfig(cmd *cobra.Command, op *operationFlags) (*config.Config, error) {
	cfg, err := config.Load(rootFlags.config, rootFlags.profile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = rootFlags.outputDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = rootFlags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = rootFlags.logFormat
	}
	if op != nil {
		if flags.Changed("mode") {
			cfg.Mode = op.mode
		}
		if flags.Changed("newer-only") {
			cfg.NewerOnly = op.newerOnly
		}
		if flags.Changed("package") {
			cfg.Package = op.pkg
		}
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	logging.Init(level, cfg.LogFormat, cmd.ErrOrStderr())
	return cfg, nil
}

func tableMode() (format.Mode, error) {
	m, err := format.ParseMode(rootFlags.format)
	if err != nil {
		return m, usageError(err)
	}
	return m, nil
}

// backend is the remote client and snapshot store for one output directory.
type backend struct {
	cfg    *config.Config
	store  store.Store
	client *snow.Client
}

func openBackend(cfg *config.Config) (*backend, error) {
	client, err := snow.New(cfg.Instance, cfg.User, cfg.Password,
		snow.WithTimeout(cfg.Timeout),
		snow.WithLogger(logging.New("snow")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	st, err := store.Open(store.Backend(cfg.Store), cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &backend{cfg: cfg, store: st, client: client}, nil
}

func (b *backend) Close() error { return b.store.Close() }

// controller builds a controller printing through a fresh browser. The
// returned function closes the browser.
func (b *backend) controller(obs monitor.Observer) (*reconcile.Controller, func() error) {
	r := render.NewPDFRenderer(b.client.Knowledge(), render.PDFConfig{
		Rules:    b.cfg.Rules(),
		Timeout:  b.cfg.RenderTimeout,
		ExecPath: b.cfg.Browser.ExecPath,
		Headful:  b.cfg.Browser.Headful,
		Logger:   logging.New("render"),
	})
	fetcher := snow.NewFetcher(b.client, snow.FetchOptions{
		Query:    b.cfg.Query,
		Domain:   b.cfg.Domain,
		PageSize: b.cfg.PageSize,
	})
	return &reconcile.Controller{
		Store:    b.store,
		Fetcher:  fetcher,
		Renderer: r,
		FilesDir: b.cfg.FilesPath(),
		Observer: obs,
		Logger:   logging.New("reconcile"),
	}, r.Close
}

// runOperation validates cfg, takes the session lock and runs mode. The lock
// is released on every path out, including panics inside the operation.
func runOperation(cmd *cobra.Command, cfg *config.Config, mode reconcile.Mode) (err error) {
	tm, err := tableMode()
	if err != nil {
		return err
	}
	cfg.Mode = string(mode)
	if err := cfg.Validate(); err != nil {
		return err
	}
	pkgMode, err := pack.ParseMode(cfg.Package)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if err := cfg.PrepareDirs(); err != nil {
		return err
	}

	log := logging.New("kbexport")
	log.Debug("effective settings", "config", cfg.Redacted())
	l, err := lock.Acquire(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil {
			log.Warn("release lock", "error", rerr)
		}
	}()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctrl, closeBrowser := b.controller(&monitor.LogObserver{Logger: logging.New("monitor")})
	defer func() {
		if cerr := closeBrowser(); cerr != nil {
			log.Warn("close browser", "error", cerr)
		}
	}()

	ctx := cmd.Context()
	log.Info("run started", "mode", mode, "run_id", l.Info().RunID, "instance", b.client.BaseURL(), "output_dir", cfg.OutputDir)
	res, err := reconcile.Run(ctx, ctrl, reconcile.Options{Mode: mode, NewerOnly: cfg.NewerOnly})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, format.Result(tm, res))
	if res.Report != nil {
		snap, lerr := b.store.Load(store.Primary)
		if lerr != nil && !errors.Is(lerr, store.ErrNotFound) {
			return lerr
		}
		fmt.Fprint(out, format.Changes(tm, res.Report, snap))
	}

	if mode.RendersFiles() {
		paths, err := packageFiles(ctx, cfg, pkgMode, log)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "Packaged: %s\n", p)
		}
	} else if pkgMode != pack.ModeNone {
		log.Info("packaging skipped: operation renders no files", "mode", mode)
	}
	return nil
}

// packageFiles builds the archive and/or merged document from every PDF in
// the files folder.
func packageFiles(ctx context.Context, cfg *config.Config, m pack.Mode, log *slog.Logger) ([]string, error) {
	if m == pack.ModeNone {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := pack.BaseName(cfg.Instance, cfg.Domain)
	base := filepath.Join(cfg.OutputDir, name)
	found, err := pack.PDFFiles(cfg.FilesPath())
	if err != nil {
		return nil, fmt.Errorf("package: %w", err)
	}
	// A previous merged document is never an article.
	files := found[:0]
	for _, f := range found {
		if filepath.Join(cfg.FilesPath(), f) == base+".pdf" {
			log.Warn("skipping package output found among articles", "file", f)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		log.Warn("nothing to package", "dir", cfg.FilesPath())
		return nil, nil
	}

	var paths []string
	if m.Zip() {
		p, err := pack.Archive(cfg.FilesPath(), files, base)
		if err != nil {
			return paths, fmt.Errorf("package zip: %w", err)
		}
		log.Info("archive written", "path", p, "files", len(files))
		paths = append(paths, p)
	}
	if m.Merge() {
		p, err := pack.Merge(cfg.FilesPath(), files, base)
		if err != nil {
			return paths, fmt.Errorf("package merge: %w", err)
		}
		log.Info("merged document written", "path", p, "files", len(files))
		paths = append(paths, p)
	}
	return paths, nil
}
