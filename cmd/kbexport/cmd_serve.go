package main

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"kbexport/internal/logging"
	mcpserver "kbexport/internal/mcp"
	"kbexport/internal/monitor"
	"kbexport/internal/reconcile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP tool server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing run_operation,
get_changes, get_snapshot and get_events for the configured profile. Every
run_operation call takes the output directory's session lock for its
duration.

The server exits when its client disconnects or the parent process dies.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.PrepareDirs(); err != nil {
		return err
	}
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	logObs := &monitor.LogObserver{Logger: logging.New("monitor")}
	srv := mcpserver.NewServer(mcpserver.Config{
		Store:   b.store,
		LockDir: cfg.OutputDir,
		Version: version,
		NewController: func(obs monitor.Observer) (*reconcile.Controller, func() error, error) {
			ctrl, closeFn := b.controller(monitor.Multi{logObs, obs})
			return ctrl, closeFn, nil
		},
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, 0, cancel)

	logging.New("mcp").Info("starting kbexport MCP server over stdio (parent watchdog active)", "output_dir", cfg.OutputDir)
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
