package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kbexport/internal/config"
	"kbexport/internal/format"
	"kbexport/internal/lock"
	"kbexport/internal/store"
)

var statusFlags struct {
	articles bool
	diff     bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored snapshot, the last change report and the lock",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.BoolVar(&statusFlags.articles, "articles", false, "List every article in the stored snapshot")
	f.BoolVar(&statusFlags.diff, "diff", false, "Print the unified diff of the last two listings")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	tm, err := tableMode()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", config.ErrInvalid)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Output:   %s\n", cfg.OutputDir)

	info, err := lock.Read(cfg.OutputDir)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Lock:     held by pid %d on %s since %s (run %s)\n",
			info.PID, info.Host, format.FmtTime(info.StartedAt), info.RunID)
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(out, "Lock:     free\n")
	default:
		fmt.Fprintf(out, "Lock:     unreadable (%v)\n", err)
	}

	st, err := store.Open(store.Backend(cfg.Store), cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	snap, err := st.Load(store.Primary)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(out, "Snapshot: none\n")
		fmt.Fprintf(out, "Run 'kbexport list' to fetch the catalog.\n")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "Snapshot: %d articles\n", len(snap))
	if statusFlags.articles {
		fmt.Fprint(out, format.Snapshot(tm, snap))
	}

	report, err := st.LoadReport()
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(out, "No change report.\n")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprint(out, format.Changes(tm, report, snap))

	if statusFlags.diff {
		listing, err := st.LoadListing()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		fmt.Fprintln(out, listing)
	}
	return nil
}
