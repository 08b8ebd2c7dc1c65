package main

import (
	"github.com/spf13/cobra"

	"kbexport/internal/reconcile"
)

var runFlags operationFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operation selected by the profile or --mode",
	Long: `Runs one operation against the output directory:

  list                refetch the catalog and replace the snapshot
  list_changes        refetch, rotate the snapshot and report changes
  list_files          refetch and render every article
  list_changes_files  report changes and re-render changed articles

With --newer-only, list_changes_files never deletes local files.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.mode, "mode", "m", "", "Operation (overrides the profile)")
	f.BoolVar(&runFlags.newerOnly, "newer-only", false, "list_changes_files: render added and updated articles, delete nothing")
	f.StringVar(&runFlags.pkg, "package", "", "Packaging after rendering: none, zip, merge or both")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &runFlags)
	if err != nil {
		return err
	}
	mode, err := reconcile.ParseMode(cfg.Mode)
	if err != nil {
		return usageError(err)
	}
	return runOperation(cmd, cfg, mode)
}
