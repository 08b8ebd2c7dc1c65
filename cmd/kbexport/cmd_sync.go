package main

import (
	"github.com/spf13/cobra"

	"kbexport/internal/reconcile"
)

var syncFlags operationFlags

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Report changes and bring the files folder in line with the catalog",
	Long: `Computes the change report, deletes the files of updated and removed
articles and renders added and updated ones. With --newer-only nothing is
deleted, for consumers that drain the files folder between runs.

The first run (no stored snapshot) renders the whole catalog.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, &syncFlags)
		if err != nil {
			return err
		}
		return runOperation(cmd, cfg, reconcile.ModeListChangesFiles)
	},
}

func init() {
	f := syncCmd.Flags()
	f.BoolVar(&syncFlags.newerOnly, "newer-only", false, "Render added and updated articles, delete nothing")
	f.StringVar(&syncFlags.pkg, "package", "", "Packaging after rendering: none, zip, merge or both")
}
