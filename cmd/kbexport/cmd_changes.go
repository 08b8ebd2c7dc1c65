package main

import (
	"github.com/spf13/cobra"

	"kbexport/internal/reconcile"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Refetch the catalog and report what changed since the last run",
	Long: `Rotates the stored snapshot, stores the current listing and writes the
change report (added, updated, removed) plus a unified diff of the listings.
Without a stored snapshot nothing is fetched; run "kbexport list" first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		return runOperation(cmd, cfg, reconcile.ModeListChanges)
	},
}
