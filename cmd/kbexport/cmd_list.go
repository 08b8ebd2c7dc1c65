package main

import (
	"github.com/spf13/cobra"

	"kbexport/internal/reconcile"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Refetch the catalog and replace the stored snapshot",
	Long: `Clears the previous snapshot and change report, then stores the current
catalog listing as the snapshot. Rendered files are left alone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		return runOperation(cmd, cfg, reconcile.ModeList)
	},
}
