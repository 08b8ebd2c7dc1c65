package main

import (
	"github.com/spf13/cobra"

	"kbexport/internal/reconcile"
)

var filesFlags operationFlags

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Refetch the catalog and render every article",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, &filesFlags)
		if err != nil {
			return err
		}
		return runOperation(cmd, cfg, reconcile.ModeListFiles)
	},
}

func init() {
	filesCmd.Flags().StringVar(&filesFlags.pkg, "package", "", "Packaging after rendering: none, zip, merge or both")
}
