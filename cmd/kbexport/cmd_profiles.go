package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kbexport/internal/config"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profiles defined in the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if rootFlags.config == "" {
			return fmt.Errorf("%w: --config is required", config.ErrInvalid)
		}
		names, err := config.Profiles(rootFlags.config)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	},
}
