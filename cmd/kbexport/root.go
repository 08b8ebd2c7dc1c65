package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config    string
	profile   string
	outputDir string
	logLevel  string
	logFormat string
	format    string
}

var rootCmd = &cobra.Command{
	Use:   "kbexport",
	Short: "Export knowledge-base articles to PDF and track catalog changes",
	Long: `kbexport lists the published knowledge-base articles of an instance,
keeps the listing as a snapshot, reports what was added, updated or removed
since the previous run, and keeps a folder of rendered PDFs in step with the
catalog. The folder can be packaged as a zip archive and/or one merged PDF.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.config, "config", "c", "", "Path to the YAML profiles file")
	pf.StringVarP(&rootFlags.profile, "profile", "p", "", "Profile to apply on top of the default profile")
	pf.StringVarP(&rootFlags.outputDir, "output-dir", "o", "", "Output directory (overrides the profile)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides the profile)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json (overrides the profile)")
	pf.StringVar(&rootFlags.format, "format", "ascii", "Table format: ascii or markdown")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}
