// Package commands implements the marcharvest CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dainst/marc-authority-harvester/config"
	"github.com/dainst/marc-authority-harvester/logger"
)

var (
	verbosity int
	jsonLogs  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "marcharvest",
	Short: "Harvest MARC authority data from various data providers",
	Long: `marcharvest harvests authority records (places, name headings, thesaurus
concepts) from the iDAI.gazetteer, the Library of Congress authority feeds and
iDAI.thesauri, normalizes them into MARC authority records and writes MARC
binary or MARCXML files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return err
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		logger.Errorw("Command failed", logger.FieldError, err)
		logger.Cleanup()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase log verbosity (-v: info, -vv: debug)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false,
		"emit logs as JSON instead of console output")

	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(versionCmd)
}
