// Package commands wires the jobd CLI: configuration loading, logging
// setup, and the run / jobs / kinds subcommands.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/jobkit/pkg/config"
	// Register the built-in job kinds so manifests can name them.
	_ "github.com/vulntor/jobkit/pkg/work"
)

const cliExecutable = "jobd"

// cfgManager holds the loaded configuration for the lifetime of the
// process. Populated in PersistentPreRunE, before any RunE fires.
var cfgManager *config.Manager

// NewCommand constructs the top-level jobd CLI command, wiring global
// flags, configuration loading, and logging setup.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		verbosityCount int
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "jobd runs background jobs under a bounded concurrency budget",
		Long: `jobd is a job control daemon: it admits jobs from a YAML manifest,
runs them concurrently up to a configurable limit, and records every
job's lifecycle in a durable workspace store. Running jobs can be
cancelled, paused, and resumed cooperatively.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgManager = config.NewManager()
			if err := cfgManager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := cfgManager.Get()

			if strings.EqualFold(cfg.Log.Format, "text") {
				log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			}

			// Explicit --verbose wins, then the -v count, then the
			// configured level.
			switch {
			case verbose || verbosityCount > 1:
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			case verbosityCount == 1:
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			default:
				level, err := zerolog.ParseLevel(cfg.Log.Level)
				if err != nil {
					return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
				}
				zerolog.SetGlobalLevel(level)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newJobsCommand())
	cmd.AddCommand(newKindsCommand())

	return cmd
}
