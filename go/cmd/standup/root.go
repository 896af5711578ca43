package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mcdev12/standup/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type dependencies struct {
	configPath string
	config     config.Config
}

func newRootCmd() *cobra.Command {
	deps := &dependencies{}

	rootCmd := &cobra.Command{
		Use:           "standup",
		Short:         "Run a timed standup meeting",
		Long:          "Splits a meeting into equal speaking slots and rotates through the attendees automatically.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug().Err(err).Msg("could not load .env file")
			}

			cfg, err := config.Load(deps.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			deps.config = cfg
			setupLogging(cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&deps.configPath, "config", "c", "standup.yaml", "path to the YAML config file")

	rootCmd.AddCommand(newServeCmd(deps))
	rootCmd.AddCommand(newRunCmd(deps))
	rootCmd.AddCommand(newTailCmd(deps))

	return rootCmd
}

func setupLogging(cfg config.Config) {
	if cfg.Log.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())
}
