// Package cli wires the bridge components into the adtbridge commands.
package cli

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/adtbridge/internal/config"
	"stealthcompany.com/adtbridge/internal/metrics"
	"stealthcompany.com/adtbridge/pkg/zerolog_config"
)

type app struct {
	cfg *config.Config
}

// NewRootCommand builds the adtbridge command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "adtbridge",
		Short:         "Turns FHIR encounters into ADT messages for the tracking system",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Name())
		},
	}

	root.AddCommand(
		a.apiCommand(),
		a.ingestCommand(),
		a.aggregateCommand(),
		a.runCommand(),
	)
	return root
}

func (a *app) setup(name string) error {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	zerolog_config.SetAppPrefix("adtbridge-" + name)
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		return err
	}

	metrics.Configure(cfg.EnableBusinessMetrics, cfg.EnableSystemMetrics)
	return nil
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
