package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/adtbridge/internal/orchestrator"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the ingest and API services as child processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := orchestrator.NewSignalHandler().Context(cmd.Context())
			defer stop()

			log.Info().Msg("Starting adtbridge orchestrator")

			sm, err := orchestrator.NewServiceManager("")
			if err != nil {
				return err
			}

			if err := sm.StartTask(ctx, "ingest", "ingest"); err != nil {
				return err
			}
			if err := sm.Start(ctx, "api", "api"); err != nil {
				return err
			}

			err = sm.Wait(ctx)
			log.Info().Msg("Orchestrator shutdown complete")
			return err
		},
	}
}
