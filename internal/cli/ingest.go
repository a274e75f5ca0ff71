package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/ingest"
	"stealthcompany.com/adtbridge/internal/orchestrator"
)

func (a *app) ingestCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingest batch: aggregate every encounter and deliver the messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := orchestrator.NewSignalHandler().Context(cmd.Context())
			defer stop()

			comps, err := buildComponents(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer comps.Close()

			var source ingest.EncounterSource
			if file != "" {
				source, err = fileSource(file)
				if err != nil {
					return err
				}
			} else {
				if a.cfg.EpicFHIRGroupID == "" {
					return errors.New("EPIC_FHIR_GROUP_ID is required without --file")
				}
				source = comps.exportSource(a.cfg)
			}

			if comps.delivery == nil {
				log.Warn().Msg("TNT_RECEIVE_ENDPOINT not set, aggregating without delivery")
			}

			report, err := comps.runner(source).Run(ctx)
			if report != nil {
				if encErr := writeJSON(cmd.OutOrStdout(), report); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return fmt.Errorf("ingest run failed: %w", err)
			}

			log.Info().Str("run_id", report.RunID).Interface("counts", report.Counts).Msg("FHIR encounter ingestion completed successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "read encounters from a JSON, Bundle or NDJSON file instead of a bulk export")
	return cmd
}

func fileSource(path string) (ingest.StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encounters file: %w", err)
	}

	raws, err := fhir.SplitResources(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse encounters file %s: %w", path, err)
	}
	return ingest.StaticSource(raws), nil
}
