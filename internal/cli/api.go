package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/adtbridge/internal/api"
	"stealthcompany.com/adtbridge/internal/ingest"
	"stealthcompany.com/adtbridge/internal/metrics"
	"stealthcompany.com/adtbridge/internal/orchestrator"
)

const shutdownTimeout = 30 * time.Second

func (a *app) apiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the HTTP API, optionally ingesting on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := orchestrator.NewSignalHandler().Context(cmd.Context())
			defer stop()
			return a.serveAPI(ctx)
		},
	}
}

func (a *app) serveAPI(ctx context.Context) error {
	cfg := a.cfg
	log.Info().Msg("Starting adtbridge API service")

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	metrics.StartSystemMetrics(ctx, 15*time.Second)

	runner := comps.runner(comps.exportSource(cfg))
	deps := api.Deps{
		Aggregator:  comps.aggregator,
		Encounters:  comps.fhir,
		Locations:   comps.gateway,
		Status:      runner.Status,
		Store:       comps.store,
		Environment: cfg.TnTEnvironment,
	}
	if runner.Sink != nil {
		deps.Delivery = runner
	}

	if cfg.IngestSchedule != "" {
		scheduler, err := ingest.Schedule(ctx, cfg.IngestSchedule, runner)
		if err != nil {
			return err
		}
		defer func() {
			<-scheduler.Stop().Done()
		}()
		log.Info().Str("schedule", cfg.IngestSchedule).Msg("Scheduled ingest runs")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           api.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("Failed to start server")
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("API service shutdown complete")
	return nil
}
