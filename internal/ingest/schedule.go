package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Schedule starts running the runner on a cron spec. Overlapping runs
// are skipped. Stop the returned cron to end the schedule.
func Schedule(ctx context.Context, spec string, runner *Runner) (*cron.Cron, error) {
	logger := cronLogger{logger: log.With().Str("component", "ingest-cron").Logger()}

	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(spec, func() {
		report, err := runner.Run(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			log.Info().Msg("Ingest run already in progress elsewhere, skipping")
		case err != nil:
			log.Error().Err(err).Msg("Scheduled ingest run failed")
		default:
			log.Info().Str("run_id", report.RunID).Interface("counts", report.Counts).Msg("Scheduled ingest run finished")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid ingest schedule %q: %w", spec, err)
	}

	c.Start()
	return c, nil
}
