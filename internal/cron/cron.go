package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewScheduler creates a started UTC scheduler whose job events are logged.
func NewScheduler(ctx context.Context) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithContext(ctx),
			gocron.WithEventListeners(
				gocron.BeforeJobRuns(func(jobID uuid.UUID, jobName string) {
					log.Debug().Str("job_name", jobName).Str("job_id", jobID.String()).Msg("job started")
				}),
				gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
					log.Error().Err(err).Str("job_name", jobName).Str("job_id", jobID.String()).Msg("error while running the job")
				}),
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().Str("job_name", jobName).Str("job_id", jobID.String()).Any("recover_data", recoverData).Msg("job panicked")
				}),
			),
		),
		gocron.WithLogger(logger{}),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cron scheduler: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}

type logger struct{}

func (logger) Debug(msg string, args ...any) {
	log.Debug().Msgf(msg, args...)
}
func (logger) Error(msg string, args ...any) {
	log.Error().Msgf(msg, args...)
}
func (logger) Info(msg string, args ...any) {
	log.Info().Msgf(msg, args...)
}
func (logger) Warn(msg string, args ...any) {
	log.Warn().Msgf(msg, args...)
}
