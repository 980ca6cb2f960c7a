package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/comparteride/circles-backend/pkg/logger"
)

type rideSweeper interface {
	SweepExpiredRides(ctx context.Context, now time.Time) (int, error)
}

type RideSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper rideSweeper
}

// NewRideSweepJob closes rides whose arrival time has passed.
func NewRideSweepJob(params RideSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("ride sweeper required")
	}
	return &rideSweepJob{logg: params.Logger, sweeper: params.Sweeper, now: time.Now}, nil
}

type rideSweepJob struct {
	logg    *logger.Logger
	sweeper rideSweeper
	now     func() time.Time
}

func (j *rideSweepJob) Name() string { return "ride-sweep" }

// Run reports partial failures as an error even when some rides closed.
func (j *rideSweepJob) Run(ctx context.Context) error {
	swept, err := j.sweeper.SweepExpiredRides(ctx, j.now().UTC())
	j.logg.Info(j.logg.WithField(ctx, "rides_swept", swept), "ride sweep finished")
	if err != nil {
		return fmt.Errorf("ride sweep: %w", err)
	}
	return nil
}
