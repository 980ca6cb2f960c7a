package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/comparteride/circles-backend/pkg/logger"
)

type fakeSweeper struct {
	at    time.Time
	swept int
	err   error
}

func (f *fakeSweeper) SweepExpiredRides(ctx context.Context, now time.Time) (int, error) {
	f.at = now
	return f.swept, f.err
}

func TestRideSweepJobPassesClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{swept: 3}
	job, err := NewRideSweepJob(RideSweepJobParams{Logger: logger.New(logger.Options{ServiceName: "test"}), Sweeper: sweeper})
	require.NoError(t, err)
	job.(*rideSweepJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.True(t, sweeper.at.Equal(now))
	require.Equal(t, "ride-sweep", job.Name())
}

func TestRideSweepJobReportsPartialFailures(t *testing.T) {
	first, second := errors.New("ride a"), errors.New("ride b")
	sweeper := &fakeSweeper{swept: 1, err: multierr.Combine(first, second)}
	job, err := NewRideSweepJob(RideSweepJobParams{Logger: logger.New(logger.Options{ServiceName: "test"}), Sweeper: sweeper})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
}

func TestRideSweepJobRequiresSweeper(t *testing.T) {
	_, err := NewRideSweepJob(RideSweepJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	require.Error(t, err)
}
