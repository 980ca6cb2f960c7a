package rides

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/pkg/db/models"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/pagination"
)

const sweepBatchSize = 200

// SweepExpiredRides deactivates every active ride whose arrival passed more
// than the sweep grace ago. Each ride closes in its own transaction so one
// failure leaves the others untouched; failures are returned together with
// the count of rides that did close. Rides already closed by a concurrent
// sweep are skipped. Batches advance by key, so rides that keep failing
// never hide the ones behind them.
func (s *service) SweepExpiredRides(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	cutoff := now.Add(-s.cfg.SweepGrace)

	var (
		swept int
		errs  error
		after *pagination.Cursor
	)
	for {
		batch, err := s.repo.ListExpired(ctx, cutoff, after, s.sweepBatch)
		if err != nil {
			return swept, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired rides"))
		}
		for i := range batch {
			ride := &batch[i]
			closed, err := s.sweepOne(ctx, ride, now)
			if err != nil {
				errs = multierr.Append(errs, err)
				if s.logg != nil {
					s.logg.Error(s.logg.WithRideID(ctx, ride.ID.String()), "sweep ride failed", err)
				}
				continue
			}
			if closed {
				swept++
			}
		}
		if len(batch) < s.sweepBatch {
			break
		}
		last := batch[len(batch)-1]
		after = &pagination.Cursor{At: last.ArrivalDate, ID: last.ID}
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
	}

	s.metrics.AddSwept(swept)
	if s.logg != nil && swept > 0 {
		s.logg.Info(s.logg.WithField(ctx, "swept", swept), "expired rides swept")
	}
	return swept, errs
}

func (s *service) sweepOne(ctx context.Context, ride *models.Ride, now time.Time) (bool, error) {
	var closed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Deactivate(ctx, ride.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate ride "+ride.ID.String())
		}
		if !ok {
			return nil
		}
		closed = true
		ride.IsActive = false
		ride.EndedAt = &now
		return s.emitEnded(ctx, tx, ride, nil, true)
	})
	return closed, err
}
