// Package sweep runs the periodic expiry pass over pending bookings.
// Expiry is a data attribute, not a timer: the sweeper scans for bookings
// whose window closed and feeds them through the same workflow operation
// an admin would call.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

const defaultInterval = time.Minute

// Store lists the bookings the sweep has to time out.
type Store interface {
	ExpiredPendingJobIDs(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Expirer applies the timeout. The coordinator implements it.
type Expirer interface {
	MarkExpired(ctx context.Context, jobID string) (*domain.Job, error)
}

// Sweeper periodically times out pending bookings past their expiry window.
type Sweeper struct {
	store    Store
	expirer  Expirer
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New builds a Sweeper. interval <= 0 falls back to one minute; now may be
// nil, in which case time.Now is used.
func New(store Store, expirer Expirer, logger *slog.Logger, interval time.Duration, now func() time.Time) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:    store,
		expirer:  expirer,
		logger:   logger,
		interval: interval,
		now:      now,
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Expiry sweep started",
		slog.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweep stopped - context canceled")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single expiry pass and returns how many bookings were
// timed out. A booking that fails to expire is logged and retried on the
// next pass; one bad row never stalls the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	ids, err := s.store.ExpiredPendingJobIDs(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to list expired bookings",
			slog.Any("error", err),
		)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	expired := 0
	for _, id := range ids {
		if _, err := s.expirer.MarkExpired(ctx, id); err != nil {
			// A concurrent accept may have flipped the booking since the
			// listing; that is a win, not a failure worth retrying.
			if domain.IsStateError(err) || domain.IsConflict(err) {
				s.logger.Debug("Booking no longer pending, skipping expiry",
					slog.String("job_id", id),
				)
				continue
			}
			s.logger.Error("Failed to expire booking",
				slog.String("job_id", id),
				slog.Any("error", err),
			)
			continue
		}
		expired++
	}

	s.logger.Info("Expiry sweep pass complete",
		slog.Int("candidates", len(ids)),
		slog.Int("expired", expired),
	)
	return expired
}
