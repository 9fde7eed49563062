package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/internal/domain/store"
)

const sweepBatchSize = 100

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Expired int
	NoShow  int
}

// ExpirySweeper periodically expires unpaid bookings and closes confirmed bookings
// whose window ended without a check-in.
type ExpirySweeper struct {
	bookings       *BookingService
	repos          store.Repositories
	paymentTimeout time.Duration
	interval       time.Duration
	logger         *zap.Logger
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(bookings *BookingService, repos store.Repositories, paymentTimeout, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		bookings:       bookings,
		repos:          repos,
		paymentTimeout: paymentTimeout,
		interval:       interval,
		logger:         logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweeper stopped")
			return
		case t := <-ticker.C:
			res, err := w.Sweep(ctx, t.UTC())
			if err != nil {
				w.logger.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if res.Expired > 0 || res.NoShow > 0 {
				w.logger.Info("expiry sweep finished",
					zap.Int("expired", res.Expired),
					zap.Int("no_show", res.NoShow),
				)
			}
		}
	}
}

// Sweep handles every overdue booking as of now. Each booking is changed in its own
// transaction; a failure on one is logged and the sweep moves on to the next batch
// without refetching it.
func (w *ExpirySweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	if w.paymentTimeout > 0 {
		cutoff := now.Add(-w.paymentTimeout)
		n, err := w.drain(ctx, "expire unpaid booking",
			func(skip []uuid.UUID) ([]uuid.UUID, error) {
				return w.repos.Bookings.FindPendingPaymentBefore(ctx, cutoff, skip, sweepBatchSize)
			},
			func(id uuid.UUID) (bool, error) { return w.bookings.ExpireUnpaid(ctx, id, cutoff, now) },
		)
		res.Expired = n
		if err != nil {
			return res, err
		}
	}

	n, err := w.drain(ctx, "mark booking as no-show",
		func(skip []uuid.UUID) ([]uuid.UUID, error) {
			return w.repos.Bookings.FindUnclaimedEndedBefore(ctx, now, skip, sweepBatchSize)
		},
		func(id uuid.UUID) (bool, error) { return w.bookings.MarkNoShow(ctx, id, now) },
	)
	res.NoShow = n
	return res, err
}

// drain applies fn to batches from find until a batch comes back empty. Every id already
// tried in this pass is skipped by later batches.
func (w *ExpirySweeper) drain(
	ctx context.Context,
	action string,
	find func(skip []uuid.UUID) ([]uuid.UUID, error),
	fn func(id uuid.UUID) (bool, error),
) (int, error) {
	var (
		tried   []uuid.UUID
		changed int
	)
	for {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ids, err := find(tried)
		if err != nil {
			return changed, err
		}
		if len(ids) == 0 {
			return changed, nil
		}
		for _, id := range ids {
			tried = append(tried, id)
			ok, err := fn(id)
			if err != nil {
				w.logger.Error("failed to "+action, zap.String("booking_id", id.String()), zap.Error(err))
				continue
			}
			if ok {
				changed++
			}
		}
	}
}
