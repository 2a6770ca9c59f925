// Package scheduler owns the auction-close lifecycle: a periodic sweep over
// the relational store plus a change-triggered recheck hooked into mirror
// writes. Both paths funnel into one CloseExpired, whose conditional UPDATE
// makes closing idempotent under any interleaving.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bidmaster/bidmaster/app/observability/metrics"
	"github.com/bidmaster/bidmaster/config"
	"github.com/bidmaster/bidmaster/internal/api/notifications"
	"github.com/bidmaster/bidmaster/internal/types"
)

const (
	sweepBatchSize   = 100
	sweepConcurrency = 4
)

// MirrorSync is the slice of the mirror syncer the closer needs.
type MirrorSync interface {
	SetStatus(ctx context.Context, productID uuid.UUID, status types.ProductStatus)
}

// Closer drives expired approved auctions to sold.
type Closer struct {
	logger        *slog.Logger
	repo          StoreRepo
	mirror        MirrorSync
	dispatcher    notifications.Dispatcher
	sweepInterval time.Duration
	recencyWindow time.Duration
}

func NewCloser(repo StoreRepo, mirrorSync MirrorSync, dispatcher notifications.Dispatcher, cfg config.SchedulerConfig, logger *slog.Logger) *Closer {
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	recencyWindow := cfg.RecencyWindow
	if recencyWindow <= 0 {
		recencyWindow = time.Minute
	}
	return &Closer{
		logger:        logger,
		repo:          repo,
		mirror:        mirrorSync,
		dispatcher:    dispatcher,
		sweepInterval: sweepInterval,
		recencyWindow: recencyWindow,
	}
}

// Run sweeps on the configured interval until the context is cancelled. One
// sweep runs immediately on start so restarts don't leave expired auctions
// hanging for a full interval.
func (c *Closer) Run(ctx context.Context) {
	c.logger.InfoContext(ctx, "Auction closer started",
		slog.Duration("sweepInterval", c.sweepInterval))

	c.Sweep(ctx)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Auction closer stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep scans the relational store for expired approved auctions and closes
// each with bounded concurrency. Per-auction failures are logged and do not
// abort the sweep.
func (c *Closer) Sweep(ctx context.Context) {
	start := time.Now()
	l := c.logger.With(slog.String("method", "Sweep"))

	ids, err := c.repo.ExpiredApprovedIDs(ctx, sweepBatchSize)
	if err != nil {
		l.ErrorContext(ctx, "Expiry scan failed", slog.Any("error", err))
		return
	}
	if len(ids) > 0 {
		l.InfoContext(ctx, "Closing expired auctions", slog.Int("count", len(ids)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := c.CloseExpired(gctx, id); err != nil {
				l.ErrorContext(gctx, "Failed to close auction",
					slog.String("productID", id.String()),
					slog.Any("error", err))
			}
			return nil
		})
	}
	g.Wait()

	metrics.Get().SweepDurationSeconds.Record(ctx, time.Since(start).Seconds())
}

// CloseExpired is the single close path for both the sweep and the recheck.
// A product that is not an expired approved auction (already sold, rejected,
// still running) is a silent no-op.
func (c *Closer) CloseExpired(ctx context.Context, productID uuid.UUID) error {
	l := c.logger.With(slog.String("productID", productID.String()))

	closed, err := c.repo.CloseAuction(ctx, productID)
	if err != nil {
		return err
	}
	if closed == nil {
		return nil
	}

	metrics.Get().AuctionsClosedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Auction closed",
		slog.String("title", closed.Title),
		slog.Float64("finalPrice", closed.FinalPrice))

	c.mirror.SetStatus(ctx, productID, types.ProductSold)

	if closed.HighestBidderID == nil {
		return nil
	}
	winnerID := *closed.HighestBidderID

	if err := c.repo.CreateOrder(ctx, productID, winnerID, closed.FinalPrice); err != nil {
		l.ErrorContext(ctx, "Failed to write settlement order", slog.Any("error", err))
	}

	c.dispatcher.Dispatch(ctx, winnerID, types.EventAuctionWon,
		notifications.ProductRef{ID: closed.ProductID, Title: closed.Title},
		notifications.Meta{Amount: &closed.FinalPrice})
	return nil
}

// Recheck is the change-triggered path, registered as the mirror syncer's
// onWrite hook. It only acts when the auction's end time passed within the
// recency window; older expiries are the sweep's job, so a burst of writes
// on a long-dead product does nothing.
func (c *Closer) Recheck(ctx context.Context, productID uuid.UUID) {
	l := c.logger.With(slog.String("method", "Recheck"), slog.String("productID", productID.String()))

	status, endTime, err := c.repo.AuctionState(ctx, productID)
	if err != nil {
		l.WarnContext(ctx, "Failed to load auction state", slog.Any("error", err))
		return
	}
	if status != types.ProductApproved {
		return
	}
	sinceExpiry := time.Since(endTime)
	if sinceExpiry < 0 || sinceExpiry > c.recencyWindow {
		return
	}

	if err := c.CloseExpired(ctx, productID); err != nil {
		l.ErrorContext(ctx, "Recheck close failed", slog.Any("error", err))
	}
}
