// Package mirror propagates authoritative relational state into the document
// store as a denormalized read projection. Every operation here is
// best-effort: failures are logged and swallowed, never propagated to the
// caller, and never retried except by the next natural trigger.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bidmaster/bidmaster/app/observability/metrics"
	"github.com/bidmaster/bidmaster/internal/types"
)

// DocStore is the document-mirror collaborator contract: merge-style partial
// updates on a per-product document plus an append-only bid-history sub-list.
type DocStore interface {
	Merge(ctx context.Context, docID string, fields map[string]interface{}) error
	AppendBid(ctx context.Context, docID string, entry map[string]interface{}) error
}

// BidUpdate carries the denormalized fields a bid acceptance pushes into the
// mirror document.
type BidUpdate struct {
	Amount     float64
	BidderID   uuid.UUID
	BidderName string
	PlacedAt   time.Time
}

// Syncer owns all mirror writes for the auction lifecycle. An optional
// onWrite hook fires after every attempted product write; the auction-close
// scheduler registers its expiry recheck there.
type Syncer struct {
	store   DocStore
	logger  *slog.Logger
	onWrite func(ctx context.Context, productID uuid.UUID)
}

func NewSyncer(store DocStore, logger *slog.Logger) *Syncer {
	return &Syncer{store: store, logger: logger}
}

// SetOnWrite registers the change-trigger hook. Must be called before the
// router starts serving; not safe for concurrent mutation afterwards.
func (s *Syncer) SetOnWrite(hook func(ctx context.Context, productID uuid.UUID)) {
	s.onWrite = hook
}

func (s *Syncer) finish(ctx context.Context, productID uuid.UUID, op string, err error) {
	if err != nil {
		metrics.Get().MirrorWriteFailuresTotal.Add(ctx, 1)
		s.logger.WarnContext(ctx, "Mirror write failed, continuing",
			slog.String("op", op),
			slog.String("product_id", productID.String()),
			slog.Any("error", err),
		)
	}
	if s.onWrite != nil {
		s.onWrite(ctx, productID)
	}
}

// SeedProduct writes the initial projection for a newly created product.
func (s *Syncer) SeedProduct(ctx context.Context, p *types.Product) {
	fields := map[string]interface{}{
		"title":            p.Title,
		"description":      p.Description,
		"image_url":        p.ImageURL,
		"seller_id":        p.SellerID.String(),
		"starting_price":   p.StartingPrice,
		"current_price":    p.CurrentPrice,
		"status":           string(p.Status),
		"auction_end_time": p.AuctionEndTime,
		"total_bids":       0,
		"created_at":       p.CreatedAt,
		"updated_at":       time.Now().UTC(),
	}
	s.finish(ctx, p.ID, "seed_product", s.store.Merge(ctx, p.ID.String(), fields))
}

// ApplyBid merges the new price/bidder fields and appends one entry to the
// per-product bid history.
func (s *Syncer) ApplyBid(ctx context.Context, productID uuid.UUID, upd BidUpdate, totalBids int64) {
	docID := productID.String()

	err := s.store.Merge(ctx, docID, map[string]interface{}{
		"current_price":       upd.Amount,
		"highest_bidder_id":   upd.BidderID.String(),
		"highest_bidder_name": upd.BidderName,
		"last_bid_time":       upd.PlacedAt,
		"total_bids":          totalBids,
		"updated_at":          time.Now().UTC(),
	})
	if err == nil {
		err = s.store.AppendBid(ctx, docID, map[string]interface{}{
			"amount":      upd.Amount,
			"bidder_id":   upd.BidderID.String(),
			"bidder_name": upd.BidderName,
			"timestamp":   upd.PlacedAt,
		})
	}
	s.finish(ctx, productID, "apply_bid", err)
}

// SetStatus propagates a status transition.
func (s *Syncer) SetStatus(ctx context.Context, productID uuid.UUID, status types.ProductStatus) {
	err := s.store.Merge(ctx, productID.String(), map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
	s.finish(ctx, productID, "set_status", err)
}

// SetEndTime propagates a new auction end time.
func (s *Syncer) SetEndTime(ctx context.Context, productID uuid.UUID, endTime time.Time) {
	err := s.store.Merge(ctx, productID.String(), map[string]interface{}{
		"auction_end_time": endTime,
		"updated_at":       time.Now().UTC(),
	})
	s.finish(ctx, productID, "set_end_time", err)
}
