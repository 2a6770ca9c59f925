package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bidmaster/bidmaster/app/observability/metrics"
	"github.com/bidmaster/bidmaster/internal/api/notifications"
	"github.com/bidmaster/bidmaster/internal/mirror"
	"github.com/bidmaster/bidmaster/internal/types"
)

const defaultAuctionDays = 7

// MirrorSync is the slice of the mirror syncer the product flows use.
// Implementations are best-effort and never return errors.
type MirrorSync interface {
	SeedProduct(ctx context.Context, p *types.Product)
	ApplyBid(ctx context.Context, productID uuid.UUID, upd mirror.BidUpdate, totalBids int64)
}

type CreateProductRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	CategoryID    string  `json:"category_id,omitempty"`
	StartingPrice float64 `json:"starting_price"`
	DurationDays  int     `json:"duration_days,omitempty"`
}

type PlaceBidRequest struct {
	Amount float64 `json:"amount"`
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Create(ctx context.Context, sellerID uuid.UUID, req CreateProductRequest) (*types.Product, error)
	List(ctx context.Context, filter ListFilter) ([]types.ProductDetail, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*types.ProductDetail, error)
	ListMine(ctx context.Context, sellerID uuid.UUID, status string) ([]types.Product, error)
	PlaceBid(ctx context.Context, productID, bidderID uuid.UUID, amount float64) (*types.Product, error)
	ListCategories(ctx context.Context) ([]types.Category, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	repo       ProductRepo
	mirror     MirrorSync
	dispatcher notifications.Dispatcher
}

func NewServiceImpl(repo ProductRepo, mirrorSync MirrorSync, dispatcher notifications.Dispatcher, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		mirror:     mirrorSync,
		dispatcher: dispatcher,
	}
}

// Create submits a new lot for moderation. The auction window is provisional:
// approval resets it so sellers don't lose time waiting in the queue.
func (s *ServiceImpl) Create(ctx context.Context, sellerID uuid.UUID, req CreateProductRequest) (*types.Product, error) {
	l := s.logger.With(slog.String("method", "Create"))

	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", types.ErrValidation)
	}
	if req.StartingPrice <= 0 {
		return nil, fmt.Errorf("starting price must be positive: %w", types.ErrValidation)
	}
	days := req.DurationDays
	if days <= 0 {
		days = defaultAuctionDays
	}
	if days > 30 {
		return nil, fmt.Errorf("auction duration cannot exceed 30 days: %w", types.ErrValidation)
	}

	params := CreateProductParams{
		SellerID:       sellerID,
		Title:          req.Title,
		StartingPrice:  req.StartingPrice,
		AuctionEndTime: time.Now().Add(time.Duration(days) * 24 * time.Hour),
	}
	if req.Description != "" {
		params.Description = &req.Description
	}
	if req.ImageURL != "" {
		params.ImageURL = &req.ImageURL
	}
	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("invalid category ID: %w", types.ErrValidation)
		}
		params.CategoryID = &categoryID
	}

	product, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "Product submitted for moderation",
		slog.String("productID", product.ID.String()),
		slog.String("sellerID", sellerID.String()))

	s.mirror.SeedProduct(ctx, product)
	return product, nil
}

func (s *ServiceImpl) List(ctx context.Context, filter ListFilter) ([]types.ProductDetail, error) {
	return s.repo.ListApproved(ctx, filter)
}

func (s *ServiceImpl) GetDetail(ctx context.Context, id uuid.UUID) (*types.ProductDetail, error) {
	return s.repo.GetDetail(ctx, id)
}

func (s *ServiceImpl) ListMine(ctx context.Context, sellerID uuid.UUID, status string) ([]types.Product, error) {
	var statusFilter *types.ProductStatus
	switch status {
	case "":
	case string(types.ProductPending), string(types.ProductApproved),
		string(types.ProductRejected), string(types.ProductSold):
		st := types.ProductStatus(status)
		statusFilter = &st
	default:
		return nil, fmt.Errorf("unknown status filter %q: %w", status, types.ErrValidation)
	}
	return s.repo.ListBySeller(ctx, sellerID, statusFilter)
}

// PlaceBid validates the bid against the live auction and runs the
// conditional acceptance write. Everything after the relational write —
// notifications, mirror projection — is best-effort.
func (s *ServiceImpl) PlaceBid(ctx context.Context, productID, bidderID uuid.UUID, amount float64) (*types.Product, error) {
	l := s.logger.With(
		slog.String("method", "PlaceBid"),
		slog.String("productID", productID.String()),
		slog.String("bidderID", bidderID.String()),
	)

	if amount <= 0 {
		return nil, fmt.Errorf("bid amount must be positive: %w", types.ErrValidation)
	}

	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID == bidderID {
		return nil, fmt.Errorf("sellers cannot bid on their own auction: %w", types.ErrValidation)
	}
	if product.Status != types.ProductApproved {
		return nil, fmt.Errorf("auction is not open for bidding: %w", types.ErrConflict)
	}
	if !product.AuctionEndTime.After(time.Now()) {
		return nil, fmt.Errorf("auction has ended: %w", types.ErrConflict)
	}
	if amount <= product.CurrentPrice {
		return nil, fmt.Errorf("bid must exceed the current price of %.2f: %w", product.CurrentPrice, types.ErrValidation)
	}

	outcome, err := s.repo.PlaceBid(ctx, productID, bidderID, amount)
	if err != nil {
		return nil, err
	}
	metrics.Get().BidsPlacedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Bid accepted", slog.Float64("amount", amount))

	product.CurrentPrice = amount
	product.HighestBidderID = &bidderID

	ref := notifications.ProductRef{ID: product.ID, Title: product.Title}
	meta := notifications.Meta{Amount: &amount}
	if prev := outcome.PreviousBidderID; prev != nil && *prev != bidderID {
		s.dispatcher.Dispatch(ctx, *prev, types.EventOutbid, ref, meta)
	}
	s.dispatcher.Dispatch(ctx, product.SellerID, types.EventNewBid, ref, meta)

	bidderName, err := s.repo.UserName(ctx, bidderID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Failed to resolve bidder name for mirror", slog.Any("error", err))
		}
		bidderName = ""
	}
	s.mirror.ApplyBid(ctx, productID, mirror.BidUpdate{
		Amount:     amount,
		BidderID:   bidderID,
		BidderName: bidderName,
		PlacedAt:   outcome.PlacedAt,
	}, outcome.TotalBids)

	return product, nil
}

func (s *ServiceImpl) ListCategories(ctx context.Context) ([]types.Category, error) {
	return s.repo.ListCategories(ctx)
}
