package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bidmaster/bidmaster/internal/api/notifications"
	"github.com/bidmaster/bidmaster/internal/types"
)

// MirrorSync is the slice of the mirror syncer moderation needs.
type MirrorSync interface {
	SetStatus(ctx context.Context, productID uuid.UUID, status types.ProductStatus)
	SetEndTime(ctx context.Context, productID uuid.UUID, endTime time.Time)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ListUsers(ctx context.Context, status string) ([]types.User, error)
	ApproveUser(ctx context.Context, id uuid.UUID) (*types.User, error)
	BlockUser(ctx context.Context, id uuid.UUID) (*types.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListPendingProducts(ctx context.Context) ([]ModerationItem, error)
	ApproveProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	RejectProduct(ctx context.Context, id uuid.UUID, reason string) (*types.Product, error)
	Dashboard(ctx context.Context) (*DashboardStats, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	repo       AdminRepo
	mirror     MirrorSync
	dispatcher notifications.Dispatcher
}

func NewServiceImpl(repo AdminRepo, mirrorSync MirrorSync, dispatcher notifications.Dispatcher, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		mirror:     mirrorSync,
		dispatcher: dispatcher,
	}
}

func (s *ServiceImpl) ListUsers(ctx context.Context, status string) ([]types.User, error) {
	var statusFilter *types.UserStatus
	switch status {
	case "":
	case string(types.UserPending), string(types.UserApproved), string(types.UserBlocked):
		st := types.UserStatus(status)
		statusFilter = &st
	default:
		return nil, fmt.Errorf("unknown status filter %q: %w", status, types.ErrValidation)
	}
	return s.repo.ListUsers(ctx, statusFilter)
}

func (s *ServiceImpl) ApproveUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	user, err := s.repo.SetUserStatus(ctx, id, types.UserApproved)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User approved", slog.String("userID", id.String()))
	return user, nil
}

func (s *ServiceImpl) BlockUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	user, err := s.repo.SetUserStatus(ctx, id, types.UserBlocked)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User blocked", slog.String("userID", id.String()))
	return user, nil
}

func (s *ServiceImpl) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "User deleted", slog.String("userID", id.String()))
	return nil
}

func (s *ServiceImpl) ListPendingProducts(ctx context.Context) ([]ModerationItem, error) {
	return s.repo.ListProductsForReview(ctx, types.ProductPending)
}

// ApproveProduct publishes a pending lot. The auction window restarts from
// the approval time; the seller is notified and the mirror is brought in line
// best-effort.
func (s *ServiceImpl) ApproveProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	product, err := s.repo.ApproveProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Product approved",
		slog.String("productID", id.String()),
		slog.Time("auctionEndTime", product.AuctionEndTime))

	s.dispatcher.Dispatch(ctx, product.SellerID, types.EventProductApproved,
		notifications.ProductRef{ID: product.ID, Title: product.Title}, notifications.Meta{})

	s.mirror.SetStatus(ctx, product.ID, types.ProductApproved)
	s.mirror.SetEndTime(ctx, product.ID, product.AuctionEndTime)
	return product, nil
}

func (s *ServiceImpl) RejectProduct(ctx context.Context, id uuid.UUID, reason string) (*types.Product, error) {
	product, err := s.repo.RejectProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Product rejected",
		slog.String("productID", id.String()),
		slog.String("reason", reason))

	s.dispatcher.Dispatch(ctx, product.SellerID, types.EventProductRejected,
		notifications.ProductRef{ID: product.ID, Title: product.Title},
		notifications.Meta{Reason: reason})

	s.mirror.SetStatus(ctx, product.ID, types.ProductRejected)
	return product, nil
}

func (s *ServiceImpl) Dashboard(ctx context.Context) (*DashboardStats, error) {
	return s.repo.Dashboard(ctx)
}
