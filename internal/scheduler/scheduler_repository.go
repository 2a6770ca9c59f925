package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bidmaster/bidmaster/internal/types"
)

// DB is the slice of pgxpool.Pool the repository needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ClosedAuction is what the conditional close write reports for settlement
// and notification.
type ClosedAuction struct {
	ProductID       uuid.UUID
	Title           string
	SellerID        uuid.UUID
	FinalPrice      float64
	HighestBidderID *uuid.UUID
}

var _ StoreRepo = (*PostgresStoreRepo)(nil)

// StoreRepo is the relational slice the closer needs. The relational store is
// authoritative: expiry scans and the close transition never consult the
// mirror.
type StoreRepo interface {
	ExpiredApprovedIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	CloseAuction(ctx context.Context, productID uuid.UUID) (*ClosedAuction, error)
	CreateOrder(ctx context.Context, productID, buyerID uuid.UUID, amount float64) error
	AuctionState(ctx context.Context, productID uuid.UUID) (types.ProductStatus, time.Time, error)
}

type PostgresStoreRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresStoreRepo(db DB, logger *slog.Logger) *PostgresStoreRepo {
	return &PostgresStoreRepo{logger: logger, db: db}
}

func (r *PostgresStoreRepo) ExpiredApprovedIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM products
         WHERE status = 'approved' AND auction_end_time <= now()
         ORDER BY auction_end_time ASC
         LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("scan expired auctions: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired auction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired auction ids: %w", err)
	}
	return ids, nil
}

// CloseAuction runs the single conditional transition to sold. The WHERE
// clause carries the whole concurrency story: of any number of concurrent
// closers exactly one matches, the rest see zero rows and get (nil, nil).
func (r *PostgresStoreRepo) CloseAuction(ctx context.Context, productID uuid.UUID) (*ClosedAuction, error) {
	var closed ClosedAuction
	err := r.db.QueryRow(ctx,
		`UPDATE products SET status = 'sold', updated_at = now()
         WHERE id = $1 AND status = 'approved' AND auction_end_time <= now()
         RETURNING id, title, seller_id, current_price, highest_bidder_id`,
		productID).
		Scan(&closed.ProductID, &closed.Title, &closed.SellerID,
			&closed.FinalPrice, &closed.HighestBidderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("close auction: %w", err)
	}
	return &closed, nil
}

// CreateOrder writes the settlement row. orders.product_id is unique, so a
// duplicate write from a re-delivered close is a silent no-op.
func (r *PostgresStoreRepo) CreateOrder(ctx context.Context, productID, buyerID uuid.UUID, amount float64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders (product_id, buyer_id, amount)
         VALUES ($1, $2, $3)
         ON CONFLICT (product_id) DO NOTHING`,
		productID, buyerID, amount)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *PostgresStoreRepo) AuctionState(ctx context.Context, productID uuid.UUID) (types.ProductStatus, time.Time, error) {
	var (
		status  types.ProductStatus
		endTime time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT status, auction_end_time FROM products WHERE id = $1`,
		productID).Scan(&status, &endTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, types.ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("get auction state: %w", err)
	}
	return status, endTime, nil
}
