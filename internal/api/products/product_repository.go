package products

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
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ ProductRepo = (*PostgresProductRepo)(nil)

type CreateProductParams struct {
	SellerID       uuid.UUID
	Title          string
	Description    *string
	ImageURL       *string
	CategoryID     *uuid.UUID
	StartingPrice  float64
	AuctionEndTime time.Time
}

// ListFilter narrows the public product listing.
type ListFilter struct {
	CategoryID *uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

// BidOutcome is what a successful conditional bid write reports back to the
// service layer.
type BidOutcome struct {
	PreviousBidderID *uuid.UUID
	TotalBids        int64
	PlacedAt         time.Time
}

type ProductRepo interface {
	Create(ctx context.Context, params CreateProductParams) (*types.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Product, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*types.ProductDetail, error)
	ListApproved(ctx context.Context, filter ListFilter) ([]types.ProductDetail, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, status *types.ProductStatus) ([]types.Product, error)
	PlaceBid(ctx context.Context, productID, bidderID uuid.UUID, amount float64) (*BidOutcome, error)
	ListCategories(ctx context.Context) ([]types.Category, error)
	UserName(ctx context.Context, id uuid.UUID) (string, error)
}

type PostgresProductRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresProductRepo(db DB, logger *slog.Logger) *PostgresProductRepo {
	return &PostgresProductRepo{logger: logger, db: db}
}

const productColumns = `id, seller_id, title, description, image_url, category_id,
       starting_price, current_price, highest_bidder_id, status, auction_end_time,
       created_at, updated_at`

func scanProduct(row pgx.Row) (*types.Product, error) {
	var p types.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.ImageURL,
		&p.CategoryID, &p.StartingPrice, &p.CurrentPrice, &p.HighestBidderID,
		&p.Status, &p.AuctionEndTime, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a pending lot with current_price = starting_price.
func (r *PostgresProductRepo) Create(ctx context.Context, params CreateProductParams) (*types.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx,
		`INSERT INTO products (seller_id, title, description, image_url, category_id,
                               starting_price, current_price, status, auction_end_time)
         VALUES ($1, $2, $3, $4, $5, $6, $6, 'pending', $7)
         RETURNING `+productColumns,
		params.SellerID, params.Title, params.Description, params.ImageURL,
		params.CategoryID, params.StartingPrice, params.AuctionEndTime))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (r *PostgresProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

const detailQuery = `
    SELECT p.id, p.seller_id, p.title, p.description, p.image_url, p.category_id,
           p.starting_price, p.current_price, p.highest_bidder_id, p.status,
           p.auction_end_time, p.created_at, p.updated_at,
           s.name AS seller_name, c.name AS category_name, b.name AS highest_bidder_name
    FROM products p
    JOIN users s ON s.id = p.seller_id
    LEFT JOIN categories c ON c.id = p.category_id
    LEFT JOIN users b ON b.id = p.highest_bidder_id`

func scanDetail(row pgx.Row) (*types.ProductDetail, error) {
	var d types.ProductDetail
	err := row.Scan(&d.ID, &d.SellerID, &d.Title, &d.Description, &d.ImageURL,
		&d.CategoryID, &d.StartingPrice, &d.CurrentPrice, &d.HighestBidderID,
		&d.Status, &d.AuctionEndTime, &d.CreatedAt, &d.UpdatedAt,
		&d.SellerName, &d.CategoryName, &d.HighestBidderName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	deriveAuctionState(&d)
	return &d, nil
}

// deriveAuctionState fills the computed fields on a detail row. Hours left is
// only present while the approved auction is still running.
func deriveAuctionState(d *types.ProductDetail) {
	now := time.Now()
	if d.Status == types.ProductApproved && d.AuctionEndTime.After(now) {
		d.AuctionLive = true
		hours := d.AuctionEndTime.Sub(now).Hours()
		d.HoursLeft = &hours
	}
}

func (r *PostgresProductRepo) GetDetail(ctx context.Context, id uuid.UUID) (*types.ProductDetail, error) {
	d, err := scanDetail(r.db.QueryRow(ctx, detailQuery+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get product detail: %w", err)
	}
	return d, nil
}

// ListApproved returns the public marketplace page: approved lots only,
// optionally filtered by category and a title substring search.
func (r *PostgresProductRepo) ListApproved(ctx context.Context, filter ListFilter) ([]types.ProductDetail, error) {
	query := detailQuery + ` WHERE p.status = 'approved'`
	args := []any{}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		query += fmt.Sprintf(" AND p.category_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND p.title ILIKE $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := []types.ProductDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return items, nil
}

func (r *PostgresProductRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, status *types.ProductStatus) ([]types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE seller_id = $1`
	args := []any{sellerID}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list seller products: %w", err)
	}
	defer rows.Close()

	items := []types.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return items, nil
}

// PlaceBid performs the conditional acceptance write. The WHERE clause is the
// concurrency guard: of two concurrent bids at the same amount exactly one
// matches current_price < amount, the other falls through with zero rows and
// surfaces as ErrConflict. The price update and the bid row commit as one
// transaction so an accepted bid is never missing from the append-only log.
func (r *PostgresProductRepo) PlaceBid(ctx context.Context, productID, bidderID uuid.UUID, amount float64) (*BidOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin bid transaction: %w", err)
	}

	outcome, err := placeBidTx(ctx, tx, productID, bidderID, amount)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.WarnContext(ctx, "Failed to roll back bid transaction", slog.Any("error", rbErr))
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bid transaction: %w", err)
	}
	return outcome, nil
}

func placeBidTx(ctx context.Context, tx pgx.Tx, productID, bidderID uuid.UUID, amount float64) (*BidOutcome, error) {
	// The RETURNING subselect runs on the command snapshot, so it yields the
	// pre-update highest bidder (the user to notify as outbid).
	var previous *uuid.UUID
	err := tx.QueryRow(ctx,
		`UPDATE products
         SET current_price = $3, highest_bidder_id = $2, updated_at = now()
         WHERE id = $1
           AND status = 'approved'
           AND auction_end_time > now()
           AND current_price < $3
         RETURNING (SELECT highest_bidder_id FROM products WHERE id = $1)`,
		productID, bidderID, amount).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bid no longer beats the current price or auction closed: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("accept bid: %w", err)
	}

	var placedAt time.Time
	err = tx.QueryRow(ctx,
		`INSERT INTO bids (product_id, bidder_id, amount) VALUES ($1, $2, $3)
         RETURNING created_at`,
		productID, bidderID, amount).Scan(&placedAt)
	if err != nil {
		return nil, fmt.Errorf("record bid: %w", err)
	}

	var total int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM bids WHERE product_id = $1`, productID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count bids: %w", err)
	}

	return &BidOutcome{PreviousBidderID: previous, TotalBids: total, PlacedAt: placedAt}, nil
}

func (r *PostgresProductRepo) ListCategories(ctx context.Context) ([]types.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := []types.Category{}
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return items, nil
}

func (r *PostgresProductRepo) UserName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.ErrNotFound
		}
		return "", fmt.Errorf("get user name: %w", err)
	}
	return name, nil
}
