package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

// DashboardStats is the moderation console landing page payload.
type DashboardStats struct {
	TotalUsers       int64 `json:"total_users"`
	PendingUsers     int64 `json:"pending_users"`
	TotalProducts    int64 `json:"total_products"`
	PendingProducts  int64 `json:"pending_products"`
	ApprovedProducts int64 `json:"approved_products"`
	SoldProducts     int64 `json:"sold_products"`
	TotalOrders      int64 `json:"total_orders"`
}

// ModerationItem is a pending lot with its seller attached for the review
// queue.
type ModerationItem struct {
	types.Product
	SellerName  string  `json:"seller_name"`
	SellerPhone *string `json:"seller_phone,omitempty"`
}

var _ AdminRepo = (*PostgresAdminRepo)(nil)

type AdminRepo interface {
	ListUsers(ctx context.Context, status *types.UserStatus) ([]types.User, error)
	SetUserStatus(ctx context.Context, id uuid.UUID, status types.UserStatus) (*types.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListProductsForReview(ctx context.Context, status types.ProductStatus) ([]ModerationItem, error)
	ApproveProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	RejectProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	Dashboard(ctx context.Context) (*DashboardStats, error)
}

type PostgresAdminRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresAdminRepo(db DB, logger *slog.Logger) *PostgresAdminRepo {
	return &PostgresAdminRepo{logger: logger, db: db}
}

const userColumns = `id, name, email, phone, password_hash, external_uid, role, status, created_at, updated_at`

// isForeignKeyViolation reports SQLSTATE 23503, raised when a delete would
// orphan rows that reference the target.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash,
		&u.ExternalUID, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every non-admin account, optionally narrowed by status.
func (r *PostgresAdminRepo) ListUsers(ctx context.Context, status *types.UserStatus) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role != 'admin'`
	args := []any{}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := []types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return items, nil
}

// SetUserStatus flips a non-admin account between approved and blocked.
func (r *PostgresAdminRepo) SetUserStatus(ctx context.Context, id uuid.UUID, status types.UserStatus) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET status = $2, updated_at = now()
         WHERE id = $1 AND role != 'admin'
         RETURNING `+userColumns,
		id, status))
	if err != nil {
		return nil, fmt.Errorf("set user status: %w", err)
	}
	return u, nil
}

// DeleteUser removes a non-admin account. Notification and push-token rows
// cascade with the user; auction rows (products, bids, orders) keep their FK
// restriction, so deleting a user with auction activity is a conflict.
func (r *PostgresAdminRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM users WHERE id = $1 AND role != 'admin'`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user has auction activity and cannot be deleted: %w", types.ErrConflict)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAdminRepo) ListProductsForReview(ctx context.Context, status types.ProductStatus) ([]ModerationItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.seller_id, p.title, p.description, p.image_url, p.category_id,
                p.starting_price, p.current_price, p.highest_bidder_id, p.status,
                p.auction_end_time, p.created_at, p.updated_at,
                s.name, s.phone
         FROM products p
         JOIN users s ON s.id = p.seller_id
         WHERE p.status = $1
         ORDER BY p.created_at ASC`,
		status)
	if err != nil {
		return nil, fmt.Errorf("list products for review: %w", err)
	}
	defer rows.Close()

	items := []ModerationItem{}
	for rows.Next() {
		var item ModerationItem
		err := rows.Scan(&item.ID, &item.SellerID, &item.Title, &item.Description,
			&item.ImageURL, &item.CategoryID, &item.StartingPrice, &item.CurrentPrice,
			&item.HighestBidderID, &item.Status, &item.AuctionEndTime,
			&item.CreatedAt, &item.UpdatedAt, &item.SellerName, &item.SellerPhone)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return items, nil
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
		return nil, err
	}
	return &p, nil
}

// ApproveProduct transitions a pending lot to approved and restarts its
// auction window from the approval time, preserving the duration the seller
// chose. Only pending rows match, so a re-approve is a conflict.
func (r *PostgresAdminRepo) ApproveProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx,
		`UPDATE products
         SET status = 'approved',
             auction_end_time = now() + (auction_end_time - created_at),
             updated_at = now()
         WHERE id = $1 AND status = 'pending'
         RETURNING `+productColumns,
		id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product is not awaiting approval: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("approve product: %w", err)
	}
	return p, nil
}

func (r *PostgresAdminRepo) RejectProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx,
		`UPDATE products SET status = 'rejected', updated_at = now()
         WHERE id = $1 AND status = 'pending'
         RETURNING `+productColumns,
		id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product is not awaiting approval: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("reject product: %w", err)
	}
	return p, nil
}

// Dashboard aggregates the console counters in one round trip.
func (r *PostgresAdminRepo) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := r.db.QueryRow(ctx,
		`SELECT
           (SELECT COUNT(*) FROM users WHERE role != 'admin'),
           (SELECT COUNT(*) FROM users WHERE role != 'admin' AND status = 'pending'),
           (SELECT COUNT(*) FROM products),
           (SELECT COUNT(*) FROM products WHERE status = 'pending'),
           (SELECT COUNT(*) FROM products WHERE status = 'approved'),
           (SELECT COUNT(*) FROM products WHERE status = 'sold'),
           (SELECT COUNT(*) FROM orders)`).
		Scan(&stats.TotalUsers, &stats.PendingUsers, &stats.TotalProducts,
			&stats.PendingProducts, &stats.ApprovedProducts, &stats.SoldProducts,
			&stats.TotalOrders)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &stats, nil
}
