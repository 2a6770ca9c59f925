package notifications

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

// DB is the slice of pgxpool.Pool the repository needs. Narrowed so tests can
// substitute a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ NotificationRepo = (*PostgresNotificationRepo)(nil)

// NotificationRepo persists the in-app notification log and the push-token
// registry.
type NotificationRepo interface {
	Append(ctx context.Context, userID uuid.UUID, event types.NotificationEvent, title, message string) error
	ListForUser(ctx context.Context, userID uuid.UUID, read *bool, limit int) ([]types.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*types.Notification, error)

	SaveToken(ctx context.Context, userID uuid.UUID, token string) error
	TokensFor(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type PostgresNotificationRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresNotificationRepo(db DB, logger *slog.Logger) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{logger: logger, db: db}
}

// Append writes one log row. The log is append-only; rows are never updated
// except for the read flag.
func (r *PostgresNotificationRepo) Append(ctx context.Context, userID uuid.UUID, event types.NotificationEvent, title, message string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (user_id, type, title, message, read)
         VALUES ($1, $2, $3, $4, false)`,
		userID, string(event), title, message)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID, read *bool, limit int) ([]types.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, user_id, type, title, message, read, created_at
              FROM notifications WHERE user_id = $1`
	args := []any{userID}

	if read != nil {
		query += ` AND read = $2`
		args = append(args, *read)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []types.Notification
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips the read flag, owner-only. Returns ErrNotFound when the row
// does not exist or belongs to a different user.
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*types.Notification, error) {
	var n types.Notification
	err := r.db.QueryRow(ctx,
		`UPDATE notifications SET read = true
         WHERE id = $1 AND user_id = $2
         RETURNING id, user_id, type, title, message, read, created_at`,
		notificationID, userID).
		Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", notificationID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &n, nil
}

// SaveToken upserts one (user, token) pair. Re-registering the same token is
// idempotent per user.
func (r *PostgresNotificationRepo) SaveToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO push_tokens (user_id, token, created_at, updated_at)
         VALUES ($1, $2, $3, $3)
         ON CONFLICT (user_id, token) DO UPDATE SET updated_at = $3`,
		userID, token, time.Now())
	if err != nil {
		return fmt.Errorf("save push token: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepo) TokensFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token FROM push_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan push token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
