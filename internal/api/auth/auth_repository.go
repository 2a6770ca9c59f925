package auth

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

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential-store contract.
type AuthRepo interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByExternalUID(ctx context.Context, externalUID string) (*types.User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone *string) (*types.User, error)
	PhoneTaken(ctx context.Context, phone string, excludeID uuid.UUID) (bool, error)
}

type CreateUserParams struct {
	Name         string
	Email        *string
	Phone        *string
	PasswordHash *string
	ExternalUID  *string
	Role         types.UserRole
	Status       types.UserStatus
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresAuthRepo(db DB, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{logger: logger, db: db}
}

const userColumns = `id, name, email, phone, password_hash, external_uid, role, status, created_at, updated_at`

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

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) GetUserByPhone(ctx context.Context, phone string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) GetUserByExternalUID(ctx context.Context, externalUID string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_uid = $1`, externalUID))
	if err != nil {
		return nil, fmt.Errorf("get user by external uid: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new account. Uniqueness of phone/email/external UID is
// enforced by partial unique indexes; a violation surfaces as ErrConflict.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (name, email, phone, password_hash, external_uid, role, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING `+userColumns,
		params.Name, params.Email, params.Phone, params.PasswordHash,
		params.ExternalUID, params.Role, params.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user with this phone or email already exists: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone *string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
         SET name = COALESCE($2, name),
             phone = COALESCE($3, phone),
             updated_at = now()
         WHERE id = $1
         RETURNING `+userColumns,
		userID, name, phone))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("phone number already in use: %w", types.ErrConflict)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (r *PostgresAuthRepo) PhoneTaken(ctx context.Context, phone string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1 AND id != $2)`,
		phone, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check phone in use: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
