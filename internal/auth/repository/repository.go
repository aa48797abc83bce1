package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = apperr.NotFound("user not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID             uuid.UUID
	Email          string
	Name           string
	Role           string
	Phone          *string
	PasswordHash   string
	NotifyWhatsApp bool
	NotifySMS      bool
	NotifyEmail    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateUserParams struct {
	Email        string
	Name         string
	Role         string
	Phone        *string
	PasswordHash string
}

type PreferencesParams struct {
	Phone          *string
	NotifyWhatsApp *bool
	NotifySMS      *bool
	NotifyEmail    *bool
}

const userColumns = `id, email, name, role, phone, password_hash, notify_whatsapp, notify_sms, notify_email, created_at, updated_at`

const listUsersQuery = `SELECT ` + userColumns + ` FROM users ORDER BY name ASC`

// resolveUserQuery matches an id, or a display name case-insensitively. Free-text
// assignee fields hold either form.
const resolveUserQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE id::text = $1 OR lower(name) = lower($1)
	ORDER BY (id::text = $1) DESC
	LIMIT 1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Phone, &u.PasswordHash,
		&u.NotifyWhatsApp, &u.NotifySMS, &u.NotifyEmail, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repository) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, role, phone, password_hash)
		VALUES (lower($1), $2, $3, $4, $5)
		RETURNING `+userColumns,
		p.Email, p.Name, p.Role, p.Phone, p.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.Conflict("email already in use")
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, strings.TrimSpace(email)))
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *Repository) ResolveUser(ctx context.Context, ref string) (User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return User{}, ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, resolveUserQuery, ref))
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, listUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) SetUserRole(ctx context.Context, userID uuid.UUID, role string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdatePreferences(ctx context.Context, userID uuid.UUID, p PreferencesParams) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET
			phone = COALESCE($2, phone),
			notify_whatsapp = COALESCE($3, notify_whatsapp),
			notify_sms = COALESCE($4, notify_sms),
			notify_email = COALESCE($5, notify_email),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, p.Phone, p.NotifyWhatsApp, p.NotifySMS, p.NotifyEmail))
}
