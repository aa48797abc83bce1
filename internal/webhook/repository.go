// Package webhook captures leads submitted by external website forms. Callers
// authenticate with an API key managed by admins.
package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAPIKeyNotFound = apperr.NotFound("webhook API key not found")

const keyPrefix = "whk_"

// APIKey is a stored webhook key. Only its hash is persisted.
type APIKey struct {
	ID             uuid.UUID
	Name           string
	KeyHash        string
	KeyPrefix      string
	AllowedDomains []string
	IsActive       bool
	CreatedBy      *uuid.UUID
	LastUsedAt     *time.Time
	CreatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey returns a random key, its hash and the prefix shown in listings.
func GenerateAPIKey() (plaintext, hash, prefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", err
	}
	plaintext = keyPrefix + hex.EncodeToString(buf)
	return plaintext, HashKey(plaintext), plaintext[:len(keyPrefix)+8], nil
}

// HashKey hashes a plaintext API key for lookup.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

const keyColumns = `id, name, key_hash, key_prefix, allowed_domains, is_active, created_by, last_used_at, created_at`

func scanKey(row pgx.Row) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.AllowedDomains, &k.IsActive, &k.CreatedBy, &k.LastUsedAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return k, err
}

func (r *Repository) Create(ctx context.Context, name, hash, prefix string, allowedDomains []string, createdBy *uuid.UUID) (APIKey, error) {
	key, err := scanKey(r.pool.QueryRow(ctx, `
		INSERT INTO webhook_api_keys (name, key_hash, key_prefix, allowed_domains, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+keyColumns, name, hash, prefix, allowedDomains, createdBy))
	if err != nil {
		return APIKey{}, fmt.Errorf("failed to create webhook key: %w", err)
	}
	return key, nil
}

// GetByHash returns an active key.
func (r *Repository) GetByHash(ctx context.Context, hash string) (APIKey, error) {
	return scanKey(r.pool.QueryRow(ctx, `
		SELECT `+keyColumns+` FROM webhook_api_keys
		WHERE key_hash = $1 AND is_active = true`, hash))
}

func (r *Repository) List(ctx context.Context) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+keyColumns+` FROM webhook_api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE webhook_api_keys SET is_active = false WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func (r *Repository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE webhook_api_keys SET last_used_at = now() WHERE id = $1`, id)
	return err
}
