package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"alawein/internal/platform/models"

	"github.com/google/uuid"
)

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, scopes, status, expires_at, last_used_at, revoked_at, created_at`

var apiKeyFilters = map[string]bool{
	"id": true, "name": true, "status": true, "key_prefix": true, "created_at": true,
}

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt == 0 {
		key.CreatedAt = now()
	}
	if key.Status == "" {
		key.Status = models.APIKeyActive
	}
	if key.Scopes == nil {
		key.Scopes = []string{}
	}

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.Status, key.ExpiresAt, key.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByHash returns nil, nil when no key matches.
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, hash)
	return scanAPIKeyRow(row)
}

func (r *APIKeyRepository) GetForUser(ctx context.Context, id, userID string) (*models.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	return scanAPIKeyRow(row)
}

func (r *APIKeyRepository) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]*models.APIKey, error) {
	b := newSelect(apiKeyColumns, "api_keys").eq("user_id", userID)
	if err := b.apply(opts, apiKeyFilters, "created_at DESC, id DESC"); err != nil {
		return nil, err
	}
	query, args := b.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []*models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Rename returns nil when the key does not exist for the user.
func (r *APIKeyRepository) Rename(ctx context.Context, id, userID, name string) (*models.APIKey, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE api_keys SET name = $1 WHERE id = $2 AND user_id = $3`, name, id, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetForUser(ctx, id, userID)
}

// Revoke is idempotent: an already revoked key keeps its original revoked_at.
func (r *APIKeyRepository) Revoke(ctx context.Context, id, userID string) (*models.APIKey, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET status = 'revoked', revoked_at = COALESCE(revoked_at, $1)
		WHERE id = $2 AND user_id = $3
	`, now(), id, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetForUser(ctx, id, userID)
}

// Delete removes the key and returns the removed row, or nil when nothing matched.
func (r *APIKeyRepository) Delete(ctx context.Context, id, userID string) (*models.APIKey, error) {
	key, err := r.GetForUser(ctx, id, userID)
	if err != nil || key == nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return key, nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, now(), id)
	return err
}

func scanAPIKeyRow(row *sql.Row) (*models.APIKey, error) {
	k, err := scanAPIKey(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return k, err
}

func scanAPIKey(s scanner) (*models.APIKey, error) {
	var k models.APIKey
	var scopesStr string
	var expiresAt, lastUsedAt, revokedAt sql.NullInt64

	err := s.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &scopesStr, &k.Status, &expiresAt, &lastUsedAt, &revokedAt, &k.CreatedAt)
	if err != nil {
		return nil, err
	}

	k.ExpiresAt = nullInt64Ptr(expiresAt)
	k.LastUsedAt = nullInt64Ptr(lastUsedAt)
	k.RevokedAt = nullInt64Ptr(revokedAt)
	k.Scopes = []string{}
	if err := json.Unmarshal([]byte(scopesStr), &k.Scopes); err != nil {
		return nil, err
	}
	return &k, nil
}
