package handlers

import (
	"strings"
	"time"

	"alawein/internal/pkg/errors"
	"alawein/internal/platform/audit"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

const (
	maxNameLength    = 100
	maxExpiresInDays = 3650
)

type APIKeyHandler struct {
	keys   *repositories.APIKeyRepository
	hasher *auth.KeyHasher
	audit  *audit.Logger
}

func NewAPIKeyHandler(keys *repositories.APIKeyRepository, hasher *auth.KeyHasher, auditLogger *audit.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, hasher: hasher, audit: auditLogger}
}

func (h *APIKeyHandler) list(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	return h.keys.ListByUser(q.Context(), uid, q.opts)
}

// create generates a key and returns its secret exactly once.
func (h *APIKeyHandler) create(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}

	var req struct {
		Name          string   `json:"name"`
		Scopes        []string `json:"scopes"`
		ExpiresInDays *int     `json:"expires_in_days"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	name, err := validName(req.Name)
	if err != nil {
		return nil, err
	}

	raw, hash, err := h.hasher.Generate()
	if err != nil {
		return nil, err
	}

	key := &models.APIKey{
		UserID:    uid,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: raw[:len(h.hasher.Prefix())+4],
		Scopes:    req.Scopes,
	}
	if req.ExpiresInDays != nil {
		days := *req.ExpiresInDays
		if days <= 0 || days > maxExpiresInDays {
			return nil, errors.NewValidation("expires_in_days", "must be between 1 and 3650")
		}
		exp := time.Now().AddDate(0, 0, days).Unix()
		key.ExpiresAt = &exp
	}

	if err := h.keys.Create(q.Context(), key); err != nil {
		return nil, err
	}
	key.Key = raw

	h.audit.Log(q.Request, uid, audit.ActionAPIKeyCreate, "api_key", key.ID, map[string]interface{}{"name": key.Name})
	return one(key), nil
}

// update renames a key or revokes it. Revocation is one-way.
func (h *APIKeyHandler) update(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	id, err := q.requireFilter("id")
	if err != nil {
		return nil, err
	}

	var req struct {
		Name   *string `json:"name"`
		Status *string `json:"status"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Status == nil {
		return nil, errors.NewValidation("", "nothing to update")
	}

	var key *models.APIKey
	if req.Name != nil {
		name, err := validName(*req.Name)
		if err != nil {
			return nil, err
		}
		if key, err = h.keys.Rename(q.Context(), id, uid, name); err != nil {
			return nil, err
		}
		if key == nil {
			return one(key), nil
		}
		h.audit.Log(q.Request, uid, audit.ActionAPIKeyRename, "api_key", id, map[string]interface{}{"name": name})
	}

	if req.Status != nil {
		switch *req.Status {
		case models.APIKeyRevoked:
			if key, err = h.keys.Revoke(q.Context(), id, uid); err != nil {
				return nil, err
			}
			if key != nil {
				h.audit.Log(q.Request, uid, audit.ActionAPIKeyRevoke, "api_key", id, nil)
			}
		case models.APIKeyActive:
			if key, err = h.keys.GetForUser(q.Context(), id, uid); err != nil {
				return nil, err
			}
			if key != nil && key.Revoked() {
				return nil, errors.NewValidation("status", "a revoked key cannot be reactivated")
			}
		default:
			return nil, errors.NewValidation("status", "must be active or revoked")
		}
	}

	return one(key), nil
}

func (h *APIKeyHandler) delete(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	id, err := q.requireFilter("id")
	if err != nil {
		return nil, err
	}

	key, err := h.keys.Delete(q.Context(), id, uid)
	if err != nil {
		return nil, err
	}
	if key != nil {
		h.audit.Log(q.Request, uid, audit.ActionAPIKeyDelete, "api_key", id, map[string]interface{}{"name": key.Name})
	}
	return one(key), nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewValidation("name", "is required")
	}
	if len(name) > maxNameLength {
		return "", errors.NewValidation("name", "must be at most 100 characters")
	}
	return name, nil
}
