// Package apikeys keeps the caller's API keys in sync with the remote store.
package apikeys

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"alawein/internal/client/cache"
	"alawein/internal/client/notify"
	"alawein/internal/client/store"
	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/models"
)

const table = "api_keys"

const (
	opCreate = "create"
	opRevoke = "revoke"
	opDelete = "delete"
)

type Hook struct {
	store  store.Client
	toasts *notify.Store
	keys   *cache.Collection[models.APIKey]
	guard  cache.Guard
	status cache.Status

	mu     sync.Mutex
	newKey *string
	closed atomic.Bool
}

func New(client store.Client, toasts *notify.Store, ttl time.Duration) *Hook {
	if toasts == nil {
		toasts = notify.New()
	}
	return &Hook{
		store:  client,
		toasts: toasts,
		keys:   cache.New(func(k models.APIKey) string { return k.ID }, ttl),
	}
}

// Keys returns the cached metadata, newest first. It never triggers a fetch.
func (h *Hook) Keys() []models.APIKey {
	return h.keys.Items()
}

// List returns the cached keys, fetching first when the cache is stale.
func (h *Hook) List(ctx context.Context) ([]models.APIKey, error) {
	if h.keys.Fresh() {
		return h.keys.Items(), nil
	}
	if err := h.Refresh(ctx); err != nil {
		return h.keys.Items(), err
	}
	return h.keys.Items(), nil
}

func (h *Hook) Refresh(ctx context.Context) error {
	token := h.keys.BeginFetch()
	h.status.Start()

	var rows []models.APIKey
	err := h.store.Select(ctx, table, store.Q().Order("created_at", true), &rows)
	if err != nil {
		h.fail("Failed to load API keys", err)
		return err
	}
	h.keys.ApplyFetch(token, rows)
	h.status.Finish(nil)
	return nil
}

// Create inserts a key. The secret is kept in NewKey until ClearNewKey; the
// cache only ever holds metadata.
func (h *Hook) Create(ctx context.Context, name string, scopes []string) (*models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		err := apperrors.NewValidation("name", "is required")
		h.toast(notify.TypeError, "Failed to create API key", err.Error())
		return nil, err
	}

	done, err := h.guard.Begin(opCreate)
	if err != nil {
		return nil, err
	}
	defer done()
	h.status.Start()

	if store.IdempotencyKey(ctx) == "" {
		ctx = store.NewIdempotencyKey(ctx)
	}

	var rows []models.APIKey
	body := map[string]interface{}{"name": name}
	if len(scopes) > 0 {
		body["scopes"] = scopes
	}
	if err := h.store.Insert(ctx, table, body, &rows); err != nil {
		h.fail("Failed to create API key", err)
		return nil, err
	}
	if len(rows) == 0 {
		err := &apperrors.RemoteError{Message: "insert returned no row"}
		h.fail("Failed to create API key", err)
		return nil, err
	}

	key := rows[0]
	secret := key.Key
	key.Key = ""
	h.keys.Put(h.keys.BeginMutation(), key)

	h.mu.Lock()
	h.newKey = &secret
	h.mu.Unlock()

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "API key created", "Copy it now. It will not be shown again.")
	return &key, nil
}

// NewKey returns the secret of the last created key until it is cleared.
func (h *Hook) NewKey() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.newKey == nil {
		return "", false
	}
	return *h.newKey, true
}

func (h *Hook) ClearNewKey() {
	h.mu.Lock()
	h.newKey = nil
	h.mu.Unlock()
}

// Revoke marks the key revoked in the cache before the call and restores the
// previous row if the call fails. Revoking a revoked key succeeds unchanged.
func (h *Hook) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewValidation("id", "is required")
	}
	done, err := h.guard.Begin(opRevoke)
	if err != nil {
		return err
	}
	defer done()
	h.status.Start()

	seq := h.keys.BeginMutation()
	prev, cached := h.keys.Get(id)
	if cached {
		optimistic := prev
		optimistic.Status = models.APIKeyRevoked
		h.keys.Put(seq, optimistic)
	}

	var rows []models.APIKey
	err = h.store.Update(ctx, table, store.Q().Eq("id", id), map[string]string{"status": models.APIKeyRevoked}, &rows)
	if err != nil {
		if cached {
			h.keys.Put(seq, prev)
		}
		h.fail("Failed to revoke API key", err)
		return err
	}
	if len(rows) > 0 {
		h.keys.Put(seq, rows[0])
	}

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "API key revoked", "")
	return nil
}

// Delete removes the key only after the store confirms it.
func (h *Hook) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewValidation("id", "is required")
	}
	done, err := h.guard.Begin(opDelete)
	if err != nil {
		return err
	}
	defer done()
	h.status.Start()

	seq := h.keys.BeginMutation()
	if err := h.store.Delete(ctx, table, store.Q().Eq("id", id), nil); err != nil {
		h.fail("Failed to delete API key", err)
		return err
	}
	h.keys.Remove(seq, id)

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "API key deleted", "")
	return nil
}

func (h *Hook) IsCreating() bool { return h.guard.Active(opCreate) }
func (h *Hook) IsRevoking() bool { return h.guard.Active(opRevoke) }
func (h *Hook) IsDeleting() bool { return h.guard.Active(opDelete) }

func (h *Hook) Loading() bool { return h.status.Loading() }
func (h *Hook) Err() error    { return h.status.Err() }

// Close detaches the hook. Responses that arrive later are dropped.
func (h *Hook) Close() {
	h.closed.Store(true)
	h.keys.Close()
}

func (h *Hook) fail(title string, err error) {
	h.status.Finish(err)
	if h.closed.Load() {
		return
	}
	log.Warn().Err(err).Str("resource", table).Msg(title)
	h.toast(notify.TypeError, title, err.Error())
}

func (h *Hook) toast(t notify.Type, title, message string) {
	if !h.closed.Load() {
		h.toasts.Toast(t, title, message)
	}
}
