// Package orgs caches the organizations the signed-in user belongs to and the
// roles inside them.
package orgs

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

const (
	orgTable    = "organizations"
	memberTable = "organization_members"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opRole   = "role"
	opRemove = "remove"
)

func memberKey(orgID, userID string) string { return orgID + "/" + userID }

type Hook struct {
	store   store.Client
	toasts  *notify.Store
	userID  string
	orgs    *cache.Collection[models.Organization]
	members *cache.Collection[models.Membership]
	guard   cache.Guard
	status  cache.Status

	mu      sync.Mutex
	current string
	closed  atomic.Bool
}

// New returns a hook for userID, the subject of the token the client sends.
func New(client store.Client, toasts *notify.Store, userID string, ttl time.Duration) *Hook {
	if toasts == nil {
		toasts = notify.New()
	}
	return &Hook{
		store:   client,
		toasts:  toasts,
		userID:  userID,
		orgs:    cache.New(func(o models.Organization) string { return o.ID }, ttl),
		members: cache.New(func(m models.Membership) string { return memberKey(m.OrganizationID, m.UserID) }, ttl),
	}
}

func (h *Hook) Organizations() []models.Organization { return h.orgs.Items() }

// Memberships returns every cached membership row, the caller's and other members'.
func (h *Hook) Memberships() []models.Membership { return h.members.Items() }

// List returns the cached organizations, fetching first when stale.
func (h *Hook) List(ctx context.Context) ([]models.Organization, error) {
	if h.orgs.Fresh() && h.members.Fresh() {
		return h.orgs.Items(), nil
	}
	err := h.Refresh(ctx)
	return h.orgs.Items(), err
}

// Refresh reloads organizations and memberships. When no organization is
// current yet the newest one is selected.
func (h *Hook) Refresh(ctx context.Context) error {
	orgToken := h.orgs.BeginFetch()
	memberToken := h.members.BeginFetch()
	h.status.Start()

	var orgs []models.Organization
	if err := h.store.Select(ctx, orgTable, store.Q().Order("created_at", true), &orgs); err != nil {
		h.fail("Failed to load organizations", err)
		return err
	}
	var members []models.Membership
	if err := h.store.Select(ctx, memberTable, store.Q().Order("created_at", true), &members); err != nil {
		h.fail("Failed to load members", err)
		return err
	}

	if h.orgs.ApplyFetch(orgToken, orgs) {
		h.members.ApplyFetch(memberToken, members)
		h.reconcileCurrent()
	}
	h.status.Finish(nil)
	return nil
}

// Create inserts the organization. The server adds the caller as owner in
// the same transaction, so the hook mirrors that membership locally.
func (h *Hook) Create(ctx context.Context, name, slug string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		err := apperrors.NewValidation("name", "is required")
		h.toast(notify.TypeError, "Failed to create organization", err.Error())
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
	body := map[string]string{"name": name}
	if slug = strings.TrimSpace(slug); slug != "" {
		body["slug"] = slug
	}

	var rows []models.Organization
	if err := h.store.Insert(ctx, orgTable, body, &rows); err != nil {
		h.fail("Failed to create organization", err)
		return nil, err
	}
	if len(rows) == 0 {
		err := &apperrors.RemoteError{Message: "insert returned no row"}
		h.fail("Failed to create organization", err)
		return nil, err
	}

	org := rows[0]
	h.orgs.Put(h.orgs.BeginMutation(), org)
	h.members.Put(h.members.BeginMutation(), models.Membership{
		OrganizationID: org.ID,
		UserID:         h.userID,
		Role:           models.RoleOwner,
		CreatedAt:      org.CreatedAt,
	})

	h.mu.Lock()
	if h.current == "" {
		h.current = org.ID
	}
	h.mu.Unlock()

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "Organization created", org.Name)
	return &org, nil
}

// Update renames the organization and then refetches the collection.
func (h *Hook) Update(ctx context.Context, id, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("name", "is required")
	}
	done, err := h.guard.Begin(opUpdate)
	if err != nil {
		return nil, err
	}
	defer done()
	h.status.Start()

	seq := h.orgs.BeginMutation()
	var rows []models.Organization
	if err := h.store.Update(ctx, orgTable, store.Q().Eq("id", id), map[string]string{"name": name}, &rows); err != nil {
		h.fail("Failed to update organization", err)
		return nil, err
	}
	if len(rows) == 0 {
		err := &apperrors.NotFoundError{Resource: orgTable, ID: id}
		h.fail("Failed to update organization", err)
		return nil, err
	}
	org := rows[0]
	h.orgs.Put(seq, org)
	h.orgs.Invalidate()
	h.status.Finish(nil)

	if err := h.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("refetch after organization update failed")
	}
	h.toast(notify.TypeSuccess, "Organization updated", "")
	return &org, nil
}

// Delete removes the organization after the store confirms it, together with
// its cached memberships.
func (h *Hook) Delete(ctx context.Context, id string) error {
	done, err := h.guard.Begin(opDelete)
	if err != nil {
		return err
	}
	defer done()
	h.status.Start()

	orgSeq := h.orgs.BeginMutation()
	memberSeq := h.members.BeginMutation()
	if err := h.store.Delete(ctx, orgTable, store.Q().Eq("id", id), nil); err != nil {
		h.fail("Failed to delete organization", err)
		return err
	}
	h.orgs.Remove(orgSeq, id)
	h.members.RemoveWhere(memberSeq, func(m models.Membership) bool { return m.OrganizationID == id })

	h.mu.Lock()
	if h.current == id {
		h.current = ""
	}
	h.mu.Unlock()
	h.reconcileCurrent()

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "Organization deleted", "")
	return nil
}

// UpdateMemberRole changes another member's role. Ownership cannot be granted.
func (h *Hook) UpdateMemberRole(ctx context.Context, orgID, userID string, role models.Role) error {
	if !role.Valid() || role == models.RoleOwner {
		return apperrors.NewValidation("role", "must be admin or member")
	}
	done, err := h.guard.Begin(opRole)
	if err != nil {
		return err
	}
	defer done()
	h.status.Start()

	seq := h.members.BeginMutation()
	q := store.Q().Eq("organization_id", orgID).Eq("user_id", userID)
	var rows []models.Membership
	if err := h.store.Update(ctx, memberTable, q, map[string]string{"role": string(role)}, &rows); err != nil {
		h.fail("Failed to update member role", err)
		return err
	}
	if len(rows) == 0 {
		err := &apperrors.NotFoundError{Resource: memberTable, ID: memberKey(orgID, userID)}
		h.fail("Failed to update member role", err)
		return err
	}
	h.members.Put(seq, rows[0])

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "Member role updated", "")
	return nil
}

// RemoveMember removes userID from orgID. Passing the caller's own id leaves
// the organization.
func (h *Hook) RemoveMember(ctx context.Context, orgID, userID string) error {
	done, err := h.guard.Begin(opRemove)
	if err != nil {
		return err
	}
	defer done()
	h.status.Start()

	seq := h.members.BeginMutation()
	q := store.Q().Eq("organization_id", orgID).Eq("user_id", userID)
	if err := h.store.Delete(ctx, memberTable, q, nil); err != nil {
		h.fail("Failed to remove member", err)
		return err
	}
	h.members.Remove(seq, memberKey(orgID, userID))

	if userID == h.userID {
		orgSeq := h.orgs.BeginMutation()
		h.orgs.Remove(orgSeq, orgID)
		h.members.RemoveWhere(h.members.BeginMutation(), func(m models.Membership) bool { return m.OrganizationID == orgID })
		h.mu.Lock()
		if h.current == orgID {
			h.current = ""
		}
		h.mu.Unlock()
		h.reconcileCurrent()
	}

	h.status.Finish(nil)
	h.toast(notify.TypeSuccess, "Member removed", "")
	return nil
}

// SetCurrent selects the current organization for this session.
func (h *Hook) SetCurrent(id string) error {
	if _, ok := h.orgs.Get(id); !ok {
		return &apperrors.NotFoundError{Resource: "organization", ID: id}
	}
	h.mu.Lock()
	h.current = id
	h.mu.Unlock()
	return nil
}

func (h *Hook) Current() (models.Organization, bool) {
	h.mu.Lock()
	id := h.current
	h.mu.Unlock()
	if id == "" {
		return models.Organization{}, false
	}
	return h.orgs.Get(id)
}

// CurrentUserRole is the caller's cached role in orgID, or "" when not a member.
func (h *Hook) CurrentUserRole(orgID string) models.Role {
	m, ok := h.members.Get(memberKey(orgID, h.userID))
	if !ok {
		return ""
	}
	return m.Role
}

func (h *Hook) CanManageMembers(orgID string) bool {
	r := h.CurrentUserRole(orgID)
	return r == models.RoleOwner || r == models.RoleAdmin
}

func (h *Hook) CanManageOrg(orgID string) bool {
	r := h.CurrentUserRole(orgID)
	return r == models.RoleOwner || r == models.RoleAdmin
}

func (h *Hook) CanDeleteOrg(orgID string) bool {
	return h.CurrentUserRole(orgID) == models.RoleOwner
}

func (h *Hook) IsCreating() bool { return h.guard.Active(opCreate) }
func (h *Hook) IsUpdating() bool { return h.guard.Active(opUpdate) }
func (h *Hook) IsDeleting() bool { return h.guard.Active(opDelete) }

func (h *Hook) Loading() bool { return h.status.Loading() }
func (h *Hook) Err() error    { return h.status.Err() }

func (h *Hook) Close() {
	h.closed.Store(true)
	h.orgs.Close()
	h.members.Close()
}

// reconcileCurrent keeps exactly one current organization while any exist.
func (h *Hook) reconcileCurrent() {
	items := h.orgs.Items()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return
	}
	for _, o := range items {
		if o.ID == h.current {
			return
		}
	}
	h.current = ""
	if len(items) > 0 {
		h.current = items[0].ID
	}
}

func (h *Hook) fail(title string, err error) {
	h.status.Finish(err)
	if h.closed.Load() {
		return
	}
	log.Warn().Err(err).Str("resource", orgTable).Msg(title)
	h.toast(notify.TypeError, title, err.Error())
}

func (h *Hook) toast(t notify.Type, title, message string) {
	if !h.closed.Load() {
		h.toasts.Toast(t, title, message)
	}
}
