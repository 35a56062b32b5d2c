package handlers

import (
	"strings"

	"alawein/internal/pkg/errors"
	"alawein/internal/pkg/validator"
	"alawein/internal/platform/audit"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

type OrgHandler struct {
	orgs  *repositories.OrganizationRepository
	audit *audit.Logger
}

func NewOrgHandler(orgs *repositories.OrganizationRepository, auditLogger *audit.Logger) *OrgHandler {
	return &OrgHandler{orgs: orgs, audit: auditLogger}
}

func (h *OrgHandler) list(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	return h.orgs.ListForUser(q.Context(), uid, q.opts)
}

// create inserts the organization and the caller's owner membership together.
func (h *OrgHandler) create(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}

	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	name, err := validName(req.Name)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = validator.Slugify(name)
	}
	if !validator.IsSlug(slug) {
		return nil, errors.NewValidation("slug", "must be lowercase letters, digits and dashes")
	}

	org := &models.Organization{Name: name, Slug: slug, CreatedBy: uid}
	if _, err := h.orgs.CreateWithOwner(q.Context(), org); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errors.Conflict("Organization slug already taken")
		}
		return nil, err
	}

	h.audit.Log(q.Request, uid, audit.ActionOrgCreate, "organization", org.ID, map[string]interface{}{"slug": slug})
	return one(org), nil
}

func (h *OrgHandler) update(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	id, err := q.requireFilter("id")
	if err != nil {
		return nil, err
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	name, err := validName(req.Name)
	if err != nil {
		return nil, err
	}

	m, err := h.orgs.GetMembership(q.Context(), id, uid)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return one[models.Organization](nil), nil
	}
	if !canManage(m.Role) {
		return nil, errors.Forbidden("Only owners and admins can update the organization")
	}

	org, err := h.orgs.Rename(q.Context(), id, name)
	if err != nil {
		return nil, err
	}
	if org != nil {
		h.audit.Log(q.Request, uid, audit.ActionOrgUpdate, "organization", id, map[string]interface{}{"name": name})
	}
	return one(org), nil
}

func (h *OrgHandler) delete(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	id, err := q.requireFilter("id")
	if err != nil {
		return nil, err
	}

	m, err := h.orgs.GetMembership(q.Context(), id, uid)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return one[models.Organization](nil), nil
	}
	if m.Role != models.RoleOwner {
		return nil, errors.Forbidden("Only the owner can delete the organization")
	}

	org, err := h.orgs.Delete(q.Context(), id)
	if err != nil {
		return nil, err
	}
	if org != nil {
		h.audit.Log(q.Request, uid, audit.ActionOrgDelete, "organization", id, nil)
	}
	return one(org), nil
}

func (h *OrgHandler) listMembers(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	return h.orgs.ListMembers(q.Context(), uid, q.opts)
}

// memberTarget loads the caller's and the target's memberships. Either may be nil.
func (h *OrgHandler) memberTarget(q *restRequest) (caller, target *models.Membership, err error) {
	uid, err := q.user()
	if err != nil {
		return nil, nil, err
	}
	orgID, err := q.requireFilter("organization_id")
	if err != nil {
		return nil, nil, err
	}
	userID, err := q.requireFilter("user_id")
	if err != nil {
		return nil, nil, err
	}

	if caller, err = h.orgs.GetMembership(q.Context(), orgID, uid); err != nil || caller == nil {
		return nil, nil, err
	}
	if target, err = h.orgs.GetMembership(q.Context(), orgID, userID); err != nil {
		return nil, nil, err
	}
	return caller, target, nil
}

func (h *OrgHandler) updateMember(q *restRequest) (interface{}, error) {
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, errors.NewValidation("role", "must be owner, admin or member")
	}
	if req.Role == models.RoleOwner {
		return nil, errors.NewValidation("role", "ownership cannot be granted")
	}

	caller, target, err := h.memberTarget(q)
	if err != nil {
		return nil, err
	}
	if caller == nil || target == nil {
		return one[models.Membership](nil), nil
	}
	if !canManage(caller.Role) {
		return nil, errors.Forbidden("Only owners and admins can change roles")
	}
	if target.Role == models.RoleOwner {
		return nil, errors.Forbidden("The owner's role cannot be changed")
	}

	m, err := h.orgs.UpdateMemberRole(q.Context(), target.OrganizationID, target.UserID, req.Role)
	if err != nil {
		return nil, err
	}
	if m != nil {
		h.audit.Log(q.Request, caller.UserID, audit.ActionMemberRole, "organization_member", target.OrganizationID+"/"+target.UserID,
			map[string]interface{}{"role": string(req.Role)})
	}
	return one(m), nil
}

// removeMember lets owners and admins remove others and any non-owner leave.
func (h *OrgHandler) removeMember(q *restRequest) (interface{}, error) {
	caller, target, err := h.memberTarget(q)
	if err != nil {
		return nil, err
	}
	if caller == nil || target == nil {
		return one[models.Membership](nil), nil
	}
	if target.Role == models.RoleOwner {
		return nil, errors.Forbidden("The owner cannot be removed")
	}
	if target.UserID != caller.UserID && !canManage(caller.Role) {
		return nil, errors.Forbidden("Only owners and admins can remove members")
	}

	m, err := h.orgs.RemoveMember(q.Context(), target.OrganizationID, target.UserID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		h.audit.Log(q.Request, caller.UserID, audit.ActionMemberRemove, "organization_member", target.OrganizationID+"/"+target.UserID, nil)
	}
	return one(m), nil
}

func canManage(role models.Role) bool {
	return role == models.RoleOwner || role == models.RoleAdmin
}
