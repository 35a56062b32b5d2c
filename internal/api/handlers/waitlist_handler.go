package handlers

import (
	"encoding/json"
	"strings"

	"alawein/internal/pkg/errors"
	"alawein/internal/pkg/validator"
	"alawein/internal/platform/audit"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

type WaitlistHandler struct {
	entries *repositories.WaitlistRepository
	audit   *audit.Logger
}

func NewWaitlistHandler(entries *repositories.WaitlistRepository, auditLogger *audit.Logger) *WaitlistHandler {
	return &WaitlistHandler{entries: entries, audit: auditLogger}
}

func requireAdmin(claims *auth.Claims) error {
	if claims == nil {
		return &errors.AuthError{}
	}
	if !claims.IsAdmin() {
		return errors.Forbidden("Admin access required")
	}
	return nil
}

func (h *WaitlistHandler) list(q *restRequest) (interface{}, error) {
	if err := requireAdmin(q.claims); err != nil {
		return nil, err
	}
	return h.entries.List(q.Context(), q.opts)
}

// join is open to anonymous callers. The position is assigned by the store.
func (h *WaitlistHandler) join(q *restRequest) (interface{}, error) {
	var req struct {
		Email     string          `json:"email"`
		ProjectID string          `json:"project_id"`
		ProductID string          `json:"product_id"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}

	email, err := validator.NormalizeEmail(req.Email)
	if err != nil {
		return nil, errors.NewValidation("email", err.Error())
	}
	project := strings.ToLower(strings.TrimSpace(req.ProjectID))
	if !validator.IsSlug(project) {
		return nil, errors.NewValidation("project_id", "must be a lowercase slug")
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, errors.NewValidation("metadata", "must be valid JSON")
	}

	entry := &models.WaitlistEntry{
		Email:     email,
		ProjectID: project,
		ProductID: strings.TrimSpace(req.ProductID),
		Metadata:  req.Metadata,
	}
	if err := h.entries.Join(q.Context(), entry); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errors.Conflict("Email is already on the waitlist")
		}
		return nil, err
	}
	return one(entry), nil
}

func (h *WaitlistHandler) updateStatus(q *restRequest) (interface{}, error) {
	if err := requireAdmin(q.claims); err != nil {
		return nil, err
	}
	id, err := q.requireFilter("id")
	if err != nil {
		return nil, err
	}

	var req struct {
		Status models.WaitlistStatus `json:"status"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, errors.NewValidation("status", "must be waiting, invited, converted or declined")
	}

	entry, err := h.entries.UpdateStatus(q.Context(), id, req.Status)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		h.audit.Log(q.Request, q.claims.UserID(), audit.ActionWaitlistStatus, "waitlist", id,
			map[string]interface{}{"status": string(req.Status)})
	}
	return one(entry), nil
}
