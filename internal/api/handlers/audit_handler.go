package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"alawein/internal/pkg/errors"
	"alawein/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLogger}
}

// List returns recent audit entries, optionally for one user. Admin only.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.audit.List(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list audit logs")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal error", nil)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
