package handlers

import (
	"net/http"

	"alawein/internal/engine/mailer"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/metrics"
)

type EmailHandler struct {
	mailer *mailer.Service
}

func NewEmailHandler(svc *mailer.Service) *EmailHandler {
	return &EmailHandler{mailer: svc}
}

func (h *EmailHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req mailer.Request
	if err := decodeFunctionBody(r, &req); err != nil {
		functionFailed(w, "send-email", "invalid", err)
		return
	}

	id, err := h.mailer.Send(r.Context(), req)
	if err != nil {
		if errors.Is(err, errors.ErrValidation) {
			metrics.EmailsSent.WithLabelValues("invalid", "rejected").Inc()
		} else {
			metrics.EmailsSent.WithLabelValues(req.Template, "failed").Inc()
		}
		functionFailed(w, "send-email", "send", err)
		return
	}

	metrics.EmailsSent.WithLabelValues(req.Template, "sent").Inc()
	functionOK(w, "send-email", "send", map[string]interface{}{"success": true, "id": id})
}
