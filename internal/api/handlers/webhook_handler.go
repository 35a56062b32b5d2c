package handlers

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"alawein/internal/engine/billing"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/metrics"
)

// BillingWebhookHandler receives provider notifications. It is the only
// writer of the subscriptions table.
type BillingWebhookHandler struct {
	provider billing.Provider
	billing  *billing.Service
}

func NewBillingWebhookHandler(provider billing.Provider, svc *billing.Service) *BillingWebhookHandler {
	return &BillingWebhookHandler{provider: provider, billing: svc}
}

func (h *BillingWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		errors.WriteFunctionError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ev, err := h.provider.ParseWebhook(r, body)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			metrics.BillingEvents.WithLabelValues("unknown", "rejected").Inc()
			errors.WriteFunctionError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		metrics.BillingEvents.WithLabelValues("unknown", "invalid").Inc()
		errors.WriteFunctionError(w, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := h.billing.ApplyEvent(r.Context(), ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("Failed to apply billing event")
		metrics.BillingEvents.WithLabelValues(ev.Type, "error").Inc()
		// A 5xx makes the provider redeliver.
		errors.WriteFunctionError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	outcome := "ignored"
	if applied {
		outcome = "applied"
		log.Info().Str("event_id", ev.ID).Str("event_type", ev.Type).Str("subscription_id", ev.SubscriptionID).Msg("Subscription updated")
	}
	metrics.BillingEvents.WithLabelValues(ev.Type, outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
