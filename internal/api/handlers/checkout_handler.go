package handlers

import (
	"net/http"

	"alawein/internal/api/middleware"
	"alawein/internal/engine/billing"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/audit"
)

const (
	ActionCreateCheckout = "create-checkout"
	ActionCreatePortal   = "create-portal"
	ActionGetPlans       = "get-plans"
)

type CheckoutHandler struct {
	billing *billing.Service
	audit   *audit.Logger
}

func NewCheckoutHandler(svc *billing.Service, auditLogger *audit.Logger) *CheckoutHandler {
	return &CheckoutHandler{billing: svc, audit: auditLogger}
}

func (h *CheckoutHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  string `json:"action"`
		PlanID  string `json:"planId"`
		PriceID string `json:"priceId"`
	}
	if err := decodeFunctionBody(r, &req); err != nil {
		functionFailed(w, "checkout", "invalid", err)
		return
	}

	if req.Action == ActionGetPlans {
		functionOK(w, "checkout", req.Action, map[string]interface{}{"plans": h.billing.Plans()})
		return
	}

	if req.Action != ActionCreateCheckout && req.Action != ActionCreatePortal {
		functionFailed(w, "checkout", "unknown", errors.NewValidation("", "Unknown action: "+req.Action))
		return
	}

	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		functionFailed(w, "checkout", req.Action, &errors.AuthError{})
		return
	}
	uid := claims.UserID()

	switch req.Action {
	case ActionCreateCheckout:
		res, err := h.billing.CreateCheckout(r.Context(), uid, claims.Email, req.PlanID, req.PriceID)
		if err != nil {
			functionFailed(w, "checkout", req.Action, err)
			return
		}
		if res.CustomerCreated {
			h.audit.Log(r, uid, audit.ActionCustomerLinked, "profile", uid, map[string]interface{}{"customer_id": res.CustomerID})
		}
		h.audit.Log(r, uid, audit.ActionCheckoutCreate, "checkout", res.SessionID, map[string]interface{}{"plan_id": req.PlanID})
		functionOK(w, "checkout", req.Action, res.Session)

	case ActionCreatePortal:
		url, err := h.billing.CreatePortal(r.Context(), uid)
		if err != nil {
			functionFailed(w, "checkout", req.Action, err)
			return
		}
		functionOK(w, "checkout", req.Action, map[string]string{"url": url})
	}
}
