package handlers

import (
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

// AccountHandler serves the caller's own read-mostly rows: profile,
// subscription and analysis results.
type AccountHandler struct {
	profiles *repositories.ProfileRepository
	subs     *repositories.SubscriptionRepository
	results  *repositories.ResultRepository
}

func NewAccountHandler(profiles *repositories.ProfileRepository, subs *repositories.SubscriptionRepository, results *repositories.ResultRepository) *AccountHandler {
	return &AccountHandler{profiles: profiles, subs: subs, results: results}
}

func (h *AccountHandler) profile(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	if id, ok := q.filter("id"); ok && id != uid {
		return one[models.Profile](nil), nil
	}
	p, err := h.profiles.Get(q.Context(), uid)
	if err != nil {
		return nil, err
	}
	return one(p), nil
}

func (h *AccountHandler) updateProfile(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	if id, ok := q.filter("id"); ok && id != uid {
		return one[models.Profile](nil), nil
	}

	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := q.decode(&req); err != nil {
		return nil, err
	}
	name, err := validName(req.DisplayName)
	if err != nil {
		return nil, err
	}

	p, err := h.profiles.UpdateDisplayName(q.Context(), uid, name)
	if err != nil {
		return nil, err
	}
	return one(p), nil
}

// subscription is read-only here; the billing webhook is its only writer.
func (h *AccountHandler) subscription(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	if id, ok := q.filter("user_id"); ok && id != uid {
		return one[models.Subscription](nil), nil
	}
	sub, err := h.subs.GetByUser(q.Context(), uid)
	if err != nil {
		return nil, err
	}
	return one(sub), nil
}

func (h *AccountHandler) scans(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	return h.results.ListScans(q.Context(), uid, q.opts)
}

func (h *AccountHandler) research(q *restRequest) (interface{}, error) {
	uid, err := q.user()
	if err != nil {
		return nil, err
	}
	return h.results.ListResearch(q.Context(), uid, q.opts)
}
