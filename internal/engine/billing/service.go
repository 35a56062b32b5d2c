package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/config"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

// ErrNoCustomer means the user has never been linked to a billing customer.
var ErrNoCustomer = apperrors.NewValidation("", "No billing customer found")

type Service struct {
	provider Provider
	profiles *repositories.ProfileRepository
	subs     *repositories.SubscriptionRepository
	plans    []Plan
	cfg      config.BillingConfig
}

func NewService(provider Provider, profiles *repositories.ProfileRepository, subs *repositories.SubscriptionRepository, cfg config.BillingConfig) *Service {
	return &Service{
		provider: provider,
		profiles: profiles,
		subs:     subs,
		plans:    Catalog(cfg.PriceIDs),
		cfg:      cfg,
	}
}

func (s *Service) Plans() []Plan {
	return s.plans
}

type CheckoutResult struct {
	Session
	CustomerID      string `json:"-"`
	CustomerCreated bool   `json:"-"`
}

// CreateCheckout links the user to a billing customer if needed and opens a checkout session.
// The customer link is persisted before the session references it.
func (s *Service) CreateCheckout(ctx context.Context, userID, email, planID, priceID string) (*CheckoutResult, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, apperrors.NewValidation("planId", "is required")
	}
	if strings.TrimSpace(priceID) == "" {
		return nil, apperrors.NewValidation("priceId", "is required")
	}
	if _, ok := findPlan(s.plans, planID); !ok {
		return nil, apperrors.NewValidation("planId", "unknown plan")
	}

	customerID, created, err := s.ensureCustomer(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	session, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.cfg.SuccessURL,
		CustomData: map[string]string{"user_id": userID, "plan_id": planID},
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Session: *session, CustomerID: customerID, CustomerCreated: created}, nil
}

// ensureCustomer is create-if-absent. Two concurrent first checkouts may both
// create a provider customer; only the first conditional update wins and both
// requests continue with the winner.
func (s *Service) ensureCustomer(ctx context.Context, userID, email string) (string, bool, error) {
	profile, err := s.profile(ctx, userID, email)
	if err != nil {
		return "", false, err
	}
	if profile.BillingCustomerID != "" {
		return profile.BillingCustomerID, false, nil
	}

	if email == "" {
		email = profile.Email
	}
	customerID, err := s.provider.CreateCustomer(ctx, email, userID)
	if err != nil {
		return "", false, err
	}

	won, err := s.profiles.LinkBillingCustomer(ctx, userID, customerID)
	if err != nil {
		return "", false, err
	}
	if won {
		return customerID, true, nil
	}

	profile, err = s.profiles.Get(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if profile == nil || profile.BillingCustomerID == "" {
		return "", false, errors.New("billing customer link lost")
	}
	log.Warn().Str("user_id", userID).Str("orphaned_customer", customerID).Msg("Concurrent checkout created a duplicate billing customer")
	return profile.BillingCustomerID, false, nil
}

func (s *Service) profile(ctx context.Context, userID, email string) (*models.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	if err := s.profiles.Ensure(ctx, userID, email); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, userID)
}

// CreatePortal returns the billing portal URL for a linked user, or ErrNoCustomer.
func (s *Service) CreatePortal(ctx context.Context, userID string) (string, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile == nil || profile.BillingCustomerID == "" {
		return "", ErrNoCustomer
	}

	var subIDs []string
	sub, err := s.subs.GetByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub != nil && sub.BillingSubscriptionID != "" {
		subIDs = []string{sub.BillingSubscriptionID}
	}
	return s.provider.CreatePortal(ctx, profile.BillingCustomerID, subIDs)
}

// ApplyEvent folds a subscription webhook into the user's subscription row.
// It reports whether the event changed anything.
func (s *Service) ApplyEvent(ctx context.Context, ev *Event) (bool, error) {
	if !strings.HasPrefix(ev.Type, "subscription.") {
		return false, nil
	}

	userID := ev.UserID
	if userID == "" && ev.CustomerID != "" {
		profile, err := s.profiles.FindByBillingCustomer(ctx, ev.CustomerID)
		if err != nil {
			return false, err
		}
		if profile != nil {
			userID = profile.ID
		}
	}
	if userID == "" {
		log.Warn().Str("event_id", ev.ID).Str("customer_id", ev.CustomerID).Msg("Billing event for unknown user")
		return false, nil
	}

	tier, ok := tierForPrice(s.plans, ev.PriceID)
	if !ok {
		existing, err := s.subs.GetByUser(ctx, userID)
		if err != nil {
			return false, err
		}
		tier = models.TierFree
		if existing != nil {
			tier = existing.Tier
		}
	}

	sub := &models.Subscription{
		UserID:                userID,
		Tier:                  tier,
		Status:                mapStatus(ev.Type, ev.Status),
		BillingCustomerID:     ev.CustomerID,
		BillingSubscriptionID: ev.SubscriptionID,
		CurrentPeriodEnd:      ev.PeriodEnd,
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return false, err
	}
	return true, nil
}

func mapStatus(eventType, status string) models.SubscriptionStatus {
	if eventType == "subscription.canceled" {
		return models.SubscriptionCanceled
	}
	switch status {
	case "active":
		return models.SubscriptionActive
	case "trialing":
		return models.SubscriptionTrialing
	case "past_due":
		return models.SubscriptionPastDue
	default:
		// paused and canceled both end entitlement.
		return models.SubscriptionCanceled
	}
}
