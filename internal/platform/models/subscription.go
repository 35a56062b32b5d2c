package models

type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:       0,
	TierStarter:    1,
	TierPro:        2,
	TierEnterprise: 3,
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t grants everything min grants. Unknown tiers rank below free.
func (t Tier) AtLeast(min Tier) bool {
	have, ok := tierRank[t]
	if !ok {
		return false
	}
	return have >= tierRank[min]
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionTrialing SubscriptionStatus = "trialing"
)

// Entitled reports whether the status still grants the tier's features.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

type Subscription struct {
	ID                    string             `json:"id"`
	UserID                string             `json:"user_id"`
	Tier                  Tier               `json:"tier"`
	Status                SubscriptionStatus `json:"status"`
	BillingCustomerID     string             `json:"billing_customer_id"`
	BillingSubscriptionID string             `json:"billing_subscription_id"`
	CurrentPeriodEnd      *int64             `json:"current_period_end,omitempty"`
	CreatedAt             int64              `json:"created_at"`
	UpdatedAt             int64              `json:"updated_at"`
}

// EffectiveTier is the tier the user can use right now.
func (s *Subscription) EffectiveTier() Tier {
	if s == nil || !s.Status.Entitled() {
		return TierFree
	}
	return s.Tier
}
