package billing

import "alawein/internal/platform/models"

type Plan struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Tier        models.Tier `json:"tier"`
	PriceID     string      `json:"priceId"`
	AmountCents int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Interval    string      `json:"interval"`
	Features    []string    `json:"features"`
}

// Catalog is the static plan list. Price ids come from configuration since
// they differ between sandbox and production billing accounts.
func Catalog(priceIDs map[string]string) []Plan {
	return []Plan{
		{
			ID: "free", Name: "Free", Tier: models.TierFree, Currency: "USD", Interval: "month",
			Features: []string{"1 project", "Community support", "Basic scanner"},
		},
		{
			ID: "starter", Name: "Starter", Tier: models.TierStarter, PriceID: priceIDs["starter"],
			AmountCents: 900, Currency: "USD", Interval: "month",
			Features: []string{"3 projects", "Email support", "Scanner and research"},
		},
		{
			ID: "pro", Name: "Pro", Tier: models.TierPro, PriceID: priceIDs["pro"],
			AmountCents: 2900, Currency: "USD", Interval: "month",
			Features: []string{"Unlimited projects", "Priority support", "API access", "Organizations"},
		},
		{
			ID: "enterprise", Name: "Enterprise", Tier: models.TierEnterprise, PriceID: priceIDs["enterprise"],
			AmountCents: 9900, Currency: "USD", Interval: "month",
			Features: []string{"Everything in Pro", "SSO", "Dedicated support", "Custom limits"},
		},
	}
}

func findPlan(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// tierForPrice maps a provider price id back to the tier it sells.
func tierForPrice(plans []Plan, priceID string) (models.Tier, bool) {
	if priceID == "" {
		return "", false
	}
	for _, p := range plans {
		if p.PriceID == priceID {
			return p.Tier, true
		}
	}
	return "", false
}
