package repositories

import (
	"context"
	"database/sql"

	"alawein/internal/platform/models"

	"github.com/google/uuid"
)

const subscriptionColumns = `id, user_id, tier, status, billing_customer_id, billing_subscription_id, current_period_end, created_at, updated_at`

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUser returns nil, nil for users that never subscribed.
func (r *SubscriptionRepository) GetByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var s models.Subscription
	var tier, status string
	var periodEnd sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID).
		Scan(&s.ID, &s.UserID, &tier, &status, &s.BillingCustomerID, &s.BillingSubscriptionID, &periodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.Tier = models.Tier(tier)
	s.Status = models.SubscriptionStatus(status)
	s.CurrentPeriodEnd = nullInt64Ptr(periodEnd)
	return &s, nil
}

// Upsert writes the user's single subscription row. Only the billing webhook calls it.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *models.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	ts := now()
	if s.CreatedAt == 0 {
		s.CreatedAt = ts
	}
	s.UpdatedAt = ts

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, tier, status, billing_customer_id, billing_subscription_id, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			billing_customer_id = excluded.billing_customer_id,
			billing_subscription_id = excluded.billing_subscription_id,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`, s.ID, s.UserID, string(s.Tier), string(s.Status), s.BillingCustomerID, s.BillingSubscriptionID, s.CurrentPeriodEnd, s.CreatedAt, s.UpdatedAt)
	return err
}
