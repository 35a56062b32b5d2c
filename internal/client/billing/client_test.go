package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alawein/internal/client/notify"
	"alawein/internal/client/store/storetest"
	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/models"
)

func subscriptionStore(sub *models.Subscription) *storetest.Fake {
	return &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		if sub == nil {
			return []models.Subscription{}, nil
		}
		return []models.Subscription{*sub}, nil
	}}
}

func TestClient_HasTier(t *testing.T) {
	tests := []struct {
		name string
		sub  *models.Subscription
		min  models.Tier
		want bool
	}{
		{"no subscription is free", nil, models.TierFree, true},
		{"no subscription lacks starter", nil, models.TierStarter, false},
		{"active pro covers starter", &models.Subscription{UserID: "u", Tier: models.TierPro, Status: models.SubscriptionActive}, models.TierStarter, true},
		{"active pro lacks enterprise", &models.Subscription{UserID: "u", Tier: models.TierPro, Status: models.SubscriptionActive}, models.TierEnterprise, false},
		{"trialing counts", &models.Subscription{UserID: "u", Tier: models.TierPro, Status: models.SubscriptionTrialing}, models.TierPro, true},
		{"canceled falls back to free", &models.Subscription{UserID: "u", Tier: models.TierPro, Status: models.SubscriptionCanceled}, models.TierStarter, false},
		{"past due falls back to free", &models.Subscription{UserID: "u", Tier: models.TierEnterprise, Status: models.SubscriptionPastDue}, models.TierPro, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(subscriptionStore(tt.sub), notify.New(), 0)
			got, err := c.HasTier(context.Background(), tt.min)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SubscriptionIsCached(t *testing.T) {
	fake := subscriptionStore(&models.Subscription{UserID: "u", Tier: models.TierStarter, Status: models.SubscriptionActive})
	c := New(fake, notify.New(), 0)

	for i := 0; i < 3; i++ {
		sub, err := c.Subscription(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.TierStarter, sub.Tier)
	}
	assert.Len(t, fake.Calls(), 1)
}

func TestClient_Plans(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		return map[string]interface{}{"plans": []map[string]interface{}{
			{"id": "pro", "name": "Pro", "tier": "pro", "priceId": "price_123", "amount": 2900, "currency": "USD", "interval": "month"},
		}}, nil
	}}
	c := New(fake, notify.New(), 0)

	plans, err := c.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "price_123", plans[0].PriceID)
	assert.Equal(t, int64(2900), plans[0].Amount)

	call := fake.Calls()[0]
	assert.Equal(t, "checkout", call.Table)
	assert.Equal(t, map[string]string{"action": "get-plans"}, call.Body)
}

func TestClient_Checkout(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		return map[string]string{"url": "https://pay.example/checkout/txn_1", "sessionId": "txn_1"}, nil
	}}
	c := New(fake, notify.New(), 0)

	s, err := c.Checkout(context.Background(), "pro", "price_123")
	require.NoError(t, err)
	assert.Equal(t, "txn_1", s.SessionID)
	assert.Equal(t, "https://pay.example/checkout/txn_1", s.URL)

	call := fake.Calls()[0]
	assert.NotEmpty(t, call.IdempotencyKey)
	assert.Equal(t, map[string]string{"action": "create-checkout", "planId": "pro", "priceId": "price_123"}, call.Body)
}

func TestClient_CheckoutValidatesLocally(t *testing.T) {
	fake := &storetest.Fake{}
	c := New(fake, notify.New(), 0)

	_, err := c.Checkout(context.Background(), "pro", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, fake.Calls())
}

func TestClient_PortalWithoutCustomer(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		return nil, &apperrors.ValidationError{Message: "No billing account found"}
	}}
	toasts := notify.New()
	c := New(fake, toasts, 0)

	_, err := c.Portal(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, c.Loading())
	assert.Equal(t, 1, toasts.UnreadCount())
}

func TestClient_UnauthorizedCheckout(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		return nil, &apperrors.AuthError{}
	}}
	c := New(fake, notify.New(), 0)

	_, err := c.Checkout(context.Background(), "pro", "price_123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, err, c.Err())
}

func TestClient_FailedPlansKeepsRefreshLoading(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		if c.Method == "select" {
			close(entered)
			<-release
			return []models.Subscription{}, nil
		}
		return nil, &apperrors.RemoteError{Status: 500, Message: "catalog unavailable"}
	}}
	c := New(fake, notify.New(), 0)

	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(context.Background()) }()
	<-entered
	require.True(t, c.Loading())

	_, err := c.Plans(context.Background())
	require.Error(t, err)
	assert.True(t, c.Loading(), "refresh is still in flight")
	assert.ErrorIs(t, c.Err(), apperrors.ErrRemote)

	close(release)
	require.NoError(t, <-refreshed)
	assert.False(t, c.Loading())
	assert.NoError(t, c.Err())
}
