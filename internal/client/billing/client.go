// Package billing reads the caller's subscription and drives the checkout
// function. Subscriptions are written only by the billing webhook, so the
// client never mutates its cached copy.
package billing

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"alawein/internal/client/cache"
	"alawein/internal/client/notify"
	"alawein/internal/client/store"
	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/models"
)

const (
	function = "checkout"
	table    = "subscriptions"
)

type Plan struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Tier     models.Tier `json:"tier"`
	PriceID  string      `json:"priceId"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	Interval string      `json:"interval"`
	Features []string    `json:"features"`
}

type Session struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type Client struct {
	store  store.Client
	toasts *notify.Store
	subs   *cache.Collection[models.Subscription]
	status cache.Status
	guard  cache.Guard
	closed atomic.Bool
}

func New(client store.Client, toasts *notify.Store, ttl time.Duration) *Client {
	if toasts == nil {
		toasts = notify.New()
	}
	return &Client{
		store:  client,
		toasts: toasts,
		subs:   cache.New(func(s models.Subscription) string { return s.UserID }, ttl),
	}
}

// Subscription returns the caller's subscription, or nil when there is none.
func (c *Client) Subscription(ctx context.Context) (*models.Subscription, error) {
	if !c.subs.Fresh() {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	items := c.subs.Items()
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (c *Client) Refresh(ctx context.Context) error {
	token := c.subs.BeginFetch()
	c.status.Start()

	var rows []models.Subscription
	if err := c.store.Select(ctx, table, store.Q().Limit(1), &rows); err != nil {
		c.fail("Failed to load subscription", err)
		return err
	}
	c.subs.ApplyFetch(token, rows)
	c.status.Finish(nil)
	return nil
}

// HasTier reports whether the caller's entitled tier is at least min. A
// lapsed or missing subscription counts as free.
func (c *Client) HasTier(ctx context.Context, min models.Tier) (bool, error) {
	sub, err := c.Subscription(ctx)
	if err != nil {
		return false, err
	}
	return sub.EffectiveTier().AtLeast(min), nil
}

// Plans lists the static catalog. It needs no token.
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	c.status.Start()
	var resp struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.store.Invoke(ctx, function, map[string]string{"action": "get-plans"}, &resp); err != nil {
		c.fail("Failed to load plans", err)
		return nil, err
	}
	if resp.Plans == nil {
		resp.Plans = []Plan{}
	}
	c.status.Finish(nil)
	return resp.Plans, nil
}

// Checkout opens a checkout session for the plan. The subscription cache is
// invalidated so the next read picks up the webhook's write.
func (c *Client) Checkout(ctx context.Context, planID, priceID string) (*Session, error) {
	planID, priceID = strings.TrimSpace(planID), strings.TrimSpace(priceID)
	if planID == "" || priceID == "" {
		err := apperrors.NewValidation("", "planId and priceId are required")
		c.toast(notify.TypeError, "Checkout failed", err.Error())
		return nil, err
	}

	done, err := c.guard.Begin("checkout")
	if err != nil {
		return nil, err
	}
	defer done()
	c.status.Start()

	if store.IdempotencyKey(ctx) == "" {
		ctx = store.NewIdempotencyKey(ctx)
	}
	var s Session
	body := map[string]string{"action": "create-checkout", "planId": planID, "priceId": priceID}
	if err := c.store.Invoke(ctx, function, body, &s); err != nil {
		c.fail("Checkout failed", err)
		return nil, err
	}
	c.subs.Invalidate()
	c.status.Finish(nil)
	return &s, nil
}

// Portal returns the billing portal URL for the caller's linked customer.
func (c *Client) Portal(ctx context.Context) (string, error) {
	c.status.Start()
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.store.Invoke(ctx, function, map[string]string{"action": "create-portal"}, &resp); err != nil {
		c.fail("Could not open billing portal", err)
		return "", err
	}
	c.subs.Invalidate()
	c.status.Finish(nil)
	return resp.URL, nil
}

func (c *Client) Loading() bool { return c.status.Loading() }
func (c *Client) Err() error    { return c.status.Err() }

func (c *Client) Close() {
	c.closed.Store(true)
	c.subs.Close()
}

func (c *Client) fail(title string, err error) {
	c.status.Finish(err)
	if c.closed.Load() {
		return
	}
	log.Warn().Err(err).Str("function", function).Msg(title)
	c.toast(notify.TypeError, title, err.Error())
}

func (c *Client) toast(t notify.Type, title, message string) {
	if !c.closed.Load() {
		c.toasts.Toast(t, title, message)
	}
}
