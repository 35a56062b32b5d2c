package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"alawein/internal/platform/config"
)

type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	// CustomData is copied by the provider onto the resulting subscription.
	CustomData map[string]string
}

type Session struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// Event is a provider webhook reduced to what the subscriptions table needs.
type Event struct {
	ID             string
	Type           string
	SubscriptionID string
	CustomerID     string
	UserID         string
	Status         string
	PriceID        string
	PeriodEnd      *int64
}

// Provider is the external billing system.
type Provider interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error)
	CreatePortal(ctx context.Context, customerID string, subscriptionIDs []string) (string, error)
	// ParseWebhook verifies r's signature over body and decodes the event.
	ParseWebhook(r *http.Request, body []byte) (*Event, error)
}

// ErrInvalidSignature is returned by ParseWebhook for unsigned or forged payloads.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// MemoryProvider is an in-process provider for local development and tests.
// Its webhooks are signed with Sign using the configured secret.
type MemoryProvider struct {
	mu        sync.Mutex
	Secret    string
	Customers map[string]string // customer id -> email
	Sessions  []CheckoutRequest
	// Fail makes every call return this error when set.
	Fail error
	seq  int
}

func NewMemoryProvider(secret string) *MemoryProvider {
	return &MemoryProvider{Secret: secret, Customers: map[string]string{}}
}

func (p *MemoryProvider) CreateCustomer(_ context.Context, email, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail != nil {
		return "", p.Fail
	}
	p.seq++
	id := fmt.Sprintf("ctm_%04d", p.seq)
	p.Customers[id] = email
	return id, nil
}

func (p *MemoryProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail != nil {
		return nil, p.Fail
	}
	if _, ok := p.Customers[req.CustomerID]; !ok {
		return nil, fmt.Errorf("unknown customer %s", req.CustomerID)
	}
	p.seq++
	p.Sessions = append(p.Sessions, req)
	id := fmt.Sprintf("txn_%04d", p.seq)
	return &Session{URL: "https://checkout.local/" + id, SessionID: id}, nil
}

func (p *MemoryProvider) CreatePortal(_ context.Context, customerID string, _ []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail != nil {
		return "", p.Fail
	}
	return "https://portal.local/" + customerID, nil
}

func (p *MemoryProvider) CustomerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Customers)
}

// ParseWebhook accepts the Paddle payload shape and signature scheme.
func (p *MemoryProvider) ParseWebhook(r *http.Request, body []byte) (*Event, error) {
	if !verifySignature(p.Secret, r.Header.Get(SignatureHeader), body, time.Now()) {
		return nil, ErrInvalidSignature
	}
	return decodeEvent(body)
}

type webhookPayload struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID         string                 `json:"id"`
		Status     string                 `json:"status"`
		CustomerID string                 `json:"customer_id"`
		CustomData map[string]interface{} `json:"custom_data"`
		Items      []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"items"`
		CurrentBillingPeriod *struct {
			EndsAt string `json:"ends_at"`
		} `json:"current_billing_period"`
	} `json:"data"`
}

func decodeEvent(body []byte) (*Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	ev := &Event{
		ID:             payload.EventID,
		Type:           payload.EventType,
		SubscriptionID: payload.Data.ID,
		CustomerID:     payload.Data.CustomerID,
		Status:         payload.Data.Status,
	}
	if uid, ok := payload.Data.CustomData["user_id"].(string); ok {
		ev.UserID = uid
	}
	if len(payload.Data.Items) > 0 {
		ev.PriceID = payload.Data.Items[0].Price.ID
	}
	if bp := payload.Data.CurrentBillingPeriod; bp != nil && bp.EndsAt != "" {
		if ts, err := parseTimestamp(bp.EndsAt); err == nil {
			ev.PeriodEnd = &ts
		}
	}
	return ev, nil
}

// NewProvider selects the billing backend named in cfg.
func NewProvider(cfg config.BillingConfig) (Provider, error) {
	switch cfg.Provider {
	case "paddle", "":
		return NewPaddleProvider(cfg)
	case "memory":
		return NewMemoryProvider(cfg.WebhookSecret), nil
	default:
		return nil, fmt.Errorf("unknown billing provider %q", cfg.Provider)
	}
}
