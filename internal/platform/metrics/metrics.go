package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route and status class.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"route", "method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alawein_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// FunctionCalls tracks edge function invocations by action and outcome.
	FunctionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_function_calls_total",
		Help: "Total number of edge function invocations",
	}, []string{"function", "action", "outcome"})

	IdempotencyHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_idempotency_total",
		Help: "Idempotency key outcomes (reserved, replayed, in_flight)",
	}, []string{"result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"class"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_emails_total",
		Help: "Transactional emails by template and outcome",
	}, []string{"template", "outcome"})

	BillingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_billing_webhook_events_total",
		Help: "Billing webhook events by type and outcome",
	}, []string{"event", "outcome"})

	// WaitlistInvites counts invite emails dispatched by the worker.
	WaitlistInvites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alawein_waitlist_invites_total",
		Help: "Waitlist invite emails dispatched by the worker",
	}, []string{"outcome"})
)
