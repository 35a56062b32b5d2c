package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "alawein/internal/api/context"
	"alawein/internal/api/handlers"
	"alawein/internal/api/middleware"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/config"
	"alawein/internal/platform/idempotency"
)

type Dependencies struct {
	RestHandler           *handlers.RestHandler
	CheckoutHandler       *handlers.CheckoutHandler
	ScannerHandler        *handlers.ScannerHandler
	EmailHandler          *handlers.EmailHandler
	BillingWebhookHandler *handlers.BillingWebhookHandler
	HealthHandler         *handlers.HealthHandler
	MetricsHandler        *handlers.MetricsHandler
	AuditHandler          *handlers.AuditHandler
	AuthMiddleware        *middleware.AuthMiddleware
	RateLimiter           *middleware.RateLimiter
	Idempotency           idempotency.Store
	CORS                  config.CORSConfig
}

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	authMid := deps.AuthMiddleware
	limiter := deps.RateLimiter
	idem := middleware.Idempotency(deps.Idempotency)

	// Remote store
	rest := chain(deps.RestHandler.Serve, middleware.Instrument("rest"), authMid.Optional, limiter.LimitByMethod, idem)
	router.GET("/rest/v1/:table", rest)
	router.POST("/rest/v1/:table", rest)
	router.PATCH("/rest/v1/:table", rest)
	router.DELETE("/rest/v1/:table", rest)

	// Edge functions
	function := func(name string, h http.HandlerFunc, authenticate func(http.HandlerFunc) http.HandlerFunc) {
		router.POST("/functions/v1/"+name,
			chain(h, middleware.Instrument("functions/"+name), authenticate, limiter.Limit(middleware.LimitFunctions), idem))
	}
	// get-plans answers callers holding a stale token; the other actions check claims themselves.
	function("checkout", deps.CheckoutHandler.Handle, authMid.Lenient)
	function("scanner", deps.ScannerHandler.Handle, authMid.Function)
	function("send-email", deps.EmailHandler.Handle, authMid.Function)

	// Signed by the billing provider; no caller credentials.
	router.POST("/functions/v1/billing-webhook",
		chain(deps.BillingWebhookHandler.Handle, middleware.Instrument("functions/billing-webhook")))

	// Operations
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))
	router.GET("/api/v1/audit-logs",
		chain(deps.AuditHandler.List, middleware.Instrument("audit-logs"), authMid.Handle, requireAdmin))

	return middleware.CORS(deps.CORS, router)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFrom(r.Context())
		if claims == nil || !claims.IsAdmin() {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
			return
		}
		next(w, r)
	}
}
