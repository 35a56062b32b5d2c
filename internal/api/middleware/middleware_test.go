package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apiContext "alawein/internal/api/context"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/auth/authtest"
	"alawein/internal/platform/config"
	"alawein/internal/platform/database"
	"alawein/internal/platform/idempotency"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "test"}

func setupAuth(t *testing.T) (*AuthMiddleware, *auth.KeyHasher, *repositories.APIKeyRepository) {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens := auth.NewTokenService(testJWT)
	hasher := auth.NewKeyHasher("pepper", "")
	keys := repositories.NewAPIKeyRepository(db.DB)
	return NewAuthMiddleware(tokens, hasher, keys, repositories.NewProfileRepository(db.DB)), hasher, keys
}

func TestAuthMiddleware(t *testing.T) {
	m, hasher, keys := setupAuth(t)

	raw, hash, _ := hasher.Generate()
	if err := keys.Create(context.Background(), &models.APIKey{ID: "k1", UserID: "key-user", Name: "ci", KeyHash: hash, KeyPrefix: hasher.Prefix()}); err != nil {
		t.Fatal(err)
	}
	revokedRaw, revokedHash, _ := hasher.Generate()
	if err := keys.Create(context.Background(), &models.APIKey{ID: "k2", UserID: "key-user", Name: "old", KeyHash: revokedHash, KeyPrefix: hasher.Prefix(), Status: models.APIKeyRevoked}); err != nil {
		t.Fatal(err)
	}
	jwtToken := authtest.Token(t, testJWT, "jwt-user", "a@b.com", "")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid jwt", "Bearer " + jwtToken, http.StatusOK, "jwt-user"},
		{"valid api key", "Bearer " + raw, http.StatusOK, "key-user"},
		{"revoked api key", "Bearer " + revokedRaw, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			var gotUser string
			m.Handle(func(w http.ResponseWriter, r *http.Request) {
				gotUser = r.Context().Value(apiContext.Claims).(*auth.Claims).UserID()
				w.WriteHeader(http.StatusOK)
			})(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("Expected user %q, got %q", tt.wantUser, gotUser)
			}
		})
	}

	key, _ := keys.GetForUser(context.Background(), "k1", "key-user")
	if key.LastUsedAt == nil {
		t.Error("Expected last_used_at to be recorded")
	}
}

func TestAuthMiddleware_Optional(t *testing.T) {
	m, _, _ := setupAuth(t)

	called := false
	h := m.Optional(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if ClaimsFrom(r.Context()) != nil {
			t.Error("Expected anonymous request")
		}
	})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if !called {
		t.Error("Anonymous request should pass")
	}

	called = false
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rr = httptest.NewRecorder()
	h(rr, req)
	if called || rr.Code != http.StatusUnauthorized {
		t.Errorf("Bad credential should be rejected, got %d", rr.Code)
	}
}

func TestAuthMiddleware_FunctionRoutes(t *testing.T) {
	m, _, _ := setupAuth(t)
	valid := authtest.Token(t, testJWT, "jwt-user", "a@b.com", "")

	tests := []struct {
		name       string
		mw         func(http.HandlerFunc) http.HandlerFunc
		header     string
		wantCalled bool
		wantUser   string
		wantBody   string
	}{
		{"function anonymous", m.Function, "", true, "", ""},
		{"function valid token", m.Function, "Bearer " + valid, true, "jwt-user", ""},
		{"function stale token", m.Function, "Bearer broken", false, "", `{"error":"Unauthorized"}`},
		{"lenient stale token", m.Lenient, "Bearer broken", true, "", ""},
		{"lenient valid token", m.Lenient, "Bearer " + valid, true, "jwt-user", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/functions/v1/checkout", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			called := false
			var gotUser string
			tt.mw(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if c := ClaimsFrom(r.Context()); c != nil {
					gotUser = c.UserID()
				}
			})(rr, req)

			if called != tt.wantCalled {
				t.Fatalf("called = %v, want %v", called, tt.wantCalled)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
			if tt.wantBody != "" {
				if rr.Code != http.StatusUnauthorized {
					t.Errorf("status = %d, want 401", rr.Code)
				}
				if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
					t.Errorf("body = %s, want %s", got, tt.wantBody)
				}
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the router")
	})
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"https://alawein.dev"}}, inner)

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/checkout", nil)
	req.Header.Set("Origin", "https://alawein.dev")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://alawein.dev" {
		t.Errorf("Unexpected allow origin %q", got)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Errorf("Authorization should be an allowed header")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{FunctionsPerMinute: 1, Burst: 2})

	h := rl.Limit(LimitFunctions)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h(rr, req)
		codes = append(codes, rr.Code)
	}
	if fmt.Sprint(codes) != "[200 200 429]" {
		t.Errorf("Expected burst of 2 then 429, got %v", codes)
	}

	// Another caller has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 for a different caller, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware(t *testing.T) {
	store := idempotency.NewMemoryStore(time.Minute)
	var calls int32

	h := Idempotency(store)(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `[{"n":%d}]`, n)
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/rest/v1/api_keys", strings.NewReader(`{}`))
		req.RemoteAddr = "10.0.0.1:1"
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		rr := httptest.NewRecorder()
		h(rr, req)
		return rr
	}

	first := send("abc")
	second := send("abc")
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("Handler should run once for a repeated key, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("Expected replay of %q, got %d %q", first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get(HeaderReplayed) != "true" {
		t.Error("Expected replay header")
	}

	send("")
	send("")
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Requests without a key are never deduplicated, calls = %d", calls)
	}
}

func TestIdempotencyMiddleware_InFlightAndFailure(t *testing.T) {
	store := idempotency.NewMemoryStore(time.Minute)
	if _, err := store.Reserve(context.Background(), "ip:10.0.0.1:/x:busy"); err != nil {
		t.Fatal(err)
	}

	failing := Idempotency(store)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set(HeaderIdempotencyKey, "busy")
	rr := httptest.NewRecorder()
	failing(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 for in-flight key, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set(HeaderIdempotencyKey, "retry-me")
	failing(httptest.NewRecorder(), req)

	// A failed first attempt releases the key.
	resp, err := store.Reserve(context.Background(), "ip:10.0.0.1:/x:retry-me")
	if err != nil || resp != nil {
		t.Errorf("Expected released key, got %+v, %v", resp, err)
	}
}
