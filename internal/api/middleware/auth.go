package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	apiContext "alawein/internal/api/context"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

var errUnauthorized = &errors.AuthError{}

type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	hasher   *auth.KeyHasher
	keys     *repositories.APIKeyRepository
	profiles *repositories.ProfileRepository

	// ensured remembers users whose profile row already exists.
	ensured sync.Map
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, hasher *auth.KeyHasher, keys *repositories.APIKeyRepository, profiles *repositories.ProfileRepository) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, hasher: hasher, keys: keys, profiles: profiles}
}

// Authenticate resolves the bearer credential on r. It accepts identity provider
// tokens and this service's own API keys.
func (m *AuthMiddleware) Authenticate(r *http.Request) (*auth.Claims, error) {
	token, ok := bearer(r)
	if !ok {
		return nil, errUnauthorized
	}

	var claims *auth.Claims
	if m.hasher != nil && m.hasher.Looks(token) {
		key, err := m.lookupKey(r.Context(), token)
		if err != nil {
			return nil, err
		}
		claims = &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: key.UserID}}
	} else {
		c, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			return nil, errUnauthorized
		}
		claims = c
	}

	m.ensureProfile(r.Context(), claims)
	return claims, nil
}

func (m *AuthMiddleware) lookupKey(ctx context.Context, raw string) (*models.APIKey, error) {
	hash, err := m.hasher.Hash(raw)
	if err != nil {
		return nil, err
	}
	key, err := m.keys.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if key == nil || key.Revoked() {
		return nil, errUnauthorized
	}
	if key.ExpiresAt != nil && *key.ExpiresAt <= time.Now().Unix() {
		return nil, errUnauthorized
	}
	if err := m.keys.UpdateLastUsed(ctx, key.ID); err != nil {
		log.Warn().Err(err).Str("key_id", key.ID).Msg("Failed to record API key use")
	}
	return key, nil
}

func (m *AuthMiddleware) ensureProfile(ctx context.Context, claims *auth.Claims) {
	if m.profiles == nil {
		return
	}
	uid := claims.UserID()
	if _, done := m.ensured.Load(uid); done {
		return
	}
	if err := m.profiles.Ensure(ctx, uid, claims.Email); err != nil {
		log.Error().Err(err).Str("user_id", uid).Msg("Failed to create profile")
		return
	}
	m.ensured.Store(uid, struct{}{})
}

// Handle rejects requests without valid credentials.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), apiContext.Claims, claims)))
	}
}

// Optional lets anonymous requests through but still rejects a bad credential.
func (m *AuthMiddleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return m.optional(next, writeAuthError, false)
}

// Function is Optional for edge functions, which answer with a bare
// {"error": ...} body.
func (m *AuthMiddleware) Function(next http.HandlerFunc) http.HandlerFunc {
	return m.optional(next, writeFunctionAuthError, false)
}

// Lenient treats a rejected credential as no credential. The handler decides
// which of its actions need a caller.
func (m *AuthMiddleware) Lenient(next http.HandlerFunc) http.HandlerFunc {
	return m.optional(next, writeFunctionAuthError, true)
}

func (m *AuthMiddleware) optional(next http.HandlerFunc, reject func(http.ResponseWriter, error), lenient bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := bearer(r); !ok {
			next(w, r)
			return
		}
		claims, err := m.Authenticate(r)
		if err != nil {
			if lenient && errors.Is(err, errors.ErrUnauthorized) {
				log.Debug().Str("path", r.URL.Path).Msg("Ignoring rejected credential")
				next(w, r)
				return
			}
			reject(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), apiContext.Claims, claims)))
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, errors.ErrUnauthorized) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired credentials", nil)
		return
	}
	log.Error().Err(err).Msg("Authentication lookup failed")
	errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal error", nil)
}

func writeFunctionAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, errors.ErrUnauthorized) {
		errors.WriteFunctionError(w, http.StatusUnauthorized, (&errors.AuthError{}).Error())
		return
	}
	log.Error().Err(err).Msg("Authentication lookup failed")
	errors.WriteFunctionError(w, http.StatusInternalServerError, "Internal error")
}

func bearer(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// ClaimsFrom returns the authenticated caller, or nil for anonymous requests.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(apiContext.Claims).(*auth.Claims)
	return claims
}
