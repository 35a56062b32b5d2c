package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"alawein/internal/platform/config"
)

// CORS wraps the whole router so preflight requests never reach route matching.
func CORS(cfg config.CORSConfig, next http.Handler) http.Handler {
	methods := strings.Join(orDefault(cfg.AllowedMethods, []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}), ", ")
	headers := strings.Join(orDefault(cfg.AllowedHeaders, []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Client-Info"}), ", ")
	origins := orDefault(cfg.AllowedOrigins, []string{"*"})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := matchOrigin(origins, origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			if allowed != "*" {
				w.Header().Add("Vary", "Origin")
			}
			if cfg.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func matchOrigin(allowed []string, origin string) string {
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
