package handlers

import (
	"context"
	"net/http"
	"time"

	"alawein/internal/platform/database"
)

// Pinger is satisfied by the Redis idempotency store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    *database.DB
	redis Pinger
}

// NewHealthHandler takes a nil redis when the in-memory idempotency store is in use.
func NewHealthHandler(db *database.DB, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	if err := h.db.Health(r.Context()); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		checks["database"] = "healthy"
	}

	if h.redis == nil {
		checks["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.redis.Ping(ctx)
		cancel()
		if err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			status = "degraded"
		} else {
			checks["redis"] = "healthy"
		}
	}

	response := struct {
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}
