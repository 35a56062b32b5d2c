package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"alawein/internal/pkg/errors"
	"alawein/internal/platform/idempotency"
	"alawein/internal/platform/metrics"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

// Idempotency deduplicates POST requests that carry an Idempotency-Key header.
// Keys are scoped per caller and path. It must run after authentication so
// callers are identified by user rather than address.
func Idempotency(store idempotency.Store) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if r.Method != http.MethodPost || key == "" || store == nil {
				next(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Idempotency key too long", nil)
				return
			}

			scoped := callerKey(r) + ":" + r.URL.Path + ":" + key
			stored, err := store.Reserve(r.Context(), scoped)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				metrics.IdempotencyHits.WithLabelValues("in_flight").Inc()
				errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "A request with this idempotency key is already in progress", nil)
				return
			case err != nil:
				log.Error().Err(err).Msg("Idempotency store unavailable")
				errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeInternal, "Idempotency store unavailable", nil)
				return
			case stored != nil:
				metrics.IdempotencyHits.WithLabelValues("replayed").Inc()
				w.Header().Set("Content-Type", stored.ContentType)
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(stored.Status)
				w.Write(stored.Body)
				return
			}
			metrics.IdempotencyHits.WithLabelValues("reserved").Inc()

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next(rec, r)

			// Detach from the request so a disconnecting client still settles the key.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()

			if rec.status >= http.StatusInternalServerError {
				if err := store.Release(ctx, scoped); err != nil {
					log.Error().Err(err).Msg("Failed to release idempotency key")
				}
				return
			}
			resp := &idempotency.Response{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := store.Complete(ctx, scoped, resp); err != nil {
				log.Error().Err(err).Msg("Failed to store idempotent response")
			}
		}
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
