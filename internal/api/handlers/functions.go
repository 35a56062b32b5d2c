package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"alawein/internal/pkg/errors"
	"alawein/internal/platform/metrics"
)

// Edge functions answer with bare {"error": message} bodies rather than the
// REST error envelope.

func decodeFunctionBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.NewValidation("", "Invalid request body")
	}
	return nil
}

func functionOK(w http.ResponseWriter, function, action string, v interface{}) {
	metrics.FunctionCalls.WithLabelValues(function, action, "ok").Inc()
	writeJSON(w, http.StatusOK, v)
}

// functionFailed maps err to a status. Provider and store failures surface
// their message with a 500, which is what callers display.
func functionFailed(w http.ResponseWriter, function, action string, err error) {
	status, _ := errors.Status(err)
	outcome := "client_error"
	if status == http.StatusInternalServerError {
		outcome = "error"
		log.Error().Err(err).Str("function", function).Str("action", action).Msg("Function call failed")
	}
	metrics.FunctionCalls.WithLabelValues(function, action, outcome).Inc()
	errors.WriteFunctionError(w, status, err.Error())
}
