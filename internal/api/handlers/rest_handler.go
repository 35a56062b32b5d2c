package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "alawein/internal/api/context"
	"alawein/internal/api/middleware"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/auth"
	"alawein/internal/platform/repositories"
)

const maxBodyBytes = 1 << 20

// restRequest is one call against /rest/v1/:table after query parsing.
type restRequest struct {
	*http.Request
	claims *auth.Claims
	opts   repositories.ListOptions
}

// filter returns the eq value for column, if the caller sent one.
func (q *restRequest) filter(column string) (string, bool) {
	for _, f := range q.opts.Filters {
		if f.Column == column {
			return f.Value, true
		}
	}
	return "", false
}

func (q *restRequest) requireFilter(column string) (string, error) {
	v, ok := q.filter(column)
	if !ok || v == "" {
		return "", errors.NewValidation(column, "an eq filter is required")
	}
	return v, nil
}

func (q *restRequest) user() (string, error) {
	if q.claims == nil {
		return "", &errors.AuthError{}
	}
	return q.claims.UserID(), nil
}

func (q *restRequest) decode(dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(q.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidation("", "Invalid request body: "+err.Error())
	}
	return nil
}

type tableFunc func(q *restRequest) (interface{}, error)

// table maps the four verbs onto a resource. A nil verb answers 405.
type table struct {
	get, post, patch, del tableFunc
}

// RestHandler serves the row-level /rest/v1 surface. Ownership rules live in
// each table's functions, not in the database.
type RestHandler struct {
	tables map[string]table
}

func NewRestHandler(keys *APIKeyHandler, orgs *OrgHandler, waitlist *WaitlistHandler, account *AccountHandler) *RestHandler {
	return &RestHandler{tables: map[string]table{
		"api_keys":             {get: keys.list, post: keys.create, patch: keys.update, del: keys.delete},
		"organizations":        {get: orgs.list, post: orgs.create, patch: orgs.update, del: orgs.delete},
		"organization_members": {get: orgs.listMembers, patch: orgs.updateMember, del: orgs.removeMember},
		"waitlist":             {get: waitlist.list, post: waitlist.join, patch: waitlist.updateStatus},
		"subscriptions":        {get: account.subscription},
		"profiles":             {get: account.profile, patch: account.updateProfile},
		"scan_results":         {get: account.scans},
		"research_results":     {get: account.research},
	}}
}

func (h *RestHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	name := ps.ByName("table")

	t, ok := h.tables[name]
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown table "+name, nil)
		return
	}

	var fn tableFunc
	status := http.StatusOK
	switch r.Method {
	case http.MethodGet:
		fn = t.get
	case http.MethodPost:
		fn, status = t.post, http.StatusCreated
	case http.MethodPatch:
		fn = t.patch
	case http.MethodDelete:
		fn = t.del
	}
	if fn == nil {
		errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed, r.Method+" is not allowed on "+name, nil)
		return
	}

	opts, err := parseQuery(r)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	rows, err := fn(&restRequest{Request: r, claims: middleware.ClaimsFrom(r.Context()), opts: opts})
	if err != nil {
		err = mapRepoError(err)
		if s, _ := errors.Status(err); s == http.StatusInternalServerError {
			log.Error().Err(err).Str("table", name).Str("method", r.Method).Msg("Table request failed")
		}
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, status, rows)
}

// parseQuery reads PostgREST-style col=eq.value, order=col.asc|desc and limit=n.
func parseQuery(r *http.Request) (repositories.ListOptions, error) {
	var opts repositories.ListOptions
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch key {
		case "select":
			// Column projection is not supported; full rows are returned.
		case "order":
			col, dir, _ := strings.Cut(value, ".")
			switch dir {
			case "", "asc":
			case "desc":
				opts.Desc = true
			default:
				return opts, errors.NewValidation("order", "direction must be asc or desc")
			}
			opts.OrderBy = col
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return opts, errors.NewValidation("limit", "must be a non-negative integer")
			}
			opts.Limit = n
		default:
			v, ok := strings.CutPrefix(value, "eq.")
			if !ok {
				return opts, errors.NewValidation(key, "only eq filters are supported")
			}
			opts.Filters = append(opts.Filters, repositories.Filter{Column: key, Value: v})
		}
	}
	return opts, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUnknownColumn):
		return errors.NewValidation("", err.Error())
	case errors.Is(err, repositories.ErrDuplicate):
		return errors.Conflict(err.Error())
	case errors.Is(err, repositories.ErrInvalidTransition):
		return errors.NewValidation("status", err.Error())
	}
	return err
}

// one wraps a single row the way PostgREST returns representations: a matched
// row becomes a one-element array, no match an empty one.
func one[T any](row *T) []*T {
	if row == nil {
		return []*T{}
	}
	return []*T{row}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
