// Package waitlist signs visitors up for a product waitlist.
package waitlist

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"alawein/internal/client/email"
	"alawein/internal/client/notify"
	"alawein/internal/client/store"
	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/pkg/validator"
	"alawein/internal/platform/models"
)

const table = "waitlist"

type Signup struct {
	Email     string
	ProjectID string
	ProductID string
	Metadata  map[string]interface{}
}

type Result struct {
	Entry models.WaitlistEntry
	// EmailSent is false when the welcome email failed. The entry exists either way.
	EmailSent bool
}

// Join inserts the entry under a fresh idempotency key, so a double submit
// within the server's window yields one row, then sends the welcome email.
func Join(ctx context.Context, client store.Client, mail *email.Dispatcher, toasts *notify.Store, s Signup) (*Result, error) {
	addr, err := validator.NormalizeEmail(s.Email)
	if err != nil {
		return nil, apperrors.NewValidation("email", err.Error())
	}
	project := strings.ToLower(strings.TrimSpace(s.ProjectID))
	if project == "" {
		return nil, apperrors.NewValidation("project_id", "is required")
	}

	body := map[string]interface{}{"email": addr, "project_id": project}
	if s.ProductID != "" {
		body["product_id"] = s.ProductID
	}
	if len(s.Metadata) > 0 {
		raw, err := json.Marshal(s.Metadata)
		if err != nil {
			return nil, apperrors.NewValidation("metadata", err.Error())
		}
		body["metadata"] = json.RawMessage(raw)
	}

	insertCtx := ctx
	if store.IdempotencyKey(ctx) == "" {
		insertCtx = store.NewIdempotencyKey(ctx)
	}
	var rows []models.WaitlistEntry
	if err := client.Insert(insertCtx, table, body, &rows); err != nil {
		if toasts != nil {
			toasts.Toast(notify.TypeError, "Could not join the waitlist", err.Error())
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperrors.RemoteError{Message: "insert returned no row"}
	}

	res := &Result{Entry: rows[0]}
	if mail != nil {
		res.EmailSent = mail.SendWaitlistWelcome(ctx, res.Entry.Email, int(res.Entry.Position), res.Entry.ProjectID)
	}
	if toasts != nil {
		toasts.Toast(notify.TypeSuccess, "You're on the list", "Your position: #"+strconv.FormatInt(res.Entry.Position, 10))
	}
	return res, nil
}
