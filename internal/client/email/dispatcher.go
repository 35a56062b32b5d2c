// Package email sends transactional mail through the send-email function.
package email

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"alawein/internal/client/notify"
	"alawein/internal/client/store"
)

const function = "send-email"

const (
	TemplateWaitlistWelcome = "waitlist-welcome"
	TemplateInvite          = "invite"
	TemplateUpdate          = "update"
)

type Request struct {
	To       string                 `json:"to"`
	Subject  string                 `json:"subject"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Dispatcher reports failures as a toast and a false return. Retries are
// whatever the store client's policy does; callers must treat false as not sent.
type Dispatcher struct {
	store  store.Client
	toasts *notify.Store
}

func NewDispatcher(client store.Client, toasts *notify.Store) *Dispatcher {
	if toasts == nil {
		toasts = notify.New()
	}
	return &Dispatcher{store: client, toasts: toasts}
}

func (d *Dispatcher) Send(ctx context.Context, req Request) bool {
	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := d.store.Invoke(ctx, function, req, &resp); err != nil {
		log.Error().Err(err).Str("template", req.Template).Msg("failed to send email")
		d.toasts.Toast(notify.TypeError, "Failed to send email", err.Error())
		return false
	}
	log.Debug().Str("template", req.Template).Str("id", resp.ID).Msg("email sent")
	return true
}

func (d *Dispatcher) SendWaitlistWelcome(ctx context.Context, to string, position int, project string) bool {
	return d.Send(ctx, Request{
		To:       to,
		Subject:  "Welcome to the " + upper(project) + " waitlist",
		Template: TemplateWaitlistWelcome,
		Data: map[string]interface{}{
			"position": position,
			"project":  project,
		},
	})
}

func (d *Dispatcher) SendInvite(ctx context.Context, to, project, inviteLink string) bool {
	return d.Send(ctx, Request{
		To:       to,
		Subject:  "Your " + upper(project) + " invite is ready",
		Template: TemplateInvite,
		Data: map[string]interface{}{
			"project": project,
			"link":    inviteLink,
		},
	})
}

// SendUpdate mails a product update. Items are rendered as a list under body.
func (d *Dispatcher) SendUpdate(ctx context.Context, to, subject, project, body string, items []string) bool {
	data := map[string]interface{}{"project": project, "title": subject}
	if body != "" {
		data["body"] = body
	}
	if len(items) > 0 {
		data["items"] = items
	}
	return d.Send(ctx, Request{To: to, Subject: subject, Template: TemplateUpdate, Data: data})
}

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}
