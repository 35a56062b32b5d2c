package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"alawein/internal/engine/mailer"
	"alawein/internal/pkg/errors"
	"alawein/internal/platform/metrics"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

type Mailer interface {
	Send(ctx context.Context, req mailer.Request) (string, error)
}

// InviteDispatcher emails waitlist entries that an admin moved to invited.
// An entry is marked sent only after the provider accepted the message, so a
// failed send is retried on the next pass.
type InviteDispatcher struct {
	entries *repositories.WaitlistRepository
	mailer  Mailer
	siteURL string
	batch   int

	// Attempts and Backoff bound the per-message retry within one pass.
	Attempts uint64
	Backoff  time.Duration
}

func NewInviteDispatcher(entries *repositories.WaitlistRepository, m Mailer, siteURL string, batch int) *InviteDispatcher {
	if batch <= 0 {
		batch = 50
	}
	return &InviteDispatcher{
		entries:  entries,
		mailer:   m,
		siteURL:  siteURL,
		batch:    batch,
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// Run dispatches on every tick until ctx is done.
func (d *InviteDispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := d.DispatchOnce(ctx); err != nil {
			log.Error().Err(err).Str("worker", "invites").Msg("Invite dispatch failed")
		} else if n > 0 {
			log.Info().Str("worker", "invites").Int("sent", n).Msg("Invites dispatched")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce sends one batch and reports how many invites went out.
func (d *InviteDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	pending, err := d.entries.PendingInvites(ctx, d.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range pending {
		if err := d.send(ctx, e); err != nil {
			metrics.WaitlistInvites.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("entry_id", e.ID).Str("project_id", e.ProjectID).Msg("Invite email not sent")
			continue
		}
		if err := d.entries.MarkInviteSent(ctx, e.ID); err != nil {
			return sent, err
		}
		metrics.WaitlistInvites.WithLabelValues("sent").Inc()
		sent++
	}
	return sent, ctx.Err()
}

func (d *InviteDispatcher) send(ctx context.Context, e *models.WaitlistEntry) error {
	project := cases.Upper(language.Und).String(e.ProjectID)
	req := mailer.Request{
		To:       e.Email,
		Subject:  "Your " + project + " invite is ready",
		Template: mailer.TemplateInvite,
		Data: map[string]interface{}{
			"project": project,
			"link":    d.siteURL + "/" + e.ProjectID + "?invite=" + e.ID,
		},
	}

	backoff := d.Backoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	attempts := d.Attempts
	if attempts == 0 {
		attempts = 1
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		_, err := d.mailer.Send(ctx, req)
		if err == nil || errors.Is(err, errors.ErrValidation) {
			return err
		}
		return retry.RetryableError(err)
	})
}
