package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
	"github.com/rs/zerolog/log"

	"alawein/internal/platform/config"
)

type Message struct {
	To      string
	Subject string
	Tag     string
	HTML    string
}

// Sender delivers a rendered message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

var ErrFailedToSend = errors.New("failed to send email")

type PostmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

func NewPostmarkSender(cfg config.EmailConfig) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, errors.New("postmark server token is required")
	}
	if cfg.FromAddress == "" {
		return nil, errors.New("email from address is required")
	}
	from := cfg.FromAddress
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
	return &PostmarkSender{
		client:  postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    from,
		replyTo: cfg.SupportAddress,
	}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) (string, error) {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		ReplyTo:    s.replyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TrackOpens: true,
	})
	if err != nil {
		return "", errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return "", errors.Join(ErrFailedToSend, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return resp.MessageID, nil
}

// LogSender writes messages to the log instead of delivering them. Used in development.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) (string, error) {
	id := uuid.New().String()
	log.Info().
		Str("component", "mailer").
		Str("message_id", id).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("tag", msg.Tag).
		Int("html_bytes", len(msg.HTML)).
		Msg("Email not delivered (log provider)")
	return id, nil
}

func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "postmark":
		return NewPostmarkSender(cfg)
	case "log", "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
