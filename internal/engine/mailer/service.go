package mailer

import (
	"context"
	"strings"

	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/pkg/validator"
	"alawein/internal/platform/config"
)

type Request struct {
	To       string                 `json:"to"`
	Subject  string                 `json:"subject"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

type Service struct {
	sender    Sender
	templates *Templates
	cfg       config.EmailConfig
}

func NewService(sender Sender, templates *Templates, cfg config.EmailConfig) *Service {
	return &Service{sender: sender, templates: templates, cfg: cfg}
}

// Send validates, renders and delivers req. It returns the provider message id.
func (s *Service) Send(ctx context.Context, req Request) (string, error) {
	to, err := validator.NormalizeEmail(req.To)
	if err != nil {
		return "", apperrors.NewValidation("to", err.Error())
	}
	if strings.TrimSpace(req.Subject) == "" {
		return "", apperrors.NewValidation("subject", "is required")
	}
	if !s.templates.Has(req.Template) {
		return "", apperrors.NewValidation("template", "unknown template "+req.Template)
	}

	html, err := s.templates.Render(req.Template, view{
		Subject: req.Subject,
		Support: s.cfg.SupportAddress,
		SiteURL: s.cfg.SiteURL,
		Data:    req.Data,
	})
	if err != nil {
		return "", err
	}

	return s.sender.Send(ctx, Message{To: to, Subject: req.Subject, Tag: req.Template, HTML: html})
}
