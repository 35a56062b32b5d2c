package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/config"
)

type captureSender struct {
	sent []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, msg)
	return "msg-1", nil
}

func newService(t *testing.T, sender Sender) *Service {
	t.Helper()
	templates, err := LoadTemplates()
	require.NoError(t, err)
	return NewService(sender, templates, config.EmailConfig{SupportAddress: "support@alawein.dev", SiteURL: "https://alawein.dev"})
}

func TestSend_RendersTemplate(t *testing.T) {
	sender := &captureSender{}
	svc := newService(t, sender)

	id, err := svc.Send(context.Background(), Request{
		To:       "A@B.com",
		Subject:  "Welcome to the SIMCORE waitlist",
		Template: TemplateWaitlistWelcome,
		Data:     map[string]interface{}{"position": 42, "project": "SIMCORE"},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, TemplateWaitlistWelcome, msg.Tag)
	assert.Contains(t, msg.HTML, "#42")
	assert.Contains(t, msg.HTML, "SIMCORE")
	assert.Contains(t, msg.HTML, "support@alawein.dev")
}

func TestSend_EscapesData(t *testing.T) {
	sender := &captureSender{}
	svc := newService(t, sender)

	_, err := svc.Send(context.Background(), Request{
		To: "a@b.com", Subject: "News", Template: TemplateUpdate,
		Data: map[string]interface{}{"body": "<script>alert(1)</script>", "items": []interface{}{"one", "two"}},
	})
	require.NoError(t, err)
	html := sender.sent[0].HTML
	assert.False(t, strings.Contains(html, "<script>"))
	assert.Contains(t, html, "two")
}

func TestSend_Validation(t *testing.T) {
	svc := newService(t, &captureSender{})
	ctx := context.Background()

	cases := []Request{
		{To: "bad", Subject: "s", Template: TemplateInvite},
		{To: "a@b.com", Subject: "", Template: TemplateInvite},
		{To: "a@b.com", Subject: "s", Template: "newsletter"},
	}
	for _, req := range cases {
		_, err := svc.Send(ctx, req)
		assert.True(t, errors.Is(err, apperrors.ErrValidation), "request %+v: %v", req, err)
	}
}

func TestSend_ProviderFailure(t *testing.T) {
	svc := newService(t, &captureSender{err: errors.New("postmark down")})
	_, err := svc.Send(context.Background(), Request{To: "a@b.com", Subject: "s", Template: TemplateInvite})
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrValidation))
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(config.EmailConfig{Provider: "log"})
	require.NoError(t, err)
	_, ok := s.(LogSender)
	assert.True(t, ok)

	_, err = NewSender(config.EmailConfig{Provider: "postmark"})
	assert.Error(t, err, "postmark without token must fail")

	_, err = NewSender(config.EmailConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
