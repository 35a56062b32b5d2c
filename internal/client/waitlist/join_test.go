package waitlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alawein/internal/client/email"
	"alawein/internal/client/notify"
	"alawein/internal/client/store/storetest"
	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/models"
)

func TestJoin_InsertsThenWelcomes(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		if c.Method == "insert" {
			return []models.WaitlistEntry{{ID: "w1", Email: "a@b.com", ProjectID: "simcore", Position: 42, Status: models.WaitlistWaiting}}, nil
		}
		return map[string]interface{}{"success": true, "id": "m1"}, nil
	}}
	toasts := notify.New()

	res, err := Join(context.Background(), fake, email.NewDispatcher(fake, toasts), toasts, Signup{
		Email:     " A@B.com ",
		ProjectID: "SimCore",
		Metadata:  map[string]interface{}{"source": "landing"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Entry.Position)
	assert.True(t, res.EmailSent)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	insert := calls[0]
	assert.Equal(t, "waitlist", insert.Table)
	assert.NotEmpty(t, insert.IdempotencyKey)
	body := insert.Body.(map[string]interface{})
	assert.Equal(t, "a@b.com", body["email"])
	assert.Equal(t, "simcore", body["project_id"])

	mail := calls[1]
	assert.Equal(t, "send-email", mail.Table)
	assert.Empty(t, mail.IdempotencyKey)
	req := mail.Body.(email.Request)
	assert.Contains(t, req.Subject, "SIMCORE")
	assert.Equal(t, 42, req.Data["position"])
}

func TestJoin_EmailFailureKeepsEntry(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		if c.Method == "insert" {
			return []models.WaitlistEntry{{ID: "w1", Email: "a@b.com", ProjectID: "qmlab", Position: 1}}, nil
		}
		return nil, &apperrors.RemoteError{Status: 500, Message: "provider down"}
	}}
	toasts := notify.New()

	res, err := Join(context.Background(), fake, email.NewDispatcher(fake, toasts), toasts, Signup{Email: "a@b.com", ProjectID: "qmlab"})
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.Equal(t, "w1", res.Entry.ID)
}

func TestJoin_Duplicate(t *testing.T) {
	fake := &storetest.Fake{Handler: func(_ context.Context, c storetest.Call) (interface{}, error) {
		return nil, &apperrors.RemoteError{Status: 409, Message: "Email is already on the waitlist"}
	}}
	toasts := notify.New()

	_, err := Join(context.Background(), fake, email.NewDispatcher(fake, toasts), toasts, Signup{Email: "a@b.com", ProjectID: "qmlab"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, fake.Calls(), 1)
	assert.Equal(t, notify.TypeError, toasts.Get().Notifications[0].Type)
}

func TestJoin_ValidatesBeforeNetwork(t *testing.T) {
	fake := &storetest.Fake{}

	_, err := Join(context.Background(), fake, nil, nil, Signup{Email: "not-an-email", ProjectID: "qmlab"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = Join(context.Background(), fake, nil, nil, Signup{Email: "a@b.com"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, fake.Calls())
}
