package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alawein/internal/engine/mailer"
	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/database"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

type flakyMailer struct {
	mu       sync.Mutex
	failures int
	err      error
	sent     []mailer.Request
}

func (m *flakyMailer) Send(_ context.Context, req mailer.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.failures > 0 {
		m.failures--
		return "", errors.New("provider unavailable")
	}
	m.sent = append(m.sent, req)
	return "id", nil
}

func setup(t *testing.T) (*repositories.WaitlistRepository, *models.WaitlistEntry) {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repositories.NewWaitlistRepository(db.DB)
	entry := &models.WaitlistEntry{Email: "a@b.com", ProjectID: "simcore"}
	require.NoError(t, repo.Join(ctx, entry))
	_, err = repo.UpdateStatus(ctx, entry.ID, models.WaitlistInvited)
	require.NoError(t, err)
	return repo, entry
}

func TestInviteDispatcher_RetriesThenMarksSent(t *testing.T) {
	repo, entry := setup(t)
	m := &flakyMailer{failures: 1}

	d := NewInviteDispatcher(repo, m, "https://alawein.dev", 10)
	d.Backoff = time.Millisecond

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "Your SIMCORE invite is ready", m.sent[0].Subject)
	assert.Equal(t, mailer.TemplateInvite, m.sent[0].Template)
	assert.Contains(t, m.sent[0].Data["link"], entry.ID)

	// Already sent; nothing left to do.
	n, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInviteDispatcher_FailureLeavesEntryPending(t *testing.T) {
	repo, _ := setup(t)
	m := &flakyMailer{failures: 10}

	d := NewInviteDispatcher(repo, m, "https://alawein.dev", 10)
	d.Attempts = 2
	d.Backoff = time.Millisecond

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 8, m.failures, "two attempts per pass")

	pending, err := repo.PendingInvites(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestInviteDispatcher_ValidationIsNotRetried(t *testing.T) {
	repo, _ := setup(t)
	m := &flakyMailer{err: apperrors.NewValidation("to", "invalid email format")}

	d := NewInviteDispatcher(repo, m, "https://alawein.dev", 10)
	d.Backoff = time.Millisecond

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
