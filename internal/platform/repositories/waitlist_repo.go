package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"alawein/internal/platform/models"

	"github.com/google/uuid"
)

const waitlistColumns = `id, email, project_id, product_id, position, status, metadata, invite_sent_at, created_at, updated_at`

var waitlistFilters = map[string]bool{
	"id": true, "email": true, "project_id": true, "product_id": true, "status": true,
	"position": true, "created_at": true,
}

// ErrInvalidTransition is returned when a status change is not allowed from the current status.
var ErrInvalidTransition = errors.New("invalid waitlist status transition")

// joinAttempts bounds retries when two joins race for the same position.
const joinAttempts = 5

type WaitlistRepository struct {
	db *sql.DB
}

func NewWaitlistRepository(db *sql.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Join appends the entry to its project's queue, assigning max(position)+1.
// A second join with the same email for the same project returns ErrDuplicate.
func (r *WaitlistRepository) Join(ctx context.Context, e *models.WaitlistEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = now()
	}
	e.UpdatedAt = e.CreatedAt
	e.Status = models.WaitlistWaiting
	if len(e.Metadata) == 0 {
		e.Metadata = json.RawMessage(`{}`)
	}

	var err error
	for attempt := 0; attempt < joinAttempts; attempt++ {
		err = r.join(ctx, e)
		if err != errPositionTaken {
			return err
		}
	}
	return err
}

var errPositionTaken = errors.New("waitlist position taken")

func (r *WaitlistRepository) join(ctx context.Context, e *models.WaitlistEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist WHERE project_id = $1 AND email = $2`, e.ProjectID, e.Email).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrDuplicate
	}

	var maxPos int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM waitlist WHERE project_id = $1`, e.ProjectID).Scan(&maxPos); err != nil {
		return err
	}
	e.Position = maxPos + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO waitlist (id, email, project_id, product_id, position, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.Email, e.ProjectID, e.ProductID, e.Position, string(e.Status), string(e.Metadata), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		// A concurrent join took the position or the email. The next attempt
		// tells the two apart.
		if isUniqueViolation(err) {
			return errPositionTaken
		}
		return err
	}
	return tx.Commit()
}

func (r *WaitlistRepository) Get(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	e, err := scanWaitlist(r.db.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *WaitlistRepository) List(ctx context.Context, opts ListOptions) ([]*models.WaitlistEntry, error) {
	b := newSelect(waitlistColumns, "waitlist")
	if err := b.apply(opts, waitlistFilters, "project_id ASC, position ASC"); err != nil {
		return nil, err
	}
	query, args := b.build()
	return r.list(ctx, query, args...)
}

// PendingInvites lists invited entries whose invite email has not gone out yet.
func (r *WaitlistRepository) PendingInvites(ctx context.Context, limit int) ([]*models.WaitlistEntry, error) {
	b := newSelect(waitlistColumns, "waitlist").eq("status", string(models.WaitlistInvited))
	b.where = append(b.where, "invite_sent_at IS NULL")
	b.order = "updated_at ASC"
	b.limit = limit
	query, args := b.build()
	return r.list(ctx, query, args...)
}

// UpdateStatus applies a status change, enforcing the transition table. Position never changes.
func (r *WaitlistRepository) UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus) (*models.WaitlistEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	e, err := scanWaitlist(tx.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if !e.Status.CanTransition(status) {
		return nil, ErrInvalidTransition
	}

	e.Status = status
	e.UpdatedAt = now()
	if _, err := tx.ExecContext(ctx, `UPDATE waitlist SET status = $1, updated_at = $2 WHERE id = $3`,
		string(e.Status), e.UpdatedAt, id); err != nil {
		return nil, err
	}
	return e, tx.Commit()
}

func (r *WaitlistRepository) MarkInviteSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE waitlist SET invite_sent_at = $1 WHERE id = $2 AND invite_sent_at IS NULL`, now(), id)
	return err
}

func (r *WaitlistRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*models.WaitlistEntry{}
	for rows.Next() {
		e, err := scanWaitlist(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanWaitlist(s scanner) (*models.WaitlistEntry, error) {
	var e models.WaitlistEntry
	var status, metadata string
	var inviteSentAt sql.NullInt64
	err := s.Scan(&e.ID, &e.Email, &e.ProjectID, &e.ProductID, &e.Position, &status, &metadata, &inviteSentAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = models.WaitlistStatus(status)
	e.Metadata = json.RawMessage(metadata)
	e.InviteSentAt = nullInt64Ptr(inviteSentAt)
	return &e, nil
}
