package repositories

import (
	"context"
	"database/sql"

	"alawein/internal/platform/models"
)

const profileColumns = `id, email, display_name, billing_customer_id, created_at, updated_at`

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Ensure creates the profile row on first use and leaves an existing row untouched.
func (r *ProfileRepository) Ensure(ctx context.Context, userID, email string) error {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, userID, email, "", ts, ts)
	return err
}

// Get returns nil, nil when the profile does not exist.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	var customerID sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID).
		Scan(&p.ID, &p.Email, &p.DisplayName, &customerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.BillingCustomerID = customerID.String
	return &p, nil
}

func (r *ProfileRepository) UpdateDisplayName(ctx context.Context, userID, name string) (*models.Profile, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET display_name = $1, updated_at = $2 WHERE id = $3`, name, now(), userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.Get(ctx, userID)
}

// LinkBillingCustomer stores customerID only if the profile has no customer yet.
// It reports whether this call won the link.
func (r *ProfileRepository) LinkBillingCustomer(ctx context.Context, userID, customerID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET billing_customer_id = $1, updated_at = $2
		WHERE id = $3 AND billing_customer_id IS NULL
	`, customerID, now(), userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FindByBillingCustomer is used by the billing webhook when an event carries no user id.
func (r *ProfileRepository) FindByBillingCustomer(ctx context.Context, customerID string) (*models.Profile, error) {
	var p models.Profile
	var cid sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE billing_customer_id = $1`, customerID).
		Scan(&p.ID, &p.Email, &p.DisplayName, &cid, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.BillingCustomerID = cid.String
	return &p, nil
}
