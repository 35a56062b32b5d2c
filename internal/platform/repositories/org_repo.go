package repositories

import (
	"context"
	"database/sql"

	"alawein/internal/platform/models"

	"github.com/google/uuid"
)

const (
	orgColumns    = `id, name, slug, created_by, created_at, updated_at`
	memberColumns = `organization_id, user_id, role, created_at`
)

var (
	orgFilters    = map[string]bool{"id": true, "name": true, "slug": true, "created_by": true, "created_at": true}
	memberFilters = map[string]bool{"organization_id": true, "user_id": true, "role": true, "created_at": true}
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// CreateWithOwner inserts the organization and the creator's owner membership in one transaction.
func (r *OrganizationRepository) CreateWithOwner(ctx context.Context, org *models.Organization) (*models.Membership, error) {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.CreatedAt == 0 {
		org.CreatedAt = now()
	}
	org.UpdatedAt = org.CreatedAt

	member := &models.Membership{
		OrganizationID: org.ID,
		UserID:         org.CreatedBy,
		Role:           models.RoleOwner,
		CreatedAt:      org.CreatedAt,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, org.ID, org.Name, org.Slug, org.CreatedBy, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`, member.OrganizationID, member.UserID, string(member.Role), member.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return member, nil
}

// GetByID returns nil, nil if not found.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org, err := scanOrg(r.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return org, err
}

// ListForUser returns the organizations userID belongs to.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string, opts ListOptions) ([]*models.Organization, error) {
	b := newSelect(orgColumns, "organizations").
		cond("id IN (SELECT organization_id FROM organization_members WHERE user_id = %s)", userID)
	if err := b.apply(opts, orgFilters, "created_at DESC, id DESC"); err != nil {
		return nil, err
	}
	query, args := b.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := []*models.Organization{}
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *OrganizationRepository) Rename(ctx context.Context, id, name string) (*models.Organization, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE organizations SET name = $1, updated_at = $2 WHERE id = $3`, name, now(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Delete removes the organization with all its memberships.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) (*models.Organization, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	org, err := scanOrg(tx.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_members WHERE organization_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return org, tx.Commit()
}

// GetMembership returns nil, nil if userID is not a member of orgID.
func (r *OrganizationRepository) GetMembership(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListMembers returns memberships of every organization userID belongs to.
func (r *OrganizationRepository) ListMembers(ctx context.Context, userID string, opts ListOptions) ([]*models.Membership, error) {
	b := newSelect(memberColumns, "organization_members").
		cond("organization_id IN (SELECT organization_id FROM organization_members WHERE user_id = %s)", userID)
	if err := b.apply(opts, memberFilters, "created_at ASC, user_id ASC"); err != nil {
		return nil, err
	}
	query, args := b.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*models.Membership{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *OrganizationRepository) UpdateMemberRole(ctx context.Context, orgID, userID string, role models.Role) (*models.Membership, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_members SET role = $1 WHERE organization_id = $2 AND user_id = $3
	`, string(role), orgID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetMembership(ctx, orgID, userID)
}

func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	m, err := r.GetMembership(ctx, orgID, userID)
	if err != nil || m == nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID); err != nil {
		return nil, err
	}
	return m, nil
}

func scanOrg(s scanner) (*models.Organization, error) {
	var o models.Organization
	if err := s.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanMember(s scanner) (*models.Membership, error) {
	var m models.Membership
	var role string
	if err := s.Scan(&m.OrganizationID, &m.UserID, &role, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}
