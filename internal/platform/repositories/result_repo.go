package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"alawein/internal/platform/models"

	"github.com/google/uuid"
)

const (
	scanColumns     = `id, user_id, target, total, critical, warnings, info, details, created_at`
	researchColumns = `id, user_id, topic, summary, insights, confidence, created_at`
)

var (
	scanFilters     = map[string]bool{"id": true, "target": true, "created_at": true}
	researchFilters = map[string]bool{"id": true, "topic": true, "created_at": true}
)

// ResultRepository stores scanner output. Every call appends a row; identical
// requests produce duplicate rows.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) CreateScan(ctx context.Context, res *models.ScanResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt == 0 {
		res.CreatedAt = now()
	}
	if res.Findings.Details == nil {
		res.Findings.Details = []models.ScanFinding{}
	}
	details, err := json.Marshal(res.Findings.Details)
	if err != nil {
		return err
	}
	f := res.Findings
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scan_results (id, user_id, target, total, critical, warnings, info, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, res.ID, res.UserID, res.Target, f.Total, f.Critical, f.Warnings, f.Info, string(details), res.CreatedAt)
	return err
}

func (r *ResultRepository) CreateResearch(ctx context.Context, res *models.ResearchResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt == 0 {
		res.CreatedAt = now()
	}
	if res.Insights == nil {
		res.Insights = []string{}
	}
	insights, err := json.Marshal(res.Insights)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO research_results (id, user_id, topic, summary, insights, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, res.ID, res.UserID, res.Topic, res.Summary, string(insights), res.Confidence, res.CreatedAt)
	return err
}

func (r *ResultRepository) ListScans(ctx context.Context, userID string, opts ListOptions) ([]*models.ScanResult, error) {
	b := newSelect(scanColumns, "scan_results").eq("user_id", userID)
	if err := b.apply(opts, scanFilters, "created_at DESC, id DESC"); err != nil {
		return nil, err
	}
	query, args := b.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.ScanResult{}
	for rows.Next() {
		var res models.ScanResult
		var details string
		f := &res.Findings
		if err := rows.Scan(&res.ID, &res.UserID, &res.Target, &f.Total, &f.Critical, &f.Warnings, &f.Info, &details, &res.CreatedAt); err != nil {
			return nil, err
		}
		f.Details = []models.ScanFinding{}
		if err := json.Unmarshal([]byte(details), &f.Details); err != nil {
			return nil, err
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

func (r *ResultRepository) ListResearch(ctx context.Context, userID string, opts ListOptions) ([]*models.ResearchResult, error) {
	b := newSelect(researchColumns, "research_results").eq("user_id", userID)
	if err := b.apply(opts, researchFilters, "created_at DESC, id DESC"); err != nil {
		return nil, err
	}
	query, args := b.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.ResearchResult{}
	for rows.Next() {
		var res models.ResearchResult
		var insights string
		if err := rows.Scan(&res.ID, &res.UserID, &res.Topic, &res.Summary, &insights, &res.Confidence, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.Insights = []string{}
		if err := json.Unmarshal([]byte(insights), &res.Insights); err != nil {
			return nil, err
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}
