package scanner

import (
	"context"
	"strings"

	apperrors "alawein/internal/pkg/errors"
	"alawein/internal/platform/models"
	"alawein/internal/platform/repositories"
)

const maxContentBytes = 1 << 20

// Service runs the analyzer and persists every result. Identical calls
// produce separate rows.
type Service struct {
	analyzer Analyzer
	results  *repositories.ResultRepository
}

func NewService(analyzer Analyzer, results *repositories.ResultRepository) *Service {
	return &Service{analyzer: analyzer, results: results}
}

func (s *Service) Scan(ctx context.Context, userID string, in ScanInput) (*models.ScanResult, error) {
	if strings.TrimSpace(in.Target) == "" && strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.NewValidation("content", "target or content is required")
	}
	if len(in.Content) > maxContentBytes {
		return nil, apperrors.NewValidation("content", "exceeds 1 MiB")
	}
	if in.Target == "" {
		in.Target = "inline"
	}

	findings, err := s.analyzer.Scan(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &models.ScanResult{UserID: userID, Target: in.Target, Findings: findings}
	if err := s.results.CreateScan(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) Research(ctx context.Context, userID string, in ResearchInput) (*models.ResearchResult, error) {
	if strings.TrimSpace(in.Topic) == "" {
		return nil, apperrors.NewValidation("topic", "is required")
	}
	if len(in.Context) > maxContentBytes {
		return nil, apperrors.NewValidation("context", "exceeds 1 MiB")
	}

	out, err := s.analyzer.Research(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &models.ResearchResult{
		UserID:     userID,
		Topic:      in.Topic,
		Summary:    out.Summary,
		Insights:   out.Insights,
		Confidence: out.Confidence,
	}
	if err := s.results.CreateResearch(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}
