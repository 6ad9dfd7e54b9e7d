package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/report"
	"github.com/zmanup/invoicing-api/internal/repository"
	"go.uber.org/zap"
)

// ReportService exports a user's documents of one calendar year as Excel workbooks
type ReportService struct {
	docRepo   *repository.DocumentRepository
	generator *report.Generator
	logger    *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(docRepo *repository.DocumentRepository, generator *report.Generator, logger *zap.Logger) *ReportService {
	return &ReportService{docRepo: docRepo, generator: generator, logger: logger}
}

// Generate renders the report of the given kind for a year and returns the workbook and its file name
func (s *ReportService) Generate(ctx context.Context, userID uuid.UUID, kind report.Kind, year int) ([]byte, string, error) {
	if !kind.IsValid() {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownReport, kind)
	}
	if year < 2000 || year > 9999 {
		return nil, "", fmt.Errorf("%w: year %d", ErrInvalidInput, year)
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	docs, err := s.docRepo.ListForPeriod(ctx, userID, from, to)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load documents: %w", err)
	}

	data, err := s.generator.Generate(kind, docs)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render %s report: %w", kind, err)
	}

	s.logger.Info("report generated",
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
		zap.Int("year", year),
		zap.Int("documents", len(docs)))

	return data, fmt.Sprintf("%s_report_%d.xlsx", kind, year), nil
}
