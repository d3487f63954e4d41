package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

type ReportService struct {
	reportRepo repository.ReportRepository // nil when reporting is disabled
	logger     *zap.Logger
}

func NewReportService(reportRepo repository.ReportRepository, logger *zap.Logger) *ReportService {
	return &ReportService{reportRepo: reportRepo, logger: logger.Named("reports")}
}

// Create files a report. A user can report a given piece of content once.
func (s *ReportService) Create(ctx context.Context, reporterID string, req model.CreateReportRequest) (*model.Report, error) {
	if s.reportRepo == nil {
		return nil, model.ErrReportsDisabled
	}
	contentID := strings.TrimSpace(req.ContentID)
	reason := strings.TrimSpace(req.Reason)
	if contentID == "" || reason == "" {
		return nil, model.Validationf("contentId and reason are required")
	}
	switch req.ContentType {
	case model.ReportContentPost, model.ReportContentComment, model.ReportContentScoop, model.ReportContentUser:
	default:
		return nil, model.Validationf("unknown content type %q", req.ContentType)
	}

	existing, err := s.reportRepo.ListForContent(ctx, req.ContentType, contentID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.ReporterID == reporterID {
			return nil, model.ErrAlreadyReported
		}
	}

	report := &model.Report{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		ContentType: req.ContentType,
		ContentID:   contentID,
		Reason:      reason,
		Details:     strings.TrimSpace(req.Details),
		Status:      model.ReportStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info("report filed",
		zap.String("report_id", report.ID),
		zap.String("content_type", report.ContentType),
		zap.String("content_id", report.ContentID),
		zap.Int("previous_reports", len(existing)))
	return report, nil
}
