package repository

import (
	"context"
	"fmt"

	"scoop_backend/internal/model"
	"scoop_backend/internal/store"
)

type reportRepository struct {
	s store.Store
}

// NewReportRepository binds to the reports table.
func NewReportRepository(s store.Store) ReportRepository {
	return &reportRepository{s: s}
}

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	key := store.ReportKey(report.ContentType, report.ContentID, report.CreatedAt, report.ID)
	if err := putFrom(ctx, r.s, key, report, store.NotExists()); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *reportRepository) ListForContent(ctx context.Context, contentType, contentID string) ([]model.Report, error) {
	reports, err := queryInto[model.Report](ctx, r.s, store.QueryInput{PK: store.ReportPK(contentType, contentID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
