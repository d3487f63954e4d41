package model

import "time"

// Reportable content types
const (
	ReportContentPost    = "post"
	ReportContentComment = "comment"
	ReportContentScoop   = "scoop"
	ReportContentUser    = "user"
)

// Report is a user-filed moderation report.
type Report struct {
	ID          string    `json:"id"`
	ReporterID  string    `json:"reporterId"`
	ContentType string    `json:"contentType"`
	ContentID   string    `json:"contentId"`
	Reason      string    `json:"reason"`
	Details     string    `json:"details,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReportStatusOpen is the status of a newly filed report.
const ReportStatusOpen = "open"

// CreateReportRequest is the body of POST /reports.
type CreateReportRequest struct {
	ContentType string `json:"contentType" validate:"required,oneof=post comment scoop user"`
	ContentID   string `json:"contentId" validate:"required"`
	Reason      string `json:"reason" validate:"required,max=100"`
	Details     string `json:"details" validate:"max=1000"`
}

var (
	ErrReportsDisabled = NewError(ErrNotEnabled, "reporting is not enabled")
	ErrAlreadyReported = NewError(ErrConflict, "you already reported this content")
)
