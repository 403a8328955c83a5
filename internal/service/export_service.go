package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ParseExportFormat normalises a query value into an ExportFormat.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

type lessonLister interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
}

type csvRenderer interface {
	Render(t export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(t export.Table, title string) ([]byte, error)
}

// ExportDocument is a rendered schedule export.
type ExportDocument struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders lesson schedules as CSV or PDF downloads.
type ExportService struct {
	lessons lessonLister
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(lessons lessonLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{lessons: lessons, csv: csv, pdf: pdf, logger: logger}
}

var scheduleColumns = []string{"Date", "Start", "End", "Status", "Teacher", "Student", "Meeting Link"}

// Schedule renders every lesson matching the filter. Pagination is bypassed:
// an export covers the whole filtered set.
func (s *ExportService) Schedule(ctx context.Context, filter models.LessonFilter, format ExportFormat) (*ExportDocument, error) {
	filter.Page = 1
	filter.PageSize = 100
	var all []models.Lesson
	for {
		page, total, err := s.lessons.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons for export")
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	table := export.Table{Columns: scheduleColumns}
	for _, lesson := range all {
		table.Rows = append(table.Rows, []string{
			lesson.Date,
			lesson.StartTime,
			lesson.EndTime,
			string(lesson.Status),
			lesson.TeacherID,
			lesson.StudentID,
			lesson.MeetingLink,
		})
	}

	name := "schedule"
	if filter.TeacherID != "" {
		name = fmt.Sprintf("schedule-%s", filter.TeacherID)
	}

	switch format {
	case FormatPDF:
		data, err := s.pdf.Render(table, "Lesson Schedule")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportDocument{Filename: name + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		data, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportDocument{Filename: name + ".csv", ContentType: "text/csv", Data: data}, nil
	}
}
