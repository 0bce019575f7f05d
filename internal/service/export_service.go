package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mentorlink/mentorlink-api/internal/models"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
	"github.com/mentorlink/mentorlink-api/pkg/export"
)

type rosterReader interface {
	ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error)
}

// ExportFile is a rendered roster document.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders a teacher's assigned-student roster as CSV or PDF.
type ExportService struct {
	assignments rosterReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs an export service.
func NewExportService(assignments rosterReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		assignments: assignments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

var rosterHeaders = []string{"Name", "Email", "Assigned At"}

// Roster builds the teacher's roster in the requested format.
func (s *ExportService) Roster(ctx context.Context, teacherID, format string) (*ExportFile, error) {
	students, err := s.assignments.ListAssignedStudents(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(students))}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":        student.FullName,
			"Email":       student.Email,
			"Assigned At": student.AssignedAt.UTC().Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch strings.ToLower(format) {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("assigned-students-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, "Assigned Students")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("assigned-students-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}
