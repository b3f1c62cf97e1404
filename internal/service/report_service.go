package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/salon-pos-api/internal/repository"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
	"github.com/noah-isme/salon-pos-api/pkg/export"
	"github.com/noah-isme/salon-pos-api/pkg/storage"
)

// Report formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type dayReportReader interface {
	DayReport(ctx context.Context, storeID string, dayStart, dayEnd time.Time) ([]repository.DayReportRow, error)
}

// ReportArtifact describes a generated report and its signed download token.
type ReportArtifact struct {
	ReportID  string    `json:"report_id"`
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportService renders daily attendance-hours reports to CSV or PDF, stores
// them on disk and hands out time-limited signed download tokens.
type ReportService struct {
	attendance dayReportReader
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	files      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	loc        *time.Location
	logger     *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(
	attendance dayReportReader,
	csv *export.CSVExporter,
	pdf *export.PDFExporter,
	files *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	loc *time.Location,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		attendance: attendance,
		csv:        csv,
		pdf:        pdf,
		files:      files,
		signer:     signer,
		loc:        loc,
		logger:     logger,
	}
}

var reportHeaders = []string{"Employee", "Check In", "Check Out", "Status", "Hours"}

// GenerateDayReport builds the attendance report for one store and civil
// day. The day boundary is the store timezone's midnight, not UTC's.
func (s *ReportService) GenerateDayReport(ctx context.Context, storeID string, day time.Time, format string) (*ReportArtifact, error) {
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	local := day.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	rows, err := s.attendance.DayReport(ctx, storeID, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance report")
	}

	dataset := export.Dataset{Headers: reportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		checkOut := ""
		if row.CheckOutTime != nil {
			checkOut = row.CheckOutTime.In(s.loc).Format("15:04")
		}
		hours := ""
		if row.TotalHours != nil {
			hours = strconv.FormatFloat(*row.TotalHours, 'f', 2, 64)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Employee":  row.DisplayName,
			"Check In":  row.CheckInTime.In(s.loc).Format("15:04"),
			"Check Out": checkOut,
			"Status":    string(row.Status),
			"Hours":     hours,
		})
	}

	var payload []byte
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		title := fmt.Sprintf("Attendance %s", dayStart.Format("2006-01-02"))
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	relPath := path.Join("attendance", storeID,
		fmt.Sprintf("%s_%s.%s", dayStart.Format("2006-01-02"), reportID, format))
	if _, err := s.files.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report token")
	}

	s.logger.Info("attendance report generated",
		zap.String("store_id", storeID),
		zap.String("report_id", reportID),
		zap.String("format", format),
		zap.Int("rows", len(rows)))

	return &ReportArtifact{
		ReportID:  reportID,
		FileName:  path.Base(relPath),
		Format:    format,
		Rows:      len(rows),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates a signed token and opens the referenced report file.
func (s *ReportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	return file, path.Base(relPath), nil
}
