package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vtu-tools/college-erp-api/internal/models"
	appErrors "github.com/vtu-tools/college-erp-api/pkg/errors"
	"github.com/vtu-tools/college-erp-api/pkg/export"
)

type markEntry interface {
	UpsertMark(ctx context.Context, req UpsertMarkRequest) (*models.ComponentMark, error)
}

// UploadRequest carries a parsed multipart upload.
type UploadRequest struct {
	SubjectID string
	Component models.ComponentKind
	AttemptNo int
	File      []byte
}

// TemplateRequest scopes a blank entry-sheet download.
type TemplateRequest struct {
	SubjectID string
	Component models.ComponentKind
	AttemptNo int
}

// RowOutcome records the result of one spreadsheet row.
type RowOutcome struct {
	USN     string `json:"usn"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UploadSummary reports per-row outcomes of a bulk import. Row failures are
// isolated: the summary is returned with HTTP 200 even when rows failed.
type UploadSummary struct {
	TotalProcessed int          `json:"total_processed"`
	SuccessCount   int          `json:"success_count"`
	FailureCount   int          `json:"failure_count"`
	Details        []RowOutcome `json:"details"`
}

// columnMatcher locates a header column by case-insensitive substring so
// sheets with varied header naming ("USN", "Student USN", "Marks Obtained")
// still resolve.
type columnMatcher struct {
	needle string
}

func (m columnMatcher) Match(cell string) bool {
	return strings.Contains(strings.ToLower(cell), m.needle)
}

var (
	usnColumn   = columnMatcher{needle: "usn"}
	marksColumn = columnMatcher{needle: "marks"}
)

// locateHeader scans for the first row containing both a USN-like and a
// marks-like column and returns their positions.
func locateHeader(rows [][]string) (headerIdx, usnIdx, marksIdx int, ok bool) {
	for i, row := range rows {
		usnIdx, marksIdx = -1, -1
		for j, cell := range row {
			if usnIdx == -1 && usnColumn.Match(cell) {
				usnIdx = j
			}
			if marksIdx == -1 && marksColumn.Match(cell) {
				marksIdx = j
			}
		}
		if usnIdx >= 0 && marksIdx >= 0 {
			return i, usnIdx, marksIdx, true
		}
	}
	return 0, -1, -1, false
}

// ImportService drives bulk mark imports from spreadsheets and generates the
// matching blank entry templates.
type ImportService struct {
	configs     componentConfigReader
	entry       markEntry
	students    studentReader
	subjects    subjectReader
	xlsx        xlsxRenderer
	logger      *zap.Logger
	concurrency int
}

// NewImportService constructs an ImportService.
func NewImportService(configs componentConfigReader, entry markEntry, students studentReader, subjects subjectReader, logger *zap.Logger, concurrency int) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &ImportService{
		configs:     configs,
		entry:       entry,
		students:    students,
		subjects:    subjects,
		xlsx:        export.NewXLSXExporter(),
		logger:      logger,
		concurrency: concurrency,
	}
}

type uploadRow struct {
	usn      string
	rawMarks string
}

// ProcessUpload applies a spreadsheet of per-student marks with independent
// per-row success/failure. A malformed row never prevents other rows from
// being committed, and rows are processed concurrently since every row keys a
// distinct (student, subject, component, attempt) tuple.
func (s *ImportService) ProcessUpload(ctx context.Context, req UploadRequest) (*UploadSummary, error) {
	if req.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId required")
	}
	if !models.ValidComponent(req.Component) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component %q", req.Component))
	}
	if req.AttemptNo < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attemptNo must be positive")
	}

	config, err := s.configs.FindBySubjectComponent(ctx, req.SubjectID, req.Component)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrComponentNotConfigured, fmt.Sprintf("component %s not configured for subject", req.Component))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component config")
	}
	// An attempt beyond the configured count would fail every row the same
	// way, so reject the whole file instead.
	if req.AttemptNo > config.AttemptCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attempt %d exceeds configured attempts (%d) for component %s", req.AttemptNo, config.AttemptCount, req.Component))
	}

	rows, err := s.sheetRows(req.File)
	if err != nil {
		return nil, err
	}
	headerIdx, usnIdx, marksIdx, ok := locateHeader(rows)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no header row containing USN and marks columns found")
	}

	var tasks []uploadRow
	for _, row := range rows[headerIdx+1:] {
		usn := ""
		if usnIdx < len(row) {
			usn = strings.TrimSpace(row[usnIdx])
		}
		if usn == "" {
			continue
		}
		raw := ""
		if marksIdx < len(row) {
			raw = strings.TrimSpace(row[marksIdx])
		}
		tasks = append(tasks, uploadRow{usn: usn, rawMarks: raw})
	}

	details := make([]RowOutcome, len(tasks))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task uploadRow) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			details[i] = s.processRow(ctx, req, config, task)
		}(i, task)
	}
	wg.Wait()

	summary := &UploadSummary{TotalProcessed: len(details), Details: details}
	for _, outcome := range details {
		if outcome.Success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
	}
	s.logger.Info("bulk mark upload processed",
		zap.String("subject_id", req.SubjectID),
		zap.String("component", string(req.Component)),
		zap.Int("total", summary.TotalProcessed),
		zap.Int("failures", summary.FailureCount))
	return summary, nil
}

func (s *ImportService) processRow(ctx context.Context, req UploadRequest, config *models.SubjectComponent, row uploadRow) RowOutcome {
	if row.rawMarks == "" {
		return RowOutcome{USN: row.usn, Message: "no marks entered"}
	}
	marks, err := strconv.ParseFloat(row.rawMarks, 64)
	if err != nil {
		return RowOutcome{USN: row.usn, Message: fmt.Sprintf("invalid marks value %q", row.rawMarks)}
	}
	if marks < 0 || marks > config.MaxMarks {
		return RowOutcome{USN: row.usn, Message: fmt.Sprintf("marks %v outside allowed range [0, %v]", marks, config.MaxMarks)}
	}

	_, err = s.entry.UpsertMark(ctx, UpsertMarkRequest{
		StudentUSN: row.usn,
		SubjectID:  req.SubjectID,
		Component:  req.Component,
		AttemptNo:  req.AttemptNo,
		Marks:      &marks,
	})
	if err != nil {
		return RowOutcome{USN: row.usn, Message: appErrors.FromError(err).Message}
	}
	return RowOutcome{USN: row.usn, Success: true}
}

// Template produces a blank xlsx entry sheet pre-populated with the subject
// roster.
func (s *ImportService) Template(ctx context.Context, req TemplateRequest) (*ExportResult, error) {
	if req.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId required")
	}
	if !models.ValidComponent(req.Component) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component %q", req.Component))
	}

	config, err := s.configs.FindBySubjectComponent(ctx, req.SubjectID, req.Component)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrComponentNotConfigured, fmt.Sprintf("component %s not configured for subject", req.Component))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component config")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	roster, err := s.students.Roster(ctx, subject.Scope())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	marksHeader := fmt.Sprintf("Marks (Max %v)", config.MaxMarks)
	dataset := export.Dataset{
		Headers: []string{"USN", "Student Name", marksHeader},
		Rows:    make([]map[string]string, 0, len(roster)),
	}
	for _, student := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"USN":          student.USN,
			"Student Name": student.FullName,
			marksHeader:    "",
		})
	}

	payload, err := s.xlsx.Render(dataset, "Marks Entry")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	filename := fmt.Sprintf("template_%s_%s_attempt%d.xlsx", subject.Code, req.Component, req.AttemptNo)
	return &ExportResult{
		Filename:    filename,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Payload:     payload,
	}, nil
}

func (s *ImportService) sheetRows(file []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(file))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open spreadsheet")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read spreadsheet rows")
	}
	return rows, nil
}
