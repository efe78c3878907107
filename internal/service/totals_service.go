package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vtu-tools/college-erp-api/internal/models"
	appErrors "github.com/vtu-tools/college-erp-api/pkg/errors"
	"github.com/vtu-tools/college-erp-api/pkg/export"
)

// bestInternalExams is how many internal-exam totals count toward the
// internal component of the overall total, regardless of how many were taken.
const bestInternalExams = 2

type markReader interface {
	ListByStudentSubject(ctx context.Context, studentID, subjectID string) ([]models.ComponentMark, error)
}

type internalExamReader interface {
	ListTotals(ctx context.Context, studentID, subjectID string) ([]models.InternalExamTotal, error)
}

type overallTotalRepo interface {
	Upsert(ctx context.Context, total *models.OverallTotal) error
	TotalsGrid(ctx context.Context, subjectID string, scope models.RosterScope, page, size int) ([]models.TotalsGridRow, int, error)
	TotalsForExport(ctx context.Context, subjectID string, scope models.RosterScope) ([]models.TotalsGridRow, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportFormat selects the totals export encoding.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
)

// TotalsGridRequest scopes a paginated totals read.
type TotalsGridRequest struct {
	SubjectID string `validate:"required"`
	Page      int    `validate:"min=1"`
	Size      int    `validate:"min=1"`
}

// TotalsGridResult carries one page of totals rows.
type TotalsGridResult struct {
	Rows       []models.TotalsGridRow `json:"rows"`
	Pagination models.Pagination      `json:"pagination"`
}

// ExportResult is a rendered totals document.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// TotalsService owns the overall-total materialization: it is the only
// writer of overall_totals rows. Recomputation reads every current input and
// overwrites the full snapshot, so it is idempotent by construction.
type TotalsService struct {
	marks     markReader
	internals internalExamReader
	totals    overallTotalRepo
	subjects  subjectReader
	cache     *CacheService
	logger    *zap.Logger

	csv  csvRenderer
	pdf  pdfRenderer
	xlsx xlsxRenderer

	maxPageSize int

	// pairLocks serializes recomputation per (student, subject) so two
	// concurrent read-then-write sequences cannot clobber each other.
	// Entries live for the process lifetime; the key space is bounded by
	// roster size times subjects, a few thousand mutexes at most.
	pairLocks sync.Map
}

// NewTotalsService constructs a TotalsService.
func NewTotalsService(marks markReader, internals internalExamReader, totals overallTotalRepo, subjects subjectReader, cache *CacheService, logger *zap.Logger, maxPageSize int) *TotalsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPageSize <= 0 {
		maxPageSize = 200
	}
	return &TotalsService{
		marks:       marks,
		internals:   internals,
		totals:      totals,
		subjects:    subjects,
		cache:       cache,
		logger:      logger,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		xlsx:        export.NewXLSXExporter(),
		maxPageSize: maxPageSize,
	}
}

// Recalc recomputes the overall total for one (student, subject) pair from
// scratch and overwrites the materialized row. On failure the previous row is
// left untouched.
func (s *TotalsService) Recalc(ctx context.Context, studentID, subjectID string) error {
	lock := s.pairLock(studentID, subjectID)
	lock.Lock()
	defer lock.Unlock()

	internals, err := s.internals.ListTotals(ctx, studentID, subjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrComputationFailed.Code, appErrors.ErrComputationFailed.Status, "failed to load internal exam totals")
	}
	marks, err := s.marks.ListByStudentSubject(ctx, studentID, subjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrComputationFailed.Code, appErrors.ErrComputationFailed.Status, "failed to load component marks")
	}

	snapshot := buildOverallTotal(studentID, subjectID, internals, marks)
	if err := s.totals.Upsert(ctx, snapshot); err != nil {
		return appErrors.Wrap(err, appErrors.ErrComputationFailed.Code, appErrors.ErrComputationFailed.Status, "failed to store overall total")
	}

	s.invalidateGrid(ctx, subjectID)
	return nil
}

// buildOverallTotal derives the snapshot from current inputs:
// best-2-of-N internal exams, slot rollups per the component rule table
// (assignment slot takes the higher of its two kinds) and an additive sum.
func buildOverallTotal(studentID, subjectID string, internals []models.InternalExamTotal, marks []models.ComponentMark) *models.OverallTotal {
	internalTotal := bestOfSum(internals, bestInternalExams)

	// Per-kind value is the highest mark across that kind's attempts; each
	// slot keeps the maximum over the kinds feeding it.
	kindBest := make(map[models.ComponentKind]float64, len(marks))
	for _, mark := range marks {
		if mark.Marks > kindBest[mark.Component] {
			kindBest[mark.Component] = mark.Marks
		}
	}
	slotValues := make(map[models.RollupSlot]float64, len(models.ComponentRules))
	for kind, rule := range models.ComponentRules {
		if value, ok := kindBest[kind]; ok && value > slotValues[rule.Slot] {
			slotValues[rule.Slot] = value
		}
	}

	assignment := slotValues[models.SlotAssignment]
	quiz := slotValues[models.SlotQuiz]
	seminar := slotValues[models.SlotSeminar]

	return &models.OverallTotal{
		StudentID:       studentID,
		SubjectID:       subjectID,
		InternalTotal:   internalTotal,
		AssignmentScore: assignment,
		QuizScore:       quiz,
		SeminarScore:    seminar,
		OverallTotal:    internalTotal + assignment + quiz + seminar,
		CalculatedAt:    time.Now().UTC(),
	}
}

// bestOfSum sums the n highest totals among the given internal exams.
func bestOfSum(internals []models.InternalExamTotal, n int) float64 {
	totals := make([]float64, 0, len(internals))
	for _, exam := range internals {
		totals = append(totals, exam.Total)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(totals)))
	if len(totals) > n {
		totals = totals[:n]
	}
	sum := 0.0
	for _, t := range totals {
		sum += t
	}
	return sum
}

// Grid returns the paginated totals grid for a subject, served from cache
// when possible.
func (s *TotalsService) Grid(ctx context.Context, req TotalsGridRequest) (*TotalsGridResult, error) {
	if req.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId required")
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Size < 1 {
		req.Size = 20
	}
	if req.Size > s.maxPageSize {
		req.Size = s.maxPageSize
	}

	cacheKey := fmt.Sprintf("totals:grid:%s:%d:%d", req.SubjectID, req.Page, req.Size)
	var cached TotalsGridResult
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	rows, total, err := s.totals.TotalsGrid(ctx, req.SubjectID, subject.Scope(), req.Page, req.Size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load totals grid")
	}

	result := &TotalsGridResult{
		Rows:       rows,
		Pagination: models.Pagination{Page: req.Page, PageSize: req.Size, TotalCount: total},
	}
	_ = s.cache.Set(ctx, cacheKey, result, 0)
	return result, nil
}

// Export renders the totals table for a subject in the requested format.
func (s *TotalsService) Export(ctx context.Context, subjectID string, format ExportFormat) (*ExportResult, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId required")
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	rows, err := s.totals.TotalsForExport(ctx, subjectID, subject.Scope())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load totals")
	}

	dataset := totalsDataset(rows)
	title := fmt.Sprintf("%s %s totals", subject.Code, subject.Name)
	base := fmt.Sprintf("totals_%s", subject.Code)

	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Filename: base + ".csv", ContentType: "text/csv", Payload: payload}, nil
	case FormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Filename: base + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	case FormatXLSX:
		payload, err := s.xlsx.Render(dataset, "Totals")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render xlsx")
		}
		return &ExportResult{
			Filename:    base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func totalsDataset(rows []models.TotalsGridRow) export.Dataset {
	headers := []string{"USN", "Name", "Internal", "Assignment", "Quiz", "Seminar", "Total"}
	data := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"USN":        row.USN,
			"Name":       row.FullName,
			"Internal":   formatScore(row.InternalTotal),
			"Assignment": formatScore(row.AssignmentScore),
			"Quiz":       formatScore(row.QuizScore),
			"Seminar":    formatScore(row.SeminarScore),
			"Total":      formatScore(row.OverallTotal),
		})
	}
	return data
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (s *TotalsService) pairLock(studentID, subjectID string) *sync.Mutex {
	key := studentID + "|" + subjectID
	if lock, ok := s.pairLocks.Load(key); ok {
		return lock.(*sync.Mutex)
	}
	lock, _ := s.pairLocks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *TotalsService) invalidateGrid(ctx context.Context, subjectID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("totals:grid:%s:*", subjectID)); err != nil {
		s.logger.Warn("totals grid cache invalidation failed", zap.String("subject_id", subjectID), zap.Error(err))
	}
}
