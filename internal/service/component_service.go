package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vtu-tools/college-erp-api/internal/models"
	appErrors "github.com/vtu-tools/college-erp-api/pkg/errors"
)

type componentConfigReader interface {
	FindBySubjectComponent(ctx context.Context, subjectID string, component models.ComponentKind) (*models.SubjectComponent, error)
}

type markWriter interface {
	Upsert(ctx context.Context, mark *models.ComponentMark) error
}

type studentReader interface {
	FindByUSN(ctx context.Context, usn string) (*models.Student, error)
	Roster(ctx context.Context, scope models.RosterScope) ([]models.Student, error)
	MarkGrid(ctx context.Context, subjectID string, scope models.RosterScope, component models.ComponentKind, attemptNo, page, size int) ([]models.MarkGridRow, int, error)
}

type totalsRecalculator interface {
	Recalc(ctx context.Context, studentID, subjectID string) error
}

// UpsertMarkRequest represents a single mark entry payload. Marks is a
// pointer so an omitted field fails validation instead of decoding to a
// graded zero; an explicit 0 still passes.
type UpsertMarkRequest struct {
	StudentUSN string               `json:"student_usn" validate:"required"`
	SubjectID  string               `json:"subject_id" validate:"required"`
	Component  models.ComponentKind `json:"component" validate:"required"`
	AttemptNo  int                  `json:"attempt_no" validate:"required,min=1,max=2"`
	Marks      *float64             `json:"marks" validate:"required,min=0"`
}

// GridRequest scopes a paginated component-mark grid read.
type GridRequest struct {
	SubjectID string
	Component models.ComponentKind
	AttemptNo int
	Page      int
	Size      int
}

// GridResult carries one grid page plus the configured maximum marks so the
// UI can render bounds alongside entries.
type GridResult struct {
	Rows       []models.MarkGridRow `json:"rows"`
	Pagination models.Pagination    `json:"pagination"`
	MaxMarks   float64              `json:"max_marks"`
}

// ComponentService orchestrates component mark entry and grid reads. Every
// successful mark write synchronously triggers overall-total recomputation
// for the affected (student, subject) pair.
type ComponentService struct {
	configs     componentConfigReader
	marks       markWriter
	students    studentReader
	subjects    subjectReader
	totals      totalsRecalculator
	validator   *validator.Validate
	logger      *zap.Logger
	maxPageSize int
}

// NewComponentService constructs a ComponentService.
func NewComponentService(configs componentConfigReader, marks markWriter, students studentReader, subjects subjectReader, totals totalsRecalculator, validate *validator.Validate, logger *zap.Logger, maxPageSize int) *ComponentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPageSize <= 0 {
		maxPageSize = 200
	}
	return &ComponentService{
		configs:     configs,
		marks:       marks,
		students:    students,
		subjects:    subjects,
		totals:      totals,
		validator:   validate,
		logger:      logger,
		maxPageSize: maxPageSize,
	}
}

// UpsertMark validates and persists a single score, then recomputes the
// student's overall total for the subject before returning. When the mark is
// stored but recomputation fails, the returned error carries
// COMPUTATION_FAILED and the mark is kept; callers retry recalculation.
func (s *ComponentService) UpsertMark(ctx context.Context, req UpsertMarkRequest) (*models.ComponentMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	if !models.ValidComponent(req.Component) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component %q", req.Component))
	}
	marks := *req.Marks

	student, err := s.students.FindByUSN(ctx, req.StudentUSN)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", req.StudentUSN))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	config, err := s.resolveConfig(ctx, req.SubjectID, req.Component)
	if err != nil {
		return nil, err
	}
	if req.AttemptNo > config.AttemptCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attempt %d exceeds configured attempts (%d) for component %s", req.AttemptNo, config.AttemptCount, req.Component))
	}
	if err := validateMarksRange(marks, config.MaxMarks); err != nil {
		return nil, err
	}

	mark := &models.ComponentMark{
		StudentID: student.ID,
		SubjectID: req.SubjectID,
		Component: req.Component,
		AttemptNo: req.AttemptNo,
		Marks:     marks,
	}
	if err := s.marks.Upsert(ctx, mark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert component mark")
	}

	if err := s.totals.Recalc(ctx, student.ID, req.SubjectID); err != nil {
		s.logger.Error("overall total recomputation failed after mark upsert",
			zap.String("student_id", student.ID),
			zap.String("subject_id", req.SubjectID),
			zap.Error(err))
		return mark, appErrors.Wrap(err, appErrors.ErrComputationFailed.Code, appErrors.ErrComputationFailed.Status,
			"mark saved but overall total recomputation failed; retry recalculation")
	}
	return mark, nil
}

// Grid returns the roster joined with marks for one (component, attempt)
// slot. Students without a recorded mark appear with marks = null.
func (s *ComponentService) Grid(ctx context.Context, req GridRequest) (*GridResult, error) {
	if req.SubjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId required")
	}
	if !models.ValidComponent(req.Component) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component %q", req.Component))
	}
	if req.AttemptNo < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attemptNo must be positive")
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

	config, err := s.resolveConfig(ctx, req.SubjectID, req.Component)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	rows, total, err := s.students.MarkGrid(ctx, req.SubjectID, subject.Scope(), req.Component, req.AttemptNo, req.Page, req.Size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark grid")
	}

	return &GridResult{
		Rows:       rows,
		Pagination: models.Pagination{Page: req.Page, PageSize: req.Size, TotalCount: total},
		MaxMarks:   config.MaxMarks,
	}, nil
}

func (s *ComponentService) resolveConfig(ctx context.Context, subjectID string, component models.ComponentKind) (*models.SubjectComponent, error) {
	config, err := s.configs.FindBySubjectComponent(ctx, subjectID, component)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrComponentNotConfigured, fmt.Sprintf("component %s not configured for subject", component))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component config")
	}
	return config, nil
}

func validateMarksRange(marks, maxMarks float64) error {
	if marks < 0 || marks > maxMarks {
		return appErrors.Clone(appErrors.ErrMarksOutOfRange, fmt.Sprintf("marks %v outside allowed range [0, %v]", marks, maxMarks))
	}
	return nil
}
