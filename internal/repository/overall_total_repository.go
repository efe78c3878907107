package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

// OverallTotalRepository manages the materialized overall-total rows. Only
// the aggregation engine writes through it.
type OverallTotalRepository struct {
	db *sqlx.DB
}

// NewOverallTotalRepository constructs an OverallTotalRepository.
func NewOverallTotalRepository(db *sqlx.DB) *OverallTotalRepository {
	return &OverallTotalRepository{db: db}
}

// Upsert overwrites the full snapshot for a (student, subject) pair.
func (r *OverallTotalRepository) Upsert(ctx context.Context, total *models.OverallTotal) error {
	if total.ID == "" {
		total.ID = uuid.NewString()
	}
	if total.CalculatedAt.IsZero() {
		total.CalculatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO overall_totals (id, student_id, subject_id, internal_total, assignment_score, quiz_score, seminar_score, overall_total, calculated_at)
        VALUES (:id, :student_id, :subject_id, :internal_total, :assignment_score, :quiz_score, :seminar_score, :overall_total, :calculated_at)
        ON CONFLICT (student_id, subject_id)
        DO UPDATE SET internal_total = EXCLUDED.internal_total,
            assignment_score = EXCLUDED.assignment_score,
            quiz_score = EXCLUDED.quiz_score,
            seminar_score = EXCLUDED.seminar_score,
            overall_total = EXCLUDED.overall_total,
            calculated_at = EXCLUDED.calculated_at`
	if _, err := r.db.NamedExecContext(ctx, query, total); err != nil {
		return fmt.Errorf("upsert overall total: %w", err)
	}
	return nil
}

// Find returns the materialized row for a (student, subject) pair. Returns
// sql.ErrNoRows before the first recompute.
func (r *OverallTotalRepository) Find(ctx context.Context, studentID, subjectID string) (*models.OverallTotal, error) {
	const query = `SELECT id, student_id, subject_id, internal_total, assignment_score, quiz_score, seminar_score, overall_total, calculated_at
        FROM overall_totals WHERE student_id = $1 AND subject_id = $2`
	var total models.OverallTotal
	if err := r.db.GetContext(ctx, &total, query, studentID, subjectID); err != nil {
		return nil, err
	}
	return &total, nil
}

// TotalsGrid returns the subject roster joined with overall totals, paginated.
// Students without a computed total still appear with nil scores.
func (r *OverallTotalRepository) TotalsGrid(ctx context.Context, subjectID string, scope models.RosterScope, page, size int) ([]models.TotalsGridRow, int, error) {
	offset := (page - 1) * size
	const base = `FROM students s
        LEFT JOIN overall_totals ot ON ot.student_id = s.id AND ot.subject_id = $1
        WHERE s.department_id = $2 AND s.semester = $3 AND s.section = $4 AND s.active`

	query := fmt.Sprintf(`SELECT s.id AS student_id, s.usn, s.full_name,
        ot.internal_total, ot.assignment_score, ot.quiz_score, ot.seminar_score, ot.overall_total
        %s ORDER BY s.usn LIMIT %d OFFSET %d`, base, size, offset)
	var rows []models.TotalsGridRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, scope.DepartmentID, scope.Semester, scope.Section); err != nil {
		return nil, 0, fmt.Errorf("totals grid: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) " + base
	if err := r.db.GetContext(ctx, &total, countQuery, subjectID, scope.DepartmentID, scope.Semester, scope.Section); err != nil {
		return nil, 0, fmt.Errorf("count totals grid: %w", err)
	}
	return rows, total, nil
}

// TotalsForExport returns the full (unpaginated) totals table for a subject.
func (r *OverallTotalRepository) TotalsForExport(ctx context.Context, subjectID string, scope models.RosterScope) ([]models.TotalsGridRow, error) {
	const query = `SELECT s.id AS student_id, s.usn, s.full_name,
        ot.internal_total, ot.assignment_score, ot.quiz_score, ot.seminar_score, ot.overall_total
        FROM students s
        LEFT JOIN overall_totals ot ON ot.student_id = s.id AND ot.subject_id = $1
        WHERE s.department_id = $2 AND s.semester = $3 AND s.section = $4 AND s.active
        ORDER BY s.usn`
	var rows []models.TotalsGridRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, scope.DepartmentID, scope.Semester, scope.Section); err != nil {
		return nil, fmt.Errorf("totals for export: %w", err)
	}
	return rows, nil
}
