package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

// InternalExamRepository reads internal-exam (CIE) totals. The rows are
// written by the internal-exam subsystem; this repository is read-only.
type InternalExamRepository struct {
	db *sqlx.DB
}

// NewInternalExamRepository constructs an InternalExamRepository.
func NewInternalExamRepository(db *sqlx.DB) *InternalExamRepository {
	return &InternalExamRepository{db: db}
}

// ListTotals returns internal-exam totals for a (student, subject) pair
// ordered by exam number ascending.
func (r *InternalExamRepository) ListTotals(ctx context.Context, studentID, subjectID string) ([]models.InternalExamTotal, error) {
	const query = `SELECT id, student_id, subject_id, exam_no, total
        FROM internal_exam_totals WHERE student_id = $1 AND subject_id = $2
        ORDER BY exam_no ASC`
	var totals []models.InternalExamTotal
	if err := r.db.SelectContext(ctx, &totals, query, studentID, subjectID); err != nil {
		return nil, fmt.Errorf("list internal exam totals: %w", err)
	}
	return totals, nil
}
