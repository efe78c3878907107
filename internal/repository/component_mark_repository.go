package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

// ComponentMarkRepository handles raw component-mark persistence. The
// composite unique constraint on (student_id, subject_id, component,
// attempt_no) is what makes concurrent upserts converge on a single row.
type ComponentMarkRepository struct {
	db *sqlx.DB
}

// NewComponentMarkRepository creates a new component mark repository.
func NewComponentMarkRepository(db *sqlx.DB) *ComponentMarkRepository {
	return &ComponentMarkRepository{db: db}
}

// Upsert inserts the mark or overwrites the existing row for the same key.
func (r *ComponentMarkRepository) Upsert(ctx context.Context, mark *models.ComponentMark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO component_marks (id, student_id, subject_id, component, attempt_no, marks, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :component, :attempt_no, :marks, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id, component, attempt_no)
        DO UPDATE SET marks = EXCLUDED.marks, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("upsert component mark: %w", err)
	}
	return nil
}

// ListByStudentSubject returns every recorded mark for a (student, subject)
// pair. The aggregation engine reads the full set on each recompute.
func (r *ComponentMarkRepository) ListByStudentSubject(ctx context.Context, studentID, subjectID string) ([]models.ComponentMark, error) {
	const query = `SELECT id, student_id, subject_id, component, attempt_no, marks, created_at, updated_at
        FROM component_marks WHERE student_id = $1 AND subject_id = $2
        ORDER BY component, attempt_no`
	var marks []models.ComponentMark
	if err := r.db.SelectContext(ctx, &marks, query, studentID, subjectID); err != nil {
		return nil, fmt.Errorf("list component marks: %w", err)
	}
	return marks, nil
}
