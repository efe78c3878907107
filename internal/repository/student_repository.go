package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

// StudentRepository resolves students and subject rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByUSN fetches a student by university seat number. Returns
// sql.ErrNoRows when unknown.
func (r *StudentRepository) FindByUSN(ctx context.Context, usn string) (*models.Student, error) {
	const query = `SELECT id, usn, full_name, department_id, semester, section, active, created_at, updated_at
        FROM students WHERE usn = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, usn); err != nil {
		return nil, err
	}
	return &student, nil
}

// Roster returns every active student in the scope ordered by USN.
func (r *StudentRepository) Roster(ctx context.Context, scope models.RosterScope) ([]models.Student, error) {
	const query = `SELECT id, usn, full_name, department_id, semester, section, active, created_at, updated_at
        FROM students WHERE department_id = $1 AND semester = $2 AND section = $3 AND active
        ORDER BY usn`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, scope.DepartmentID, scope.Semester, scope.Section); err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return students, nil
}

// MarkGrid returns the scope roster joined with the requested
// (component, attempt) mark, paginated. Unmarked students carry a NULL marks
// column so callers can tell "not graded" from "graded zero".
func (r *StudentRepository) MarkGrid(ctx context.Context, subjectID string, scope models.RosterScope, component models.ComponentKind, attemptNo, page, size int) ([]models.MarkGridRow, int, error) {
	offset := (page - 1) * size
	const base = `FROM students s
        LEFT JOIN component_marks cm ON cm.student_id = s.id
            AND cm.subject_id = $1 AND cm.component = $2 AND cm.attempt_no = $3
        WHERE s.department_id = $4 AND s.semester = $5 AND s.section = $6 AND s.active`

	query := fmt.Sprintf(`SELECT s.id AS student_id, s.usn, s.full_name, cm.marks
        %s ORDER BY s.usn LIMIT %d OFFSET %d`, base, size, offset)
	var rows []models.MarkGridRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, component, attemptNo, scope.DepartmentID, scope.Semester, scope.Section); err != nil {
		return nil, 0, fmt.Errorf("mark grid: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) " + base
	if err := r.db.GetContext(ctx, &total, countQuery, subjectID, component, attemptNo, scope.DepartmentID, scope.Semester, scope.Section); err != nil {
		return nil, 0, fmt.Errorf("count mark grid: %w", err)
	}
	return rows, total, nil
}
