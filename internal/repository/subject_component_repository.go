package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

// SubjectComponentRepository reads per-subject component configuration.
// Configuration rows are provisioned by an administrative setup flow; the
// marks subsystem treats them as read-only.
type SubjectComponentRepository struct {
	db *sqlx.DB
}

// NewSubjectComponentRepository constructs a SubjectComponentRepository.
func NewSubjectComponentRepository(db *sqlx.DB) *SubjectComponentRepository {
	return &SubjectComponentRepository{db: db}
}

// FindBySubjectComponent returns the config for a (subject, component) pair.
// Returns sql.ErrNoRows when the pair is not configured.
func (r *SubjectComponentRepository) FindBySubjectComponent(ctx context.Context, subjectID string, component models.ComponentKind) (*models.SubjectComponent, error) {
	const query = `SELECT id, subject_id, component, max_marks, attempt_count, created_at, updated_at
        FROM subject_components WHERE subject_id = $1 AND component = $2`
	var config models.SubjectComponent
	if err := r.db.GetContext(ctx, &config, query, subjectID, component); err != nil {
		return nil, err
	}
	return &config, nil
}

// ListBySubject returns every configured component for a subject ordered by
// component code.
func (r *SubjectComponentRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.SubjectComponent, error) {
	const query = `SELECT id, subject_id, component, max_marks, attempt_count, created_at, updated_at
        FROM subject_components WHERE subject_id = $1 ORDER BY component`
	var configs []models.SubjectComponent
	if err := r.db.SelectContext(ctx, &configs, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject components: %w", err)
	}
	return configs, nil
}
