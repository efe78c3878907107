package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

func TestOverallTotalUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOverallTotalRepository(db)

	mock.ExpectExec("INSERT INTO overall_totals").WillReturnResult(sqlmock.NewResult(0, 1))

	total := &models.OverallTotal{
		StudentID:       "stu1",
		SubjectID:       "sub1",
		InternalTotal:   55,
		AssignmentScore: 10,
		QuizScore:       7,
		SeminarScore:    6,
		OverallTotal:    78,
	}
	require.NoError(t, repo.Upsert(context.Background(), total))
	assert.NotEmpty(t, total.ID)
	assert.False(t, total.CalculatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverallTotalFindNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOverallTotalRepository(db)

	mock.ExpectQuery("FROM overall_totals").
		WithArgs("stu1", "sub1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "stu1", "sub1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalsGridIncludesUncomputedStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOverallTotalRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "usn", "full_name", "internal_total", "assignment_score", "quiz_score", "seminar_score", "overall_total"}).
		AddRow("stu1", "1VT22CS001", "Anita Rao", 55.0, 10.0, 7.0, 6.0, 78.0).
		AddRow("stu2", "1VT22CS002", "Bharath K", nil, nil, nil, nil, nil)
	mock.ExpectQuery("FROM students s").
		WithArgs("sub1", "dep1", 5, "A").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("sub1", "dep1", 5, "A").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	scope := models.RosterScope{DepartmentID: "dep1", Semester: 5, Section: "A"}
	result, total, err := repo.TotalsGrid(context.Background(), "sub1", scope, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, result, 2)
	require.NotNil(t, result[0].OverallTotal)
	assert.Equal(t, 78.0, *result[0].OverallTotal)
	assert.Nil(t, result[1].OverallTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalsForExport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOverallTotalRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "usn", "full_name", "internal_total", "assignment_score", "quiz_score", "seminar_score", "overall_total"}).
		AddRow("stu1", "1VT22CS001", "Anita Rao", 55.0, 10.0, 7.0, 6.0, 78.0)
	mock.ExpectQuery("FROM students s").
		WithArgs("sub1", "dep1", 5, "A").
		WillReturnRows(rows)

	scope := models.RosterScope{DepartmentID: "dep1", Semester: 5, Section: "A"}
	result, err := repo.TotalsForExport(context.Background(), "sub1", scope)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "1VT22CS001", result[0].USN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverallTotalUpsertPreservesCalculatedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOverallTotalRepository(db)

	mock.ExpectExec("INSERT INTO overall_totals").WillReturnResult(sqlmock.NewResult(0, 1))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	total := &models.OverallTotal{ID: "ot1", StudentID: "stu1", SubjectID: "sub1", CalculatedAt: at}
	require.NoError(t, repo.Upsert(context.Background(), total))
	assert.Equal(t, at, total.CalculatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
