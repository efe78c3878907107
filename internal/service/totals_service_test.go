package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vtu-tools/college-erp-api/internal/models"
	appErrors "github.com/vtu-tools/college-erp-api/pkg/errors"
)

type memMarkReader struct {
	marks []models.ComponentMark
}

func (m *memMarkReader) ListByStudentSubject(ctx context.Context, studentID, subjectID string) ([]models.ComponentMark, error) {
	var result []models.ComponentMark
	for _, mark := range m.marks {
		if mark.StudentID == studentID && mark.SubjectID == subjectID {
			result = append(result, mark)
		}
	}
	return result, nil
}

type memInternalReader struct {
	totals []models.InternalExamTotal
}

func (m *memInternalReader) ListTotals(ctx context.Context, studentID, subjectID string) ([]models.InternalExamTotal, error) {
	var result []models.InternalExamTotal
	for _, exam := range m.totals {
		if exam.StudentID == studentID && exam.SubjectID == subjectID {
			result = append(result, exam)
		}
	}
	return result, nil
}

type memTotalsRepo struct {
	stored      map[string]models.OverallTotal
	upsertCount int
	gridRows    []models.TotalsGridRow
	gridTotal   int
	lastSize    int
	exportRows  []models.TotalsGridRow
}

func (m *memTotalsRepo) Upsert(ctx context.Context, total *models.OverallTotal) error {
	if m.stored == nil {
		m.stored = make(map[string]models.OverallTotal)
	}
	m.stored[total.StudentID+"|"+total.SubjectID] = *total
	m.upsertCount++
	return nil
}

func (m *memTotalsRepo) TotalsGrid(ctx context.Context, subjectID string, scope models.RosterScope, page, size int) ([]models.TotalsGridRow, int, error) {
	m.lastSize = size
	return m.gridRows, m.gridTotal, nil
}

func (m *memTotalsRepo) TotalsForExport(ctx context.Context, subjectID string, scope models.RosterScope) ([]models.TotalsGridRow, error) {
	return m.exportRows, nil
}

type stubSubjectReader struct {
	subject *models.Subject
}

func (s *stubSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s.subject != nil && s.subject.ID == id {
		return s.subject, nil
	}
	return nil, sql.ErrNoRows
}

func newTotalsFixture(internals []models.InternalExamTotal, marks []models.ComponentMark) (*TotalsService, *memTotalsRepo) {
	repo := &memTotalsRepo{}
	subject := &stubSubjectReader{subject: &models.Subject{ID: "sub1", Code: "18CS51", Name: "Software Engineering", DepartmentID: "dep1", Semester: 5, Section: "A"}}
	svc := NewTotalsService(&memMarkReader{marks: marks}, &memInternalReader{totals: internals}, repo, subject, nil, zap.NewNop(), 200)
	return svc, repo
}

func exam(studentID, subjectID string, examNo int, total float64) models.InternalExamTotal {
	return models.InternalExamTotal{StudentID: studentID, SubjectID: subjectID, ExamNo: examNo, Total: total}
}

func mark(studentID, subjectID string, kind models.ComponentKind, attempt int, marks float64) models.ComponentMark {
	return models.ComponentMark{StudentID: studentID, SubjectID: subjectID, Component: kind, AttemptNo: attempt, Marks: marks}
}

func TestRecalcBestTwoOfThreeInternals(t *testing.T) {
	svc, repo := newTotalsFixture([]models.InternalExamTotal{
		exam("stu1", "sub1", 1, 25),
		exam("stu1", "sub1", 2, 30),
		exam("stu1", "sub1", 3, 20),
	}, nil)

	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	stored := repo.stored["stu1|sub1"]
	assert.Equal(t, 55.0, stored.InternalTotal)
	assert.Equal(t, 55.0, stored.OverallTotal)
}

func TestRecalcSingleInternalExam(t *testing.T) {
	svc, repo := newTotalsFixture([]models.InternalExamTotal{exam("stu1", "sub1", 1, 25)}, nil)

	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	assert.Equal(t, 25.0, repo.stored["stu1|sub1"].InternalTotal)
}

func TestRecalcAssignmentSlotTakesHigherKind(t *testing.T) {
	svc, repo := newTotalsFixture(
		[]models.InternalExamTotal{exam("stu1", "sub1", 1, 20), exam("stu1", "sub1", 2, 18)},
		[]models.ComponentMark{
			mark("stu1", "sub1", models.ComponentAssignment1, 1, 5),
			mark("stu1", "sub1", models.ComponentAssignment1, 2, 8),
			mark("stu1", "sub1", models.ComponentAssignment2, 1, 10),
			mark("stu1", "sub1", models.ComponentQuiz, 1, 7),
			mark("stu1", "sub1", models.ComponentSeminar, 1, 6),
		})

	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	stored := repo.stored["stu1|sub1"]
	assert.Equal(t, 38.0, stored.InternalTotal)
	assert.Equal(t, 10.0, stored.AssignmentScore)
	assert.Equal(t, 7.0, stored.QuizScore)
	assert.Equal(t, 6.0, stored.SeminarScore)
	assert.Equal(t, 61.0, stored.OverallTotal)
}

func TestRecalcMissingComponentsContributeZero(t *testing.T) {
	svc, repo := newTotalsFixture(nil, []models.ComponentMark{
		mark("stu1", "sub1", models.ComponentAssignment1, 1, 8),
	})

	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	stored := repo.stored["stu1|sub1"]
	assert.Equal(t, 0.0, stored.InternalTotal)
	assert.Equal(t, 8.0, stored.AssignmentScore)
	assert.Equal(t, 0.0, stored.QuizScore)
	assert.Equal(t, 0.0, stored.SeminarScore)
	assert.Equal(t, 8.0, stored.OverallTotal)
}

func TestRecalcIdempotent(t *testing.T) {
	svc, repo := newTotalsFixture(
		[]models.InternalExamTotal{exam("stu1", "sub1", 1, 25), exam("stu1", "sub1", 2, 30)},
		[]models.ComponentMark{mark("stu1", "sub1", models.ComponentQuiz, 1, 9)})

	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	first := repo.stored["stu1|sub1"]
	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	second := repo.stored["stu1|sub1"]

	assert.Equal(t, 2, repo.upsertCount)
	assert.Equal(t, first.OverallTotal, second.OverallTotal)
	assert.Equal(t, first.InternalTotal, second.InternalTotal)
	assert.Equal(t, first.QuizScore, second.QuizScore)
}

func TestRecalcSumMatchesConstituents(t *testing.T) {
	svc, repo := newTotalsFixture(
		[]models.InternalExamTotal{exam("stu1", "sub1", 1, 22), exam("stu1", "sub1", 2, 28), exam("stu1", "sub1", 3, 26)},
		[]models.ComponentMark{
			mark("stu1", "sub1", models.ComponentAssignment2, 1, 9),
			mark("stu1", "sub1", models.ComponentSeminar, 1, 4),
		})

	require.NoError(t, svc.Recalc(context.Background(), "stu1", "sub1"))
	stored := repo.stored["stu1|sub1"]
	assert.Equal(t, stored.InternalTotal+stored.AssignmentScore+stored.QuizScore+stored.SeminarScore, stored.OverallTotal)
}

func TestTotalsGridCapsPageSize(t *testing.T) {
	svc, repo := newTotalsFixture(nil, nil)

	_, err := svc.Grid(context.Background(), TotalsGridRequest{SubjectID: "sub1", Page: 1, Size: 1000})
	require.NoError(t, err)
	assert.Equal(t, 200, repo.lastSize)
}

func TestTotalsGridUnknownSubject(t *testing.T) {
	svc, _ := newTotalsFixture(nil, nil)

	_, err := svc.Grid(context.Background(), TotalsGridRequest{SubjectID: "missing", Page: 1, Size: 20})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportCSVContainsRows(t *testing.T) {
	svc, repo := newTotalsFixture(nil, nil)
	score := func(v float64) *float64 { return &v }
	repo.exportRows = []models.TotalsGridRow{
		{StudentID: "stu1", USN: "1VT22CS001", FullName: "Anita Rao", InternalTotal: score(55), AssignmentScore: score(10), QuizScore: score(7), SeminarScore: score(6), OverallTotal: score(78)},
		{StudentID: "stu2", USN: "1VT22CS002", FullName: "Bharath K"},
	}

	result, err := svc.Export(context.Background(), "sub1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "totals_18CS51.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)
	content := string(result.Payload)
	assert.True(t, strings.Contains(content, "1VT22CS001"))
	assert.True(t, strings.Contains(content, "78"))
	// the never-computed student still exports, with blank score cells
	assert.True(t, strings.Contains(content, "1VT22CS002"))
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc, _ := newTotalsFixture(nil, nil)

	_, err := svc.Export(context.Background(), "sub1", ExportFormat("docx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportXLSXAndPDF(t *testing.T) {
	svc, repo := newTotalsFixture(nil, nil)
	score := func(v float64) *float64 { return &v }
	repo.exportRows = []models.TotalsGridRow{{StudentID: "stu1", USN: "1VT22CS001", FullName: "Anita Rao", OverallTotal: score(78)}}

	xlsx, err := svc.Export(context.Background(), "sub1", FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "totals_18CS51.xlsx", xlsx.Filename)
	assert.NotEmpty(t, xlsx.Payload)

	pdf, err := svc.Export(context.Background(), "sub1", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "totals_18CS51.pdf", pdf.Filename)
	assert.NotEmpty(t, pdf.Payload)
}
