package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vtu-tools/college-erp-api/internal/models"
)

// In-memory gradebook shared by the mark writer, the grid reader and the
// aggregation engine, so entry, grid and totals run against the same state.
type scenarioMarkStore struct {
	mu    sync.Mutex
	marks []models.ComponentMark
}

func (s *scenarioMarkStore) Upsert(ctx context.Context, mark *models.ComponentMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.marks {
		if existing.StudentID == mark.StudentID && existing.SubjectID == mark.SubjectID &&
			existing.Component == mark.Component && existing.AttemptNo == mark.AttemptNo {
			s.marks[i].Marks = mark.Marks
			return nil
		}
	}
	s.marks = append(s.marks, *mark)
	return nil
}

func (s *scenarioMarkStore) ListByStudentSubject(ctx context.Context, studentID, subjectID string) ([]models.ComponentMark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.ComponentMark
	for _, mark := range s.marks {
		if mark.StudentID == studentID && mark.SubjectID == subjectID {
			result = append(result, mark)
		}
	}
	return result, nil
}

func (s *scenarioMarkStore) find(studentID, subjectID string, component models.ComponentKind, attemptNo int) *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mark := range s.marks {
		if mark.StudentID == studentID && mark.SubjectID == subjectID &&
			mark.Component == component && mark.AttemptNo == attemptNo {
			v := mark.Marks
			return &v
		}
	}
	return nil
}

type scenarioStudents struct {
	roster []models.Student
	marks  *scenarioMarkStore
}

func (s *scenarioStudents) FindByUSN(ctx context.Context, usn string) (*models.Student, error) {
	for i := range s.roster {
		if s.roster[i].USN == usn {
			return &s.roster[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scenarioStudents) Roster(ctx context.Context, scope models.RosterScope) ([]models.Student, error) {
	return s.roster, nil
}

func (s *scenarioStudents) MarkGrid(ctx context.Context, subjectID string, scope models.RosterScope, component models.ComponentKind, attemptNo, page, size int) ([]models.MarkGridRow, int, error) {
	rows := make([]models.MarkGridRow, 0, len(s.roster))
	for _, student := range s.roster {
		rows = append(rows, models.MarkGridRow{
			StudentID: student.ID,
			USN:       student.USN,
			FullName:  student.FullName,
			Marks:     s.marks.find(student.ID, subjectID, component, attemptNo),
		})
	}
	return rows, len(rows), nil
}

type scenarioTotals struct {
	mu     sync.Mutex
	stored map[string]models.OverallTotal
	roster []models.Student
}

func (s *scenarioTotals) Upsert(ctx context.Context, total *models.OverallTotal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = make(map[string]models.OverallTotal)
	}
	s.stored[total.StudentID+"|"+total.SubjectID] = *total
	return nil
}

func (s *scenarioTotals) TotalsGrid(ctx context.Context, subjectID string, scope models.RosterScope, page, size int) ([]models.TotalsGridRow, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]models.TotalsGridRow, 0, len(s.roster))
	for _, student := range s.roster {
		row := models.TotalsGridRow{StudentID: student.ID, USN: student.USN, FullName: student.FullName}
		if total, ok := s.stored[student.ID+"|"+subjectID]; ok {
			row.InternalTotal = &total.InternalTotal
			row.AssignmentScore = &total.AssignmentScore
			row.QuizScore = &total.QuizScore
			row.SeminarScore = &total.SeminarScore
			row.OverallTotal = &total.OverallTotal
		}
		rows = append(rows, row)
	}
	return rows, len(rows), nil
}

func (s *scenarioTotals) TotalsForExport(ctx context.Context, subjectID string, scope models.RosterScope) ([]models.TotalsGridRow, error) {
	rows, _, err := s.TotalsGrid(ctx, subjectID, scope, 1, len(s.roster))
	return rows, err
}

func TestConcurrentEntriesConvergeOnFreshRecompute(t *testing.T) {
	roster := []models.Student{
		{ID: "stu1", USN: "1VT22CS001", FullName: "Anita Rao", DepartmentID: "dep1", Semester: 5, Section: "A", Active: true},
	}
	markStore := &scenarioMarkStore{}
	students := &scenarioStudents{roster: roster, marks: markStore}
	totalsRepo := &scenarioTotals{roster: roster}
	internals := &memInternalReader{totals: []models.InternalExamTotal{
		exam("stu1", "sub1", 1, 25),
		exam("stu1", "sub1", 2, 30),
		exam("stu1", "sub1", 3, 20),
	}}
	subjects := &stubSubjectReader{subject: &models.Subject{ID: "sub1", Code: "18CS51", Name: "Software Engineering", DepartmentID: "dep1", Semester: 5, Section: "A"}}
	configs := &mockConfigRepo{configs: map[models.ComponentKind]*models.SubjectComponent{
		models.ComponentAssignment1: {ID: "c1", SubjectID: "sub1", Component: models.ComponentAssignment1, MaxMarks: 10, AttemptCount: 2},
		models.ComponentAssignment2: {ID: "c2", SubjectID: "sub1", Component: models.ComponentAssignment2, MaxMarks: 10, AttemptCount: 1},
		models.ComponentQuiz:        {ID: "c3", SubjectID: "sub1", Component: models.ComponentQuiz, MaxMarks: 10, AttemptCount: 1},
		models.ComponentSeminar:     {ID: "c4", SubjectID: "sub1", Component: models.ComponentSeminar, MaxMarks: 10, AttemptCount: 1},
	}}

	totalsSvc := NewTotalsService(markStore, internals, totalsRepo, subjects, nil, zap.NewNop(), 200)
	componentSvc := NewComponentService(configs, markStore, students, subjects, totalsSvc, validator.New(), zap.NewNop(), 200)

	entries := []UpsertMarkRequest{
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentAssignment1, AttemptNo: 1, Marks: marksOf(5)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentAssignment1, AttemptNo: 2, Marks: marksOf(8)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentAssignment2, AttemptNo: 1, Marks: marksOf(10)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentQuiz, AttemptNo: 1, Marks: marksOf(7)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentSeminar, AttemptNo: 1, Marks: marksOf(6)},
	}

	// every entry repeatedly upserted from racing goroutines, all for one
	// (student, subject) pair, each write triggering its own recompute
	start := make(chan struct{})
	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for _, entry := range entries {
			wg.Add(1)
			go func(entry UpsertMarkRequest) {
				defer wg.Done()
				<-start
				_, err := componentSvc.UpsertMark(context.Background(), entry)
				assert.NoError(t, err)
			}(entry)
		}
	}
	close(start)
	wg.Wait()

	// the last recompute to run holds the pair lock after every mark write,
	// so the stored snapshot must equal a recompute over the full state
	stored, ok := totalsRepo.stored["stu1|sub1"]
	require.True(t, ok)
	assert.Equal(t, 55.0, stored.InternalTotal)
	assert.Equal(t, 10.0, stored.AssignmentScore)
	assert.Equal(t, 7.0, stored.QuizScore)
	assert.Equal(t, 6.0, stored.SeminarScore)
	assert.Equal(t, 78.0, stored.OverallTotal)

	require.NoError(t, totalsSvc.Recalc(context.Background(), "stu1", "sub1"))
	fresh := totalsRepo.stored["stu1|sub1"]
	assert.Equal(t, stored.OverallTotal, fresh.OverallTotal)
	assert.Equal(t, stored.InternalTotal, fresh.InternalTotal)
}

func TestEntryGridTotalsWorkflow(t *testing.T) {
	roster := []models.Student{
		{ID: "stu1", USN: "1VT22CS001", FullName: "Anita Rao", DepartmentID: "dep1", Semester: 5, Section: "A", Active: true},
		{ID: "stu2", USN: "1VT22CS002", FullName: "Bharath K", DepartmentID: "dep1", Semester: 5, Section: "A", Active: true},
	}
	markStore := &scenarioMarkStore{}
	students := &scenarioStudents{roster: roster, marks: markStore}
	totalsRepo := &scenarioTotals{roster: roster}
	internals := &memInternalReader{totals: []models.InternalExamTotal{
		exam("stu1", "sub1", 1, 25),
		exam("stu1", "sub1", 2, 30),
		exam("stu1", "sub1", 3, 20),
	}}
	subjects := &stubSubjectReader{subject: &models.Subject{ID: "sub1", Code: "18CS51", Name: "Software Engineering", DepartmentID: "dep1", Semester: 5, Section: "A"}}
	configs := &mockConfigRepo{configs: map[models.ComponentKind]*models.SubjectComponent{
		models.ComponentAssignment1: {ID: "c1", SubjectID: "sub1", Component: models.ComponentAssignment1, MaxMarks: 10, AttemptCount: 2},
		models.ComponentAssignment2: {ID: "c2", SubjectID: "sub1", Component: models.ComponentAssignment2, MaxMarks: 10, AttemptCount: 1},
		models.ComponentQuiz:        {ID: "c3", SubjectID: "sub1", Component: models.ComponentQuiz, MaxMarks: 10, AttemptCount: 1},
		models.ComponentSeminar:     {ID: "c4", SubjectID: "sub1", Component: models.ComponentSeminar, MaxMarks: 10, AttemptCount: 1},
	}}

	totalsSvc := NewTotalsService(markStore, internals, totalsRepo, subjects, nil, zap.NewNop(), 200)
	componentSvc := NewComponentService(configs, markStore, students, subjects, totalsSvc, validator.New(), zap.NewNop(), 200)

	entries := []UpsertMarkRequest{
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentAssignment1, AttemptNo: 1, Marks: marksOf(5)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentAssignment1, AttemptNo: 2, Marks: marksOf(8)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentAssignment2, AttemptNo: 1, Marks: marksOf(10)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentQuiz, AttemptNo: 1, Marks: marksOf(7)},
		{StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentSeminar, AttemptNo: 1, Marks: marksOf(6)},
	}
	for _, entry := range entries {
		_, err := componentSvc.UpsertMark(context.Background(), entry)
		require.NoError(t, err)
	}

	// grid reflects the stored marks, ungraded student stays null
	grid, err := componentSvc.Grid(context.Background(), GridRequest{
		SubjectID: "sub1", Component: models.ComponentAssignment1, AttemptNo: 2, Page: 1, Size: 20,
	})
	require.NoError(t, err)
	require.Len(t, grid.Rows, 2)
	require.NotNil(t, grid.Rows[0].Marks)
	assert.Equal(t, 8.0, *grid.Rows[0].Marks)
	assert.Nil(t, grid.Rows[1].Marks)

	// totals: best two internals 30+25, assignment max(8, 10), quiz 7, seminar 6
	totals, err := totalsSvc.Grid(context.Background(), TotalsGridRequest{SubjectID: "sub1", Page: 1, Size: 20})
	require.NoError(t, err)
	require.Len(t, totals.Rows, 2)
	require.NotNil(t, totals.Rows[0].OverallTotal)
	assert.Equal(t, 55.0, *totals.Rows[0].InternalTotal)
	assert.Equal(t, 10.0, *totals.Rows[0].AssignmentScore)
	assert.Equal(t, 78.0, *totals.Rows[0].OverallTotal)
	assert.Nil(t, totals.Rows[1].OverallTotal)

	// overwriting a mark recomputes the snapshot
	_, err = componentSvc.UpsertMark(context.Background(), UpsertMarkRequest{
		StudentUSN: "1VT22CS001", SubjectID: "sub1", Component: models.ComponentQuiz, AttemptNo: 1, Marks: marksOf(9),
	})
	require.NoError(t, err)
	totals, err = totalsSvc.Grid(context.Background(), TotalsGridRequest{SubjectID: "sub1", Page: 1, Size: 20})
	require.NoError(t, err)
	assert.Equal(t, 80.0, *totals.Rows[0].OverallTotal)
}
