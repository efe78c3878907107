package models

import "time"

// ComponentKind identifies one gradable sub-assessment of a subject. The set
// is closed: two assignment slots, one quiz, one seminar. Internal (CIE)
// exams are tracked separately and feed aggregation as read-only input.
type ComponentKind string

const (
	ComponentAssignment1 ComponentKind = "A1"
	ComponentAssignment2 ComponentKind = "A2"
	ComponentQuiz        ComponentKind = "QZ"
	ComponentSeminar     ComponentKind = "SM"
)

// RollupSlot names the overall-total field a component kind feeds into.
type RollupSlot string

const (
	SlotAssignment RollupSlot = "assignment"
	SlotQuiz       RollupSlot = "quiz"
	SlotSeminar    RollupSlot = "seminar"
)

// ComponentRule declares how a component kind participates in aggregation.
// Kinds sharing a slot compete: the slot takes the highest per-kind value, so
// the two assignment kinds reward whichever attempt scored higher while quiz
// and seminar each fill their own slot. Adding a kind is a table change here,
// not a code change in the engine.
type ComponentRule struct {
	Slot RollupSlot
}

// ComponentRules is the aggregation-rule table keyed by component kind.
var ComponentRules = map[ComponentKind]ComponentRule{
	ComponentAssignment1: {Slot: SlotAssignment},
	ComponentAssignment2: {Slot: SlotAssignment},
	ComponentQuiz:        {Slot: SlotQuiz},
	ComponentSeminar:     {Slot: SlotSeminar},
}

// ValidComponent reports whether the code belongs to the closed enumeration.
func ValidComponent(kind ComponentKind) bool {
	_, ok := ComponentRules[kind]
	return ok
}

// SubjectComponent configures one component kind for a subject.
type SubjectComponent struct {
	ID           string        `db:"id" json:"id"`
	SubjectID    string        `db:"subject_id" json:"subject_id"`
	Component    ComponentKind `db:"component" json:"component"`
	MaxMarks     float64       `db:"max_marks" json:"max_marks"`
	AttemptCount int           `db:"attempt_count" json:"attempt_count"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ComponentMark is one examiner-entered score for a student, subject,
// component kind and attempt.
type ComponentMark struct {
	ID        string        `db:"id" json:"id"`
	StudentID string        `db:"student_id" json:"student_id"`
	SubjectID string        `db:"subject_id" json:"subject_id"`
	Component ComponentKind `db:"component" json:"component"`
	AttemptNo int           `db:"attempt_no" json:"attempt_no"`
	Marks     float64       `db:"marks" json:"marks"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// InternalExamTotal is the precomputed total of one internal (CIE) exam.
// Owned by the internal-exam subsystem; read-only here.
type InternalExamTotal struct {
	ID        string  `db:"id" json:"id"`
	StudentID string  `db:"student_id" json:"student_id"`
	SubjectID string  `db:"subject_id" json:"subject_id"`
	ExamNo    int     `db:"exam_no" json:"exam_no"`
	Total     float64 `db:"total" json:"total"`
}

// OverallTotal is the materialized per-subject rollup for a student. It is
// recomputed from scratch on every component-mark write; the stored sum must
// always equal the sum of its four constituent fields.
type OverallTotal struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	InternalTotal   float64   `db:"internal_total" json:"internal_total"`
	AssignmentScore float64   `db:"assignment_score" json:"assignment_score"`
	QuizScore       float64   `db:"quiz_score" json:"quiz_score"`
	SeminarScore    float64   `db:"seminar_score" json:"seminar_score"`
	OverallTotal    float64   `db:"overall_total" json:"overall_total"`
	CalculatedAt    time.Time `db:"calculated_at" json:"calculated_at"`
}

// MarkGridRow is a roster row joined with the requested mark. Marks is nil
// when the student has not been graded yet, which is distinct from an
// explicit zero.
type MarkGridRow struct {
	StudentID string   `db:"student_id" json:"student_id"`
	USN       string   `db:"usn" json:"usn"`
	FullName  string   `db:"full_name" json:"full_name"`
	Marks     *float64 `db:"marks" json:"marks"`
}

// TotalsGridRow is a roster row joined with the materialized overall total.
// All score fields are nil until the first recompute for that student.
type TotalsGridRow struct {
	StudentID       string   `db:"student_id" json:"student_id"`
	USN             string   `db:"usn" json:"usn"`
	FullName        string   `db:"full_name" json:"full_name"`
	InternalTotal   *float64 `db:"internal_total" json:"internal_total"`
	AssignmentScore *float64 `db:"assignment_score" json:"assignment_score"`
	QuizScore       *float64 `db:"quiz_score" json:"quiz_score"`
	SeminarScore    *float64 `db:"seminar_score" json:"seminar_score"`
	OverallTotal    *float64 `db:"overall_total" json:"overall_total"`
}
