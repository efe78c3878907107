package models

import "time"

// Subject represents a taught subject bound to a department cohort.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Semester     int       `db:"semester" json:"semester"`
	Section      string    `db:"section" json:"section"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Scope returns the roster scope the subject is taught to.
func (s *Subject) Scope() RosterScope {
	return RosterScope{DepartmentID: s.DepartmentID, Semester: s.Semester, Section: s.Section}
}
