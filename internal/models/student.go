package models

import "time"

// Student represents a student record. Roster membership for a subject is
// resolved by department, semester and section.
type Student struct {
	ID           string    `db:"id" json:"id"`
	USN          string    `db:"usn" json:"usn"`
	FullName     string    `db:"full_name" json:"full_name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Semester     int       `db:"semester" json:"semester"`
	Section      string    `db:"section" json:"section"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RosterScope identifies the cohort of students a subject is taught to.
type RosterScope struct {
	DepartmentID string
	Semester     int
	Section      string
}
