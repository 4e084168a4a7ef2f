package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Classroom is a class section owning one weekly grid.
type Classroom struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Grade      string         `db:"grade" json:"grade"`
	Curriculum map[string]int `db:"-" json:"curriculum,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Offers reports whether subject belongs to the curriculum. An empty
// curriculum offers every subject.
func (c Classroom) Offers(subject string) bool {
	if len(c.Curriculum) == 0 {
		return true
	}
	_, ok := c.Curriculum[subject]
	return ok
}

// ClassroomRecord is the row shape of the classrooms table.
type ClassroomRecord struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Grade      string         `db:"grade"`
	Curriculum types.JSONText `db:"curriculum"`
	CreatedAt  time.Time      `db:"created_at"`
}

// ClassroomGridRecord stores the serialised allocation of a classroom.
type ClassroomGridRecord struct {
	ClassroomID string         `db:"classroom_id"`
	Allocation  types.JSONText `db:"allocation"`
	Version     int64          `db:"version"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// ClassroomStats summarises how far a classroom's week is filled.
type ClassroomStats struct {
	ClassroomID          string         `json:"classroom_id"`
	TotalSlots           int            `json:"total_slots"`
	FilledSlots          int            `json:"filled_slots"`
	CompletionPercentage int            `json:"completion_percentage"`
	SubjectCount         map[string]int `json:"subject_count"`
	TeacherCount         map[string]int `json:"teacher_count"`
	RemainingDemand      map[string]int `json:"remaining_demand,omitempty"`
}
