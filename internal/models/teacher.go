package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher is an instructor together with the qualifications the validator checks.
type Teacher struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"full_name" json:"name"`
	Email     string         `db:"email" json:"email"`
	Subjects  pq.StringArray `db:"subjects" json:"subjects"`
	Grades    pq.StringArray `db:"grades" json:"grades"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Teaches reports whether the teacher may teach subject. No subjects means any.
func (t Teacher) Teaches(subject string) bool {
	return len(t.Subjects) == 0 || contains(t.Subjects, subject)
}

// CoversGrade reports whether the teacher may teach grade. No grades means any.
func (t Teacher) CoversGrade(grade string) bool {
	return len(t.Grades) == 0 || contains(t.Grades, grade)
}

// TeacherWorkload summarises a teacher's booked periods.
type TeacherWorkload struct {
	TeacherID      string         `json:"teacher_id"`
	BookedPeriods  int            `json:"booked_periods"`
	LoadPercentage int            `json:"load_percentage"`
	SubjectCount   map[string]int `json:"subject_count"`
	GradeCount     map[string]int `json:"grade_count"`
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
