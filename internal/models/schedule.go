package models

// Conflict dimensions reported alongside scheduling errors.
const (
	ConflictDimensionTeacher  = "TEACHER"
	ConflictDimensionSlot     = "SLOT"
	ConflictDimensionUnknown  = "UNKNOWN_TEACHER"
	ConflictDimensionCapacity = "CAPACITY"
)

// ScheduleConflict describes a teacher claimed twice at the same slot.
type ScheduleConflict struct {
	TeacherID         string `json:"teacher_id"`
	Day               int    `json:"day"`
	Period            int    `json:"period"`
	ClassroomID       string `json:"classroom_id"`
	Subject           string `json:"subject,omitempty"`
	ExistingClassroom string `json:"existing_classroom_id,omitempty"`
	ExistingSubject   string `json:"existing_subject,omitempty"`
	Dimension         string `json:"dimension"`
}

// Slot returns the coordinate the conflict happened at.
func (c ScheduleConflict) Slot() Slot {
	return Slot{Day: c.Day, Period: c.Period}
}

// ScheduleConflictError carries conflict details through typed errors.
type ScheduleConflictError struct {
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
