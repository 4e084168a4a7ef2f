package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// TeacherRoster is the read-only teacher directory the validator consults.
type TeacherRoster struct {
	teachers map[string]models.Teacher
}

// NewTeacherRoster indexes teachers by id. Later duplicates win.
func NewTeacherRoster(teachers []models.Teacher) *TeacherRoster {
	roster := &TeacherRoster{teachers: make(map[string]models.Teacher, len(teachers))}
	for _, teacher := range teachers {
		roster.teachers[teacher.ID] = teacher
	}
	return roster
}

// Get returns the teacher with id.
func (r *TeacherRoster) Get(id string) (models.Teacher, bool) {
	if r == nil {
		return models.Teacher{}, false
	}
	teacher, ok := r.teachers[id]
	return teacher, ok
}

// All lists teachers ordered by id.
func (r *TeacherRoster) All() []models.Teacher {
	if r == nil {
		return nil
	}
	out := make([]models.Teacher, 0, len(r.teachers))
	for _, teacher := range r.teachers {
		out = append(out, teacher)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the roster size.
func (r *TeacherRoster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.teachers)
}

// RejectReason names why a proposed assignment was refused.
type RejectReason string

// Reject reasons share their names with the error codes they map to.
const (
	ReasonIncompleteAssignment RejectReason = "INCOMPLETE_ASSIGNMENT"
	ReasonSubjectMismatch      RejectReason = "SUBJECT_MISMATCH"
	ReasonGradeMismatch        RejectReason = "GRADE_MISMATCH"
	ReasonDoubleBooked         RejectReason = "DOUBLE_BOOKED"
	ReasonSubjectNotOffered    RejectReason = "SUBJECT_NOT_OFFERED"
)

var reasonErrors = map[RejectReason]*appErrors.Error{
	ReasonIncompleteAssignment: appErrors.ErrIncompleteAssignment,
	ReasonSubjectMismatch:      appErrors.ErrSubjectMismatch,
	ReasonGradeMismatch:        appErrors.ErrGradeMismatch,
	ReasonDoubleBooked:         appErrors.ErrDoubleBooked,
	ReasonSubjectNotOffered:    appErrors.ErrSubjectNotOffered,
}

// Decision is the validator verdict. A rejected decision must not be applied.
type Decision struct {
	Accepted   bool              `json:"accepted"`
	Assignment models.Assignment `json:"assignment"`
	Reason     RejectReason      `json:"reason,omitempty"`
	Message    string            `json:"message,omitempty"`
	// Occupancy is set for DOUBLE_BOOKED and names the competing classroom.
	Occupancy *models.Occupancy `json:"occupancy,omitempty"`
}

// Clears reports whether the accepted assignment means "empty the slot".
func (d Decision) Clears() bool {
	return d.Accepted && d.Assignment.Empty()
}

// Err converts a rejection into its typed error, nil when accepted.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	base, ok := reasonErrors[d.Reason]
	if !ok {
		base = appErrors.ErrValidation
	}
	return appErrors.Clone(base, d.Message)
}

func reject(reason RejectReason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// ValidatorConfig toggles the optional rules.
type ValidatorConfig struct {
	EnforceGrade      bool
	EnforceCurriculum bool
}

// AssignmentValidator decides whether a proposed assignment is legal. It
// only reads the store and index; callers hold the read lock.
type AssignmentValidator struct {
	store  *GridStore
	index  *AvailabilityIndex
	roster *TeacherRoster
	cfg    ValidatorConfig
}

// NewAssignmentValidator wires the validator against shared state.
func NewAssignmentValidator(store *GridStore, index *AvailabilityIndex, roster *TeacherRoster, cfg ValidatorConfig) *AssignmentValidator {
	return &AssignmentValidator{store: store, index: index, roster: roster, cfg: cfg}
}

// Validate checks, in order: completeness, subject qualification, grade
// qualification, cross-classroom availability and finally the optional
// curriculum rule. Unknown classroom or teacher and an out-of-range slot
// are errors, not rejections.
func (v *AssignmentValidator) Validate(classroomID string, slot models.Slot, teacherID, subject string) (Decision, error) {
	classroom, err := v.store.Classroom(classroomID)
	if err != nil {
		return Decision{}, err
	}
	if !slot.Valid() {
		return Decision{}, invalidSlotError(slot)
	}

	proposed := models.Assignment{TeacherID: teacherID, Subject: subject}
	if proposed.Empty() {
		return Decision{Accepted: true}, nil
	}
	if teacherID == "" || subject == "" {
		return reject(ReasonIncompleteAssignment, "teacher and subject must both be set or both be empty"), nil
	}

	teacher, ok := v.roster.Get(teacherID)
	if !ok {
		return Decision{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", teacherID))
	}

	if !teacher.Teaches(subject) {
		return reject(ReasonSubjectMismatch, fmt.Sprintf("teacher %s is not qualified to teach %s", teacherID, subject)), nil
	}
	if v.cfg.EnforceGrade && !teacher.CoversGrade(classroom.Grade) {
		return reject(ReasonGradeMismatch, fmt.Sprintf("teacher %s does not teach grade %s", teacherID, classroom.Grade)), nil
	}
	if occ := v.index.OccupancyOf(teacherID, slot); occ != nil && occ.ClassroomID != classroomID {
		decision := reject(ReasonDoubleBooked, fmt.Sprintf("teacher %s already teaches %s in classroom %s at %s", teacherID, occ.Subject, occ.ClassroomID, slot))
		decision.Occupancy = occ
		return decision, nil
	}
	if v.cfg.EnforceCurriculum && !classroom.Offers(subject) {
		return reject(ReasonSubjectNotOffered, fmt.Sprintf("classroom %s does not offer %s", classroomID, subject)), nil
	}

	return Decision{Accepted: true, Assignment: proposed}, nil
}
