package dto

import "github.com/noah-isme/sma-timetable-engine/internal/models"

// SlotRequest addresses one cell of a classroom grid.
type SlotRequest struct {
	Day    *int `json:"day" form:"day" validate:"required,min=0,max=4"`
	Period *int `json:"period" form:"period" validate:"required,min=0,max=5"`
}

// Slot converts the request into a grid coordinate. Callers validate first.
func (r SlotRequest) Slot() models.Slot {
	var slot models.Slot
	if r.Day != nil {
		slot.Day = *r.Day
	}
	if r.Period != nil {
		slot.Period = *r.Period
	}
	return slot
}

// AssignmentRequest sets a (teacher, subject) pair in a slot. Sending both
// fields empty clears the slot.
type AssignmentRequest struct {
	SlotRequest
	TeacherID string `json:"teacherId"`
	Subject   string `json:"subject"`
}

// RemoveAssignmentRequest drops one teacher from a slot.
type RemoveAssignmentRequest struct {
	SlotRequest
	TeacherID string `json:"teacherId" form:"teacherId" validate:"required"`
}

// AssignmentPair is one entry of a bulk slot replacement.
type AssignmentPair struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
}

// ReplaceSlotRequest overwrites a slot with the given assignments.
type ReplaceSlotRequest struct {
	SlotRequest
	Assignments []AssignmentPair `json:"assignments" validate:"omitempty,max=16,dive"`
}

// ToAssignments converts the pairs into model assignments.
func (r ReplaceSlotRequest) ToAssignments() []models.Assignment {
	out := make([]models.Assignment, 0, len(r.Assignments))
	for _, pair := range r.Assignments {
		out = append(out, models.Assignment{TeacherID: pair.TeacherID, Subject: pair.Subject})
	}
	return out
}

// AvailableTeachersQuery lists teachers that could take a slot.
type AvailableTeachersQuery struct {
	SlotRequest
	Subject string `form:"subject" validate:"required"`
}

// MutationResponse describes an applied grid change.
type MutationResponse struct {
	Operation string              `json:"operation"`
	Slot      models.Slot         `json:"slot"`
	Cell      models.Cell         `json:"cell"`
	Removed   []string            `json:"removed,omitempty"`
	Added     []models.Assignment `json:"added,omitempty"`
	Version   int64               `json:"version"`
}

// SlotAvailabilityResponse answers whether a teacher is free at a slot.
type SlotAvailabilityResponse struct {
	TeacherID string            `json:"teacherId"`
	Slot      models.Slot       `json:"slot"`
	Free      bool              `json:"free"`
	Occupancy *models.Occupancy `json:"occupancy,omitempty"`
}
