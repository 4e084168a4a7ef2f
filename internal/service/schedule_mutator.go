package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// Mutation operations, used as log and metric labels.
const (
	OpUpsert     = "upsert"
	OpRemove     = "remove"
	OpClear      = "clear"
	OpReplace    = "replace"
	OpRegenerate = "regenerate"
)

// MutationResult describes a committed slot write.
type MutationResult struct {
	Operation string              `json:"operation"`
	Slot      models.Slot         `json:"slot"`
	Cell      models.Cell         `json:"cell"`
	Removed   []string            `json:"removed,omitempty"`
	Added     []models.Assignment `json:"added,omitempty"`
	Snapshot  models.GridSnapshot `json:"-"`
}

// ScheduleMutator applies validated slot edits to the grid store. The store
// forwards each write's diff to the index, and both happen under the state
// write lock, so the pair changes as one step.
type ScheduleMutator struct {
	state  *scheduleState
	multi  bool
	rules  ValidatorConfig
	logger *zap.Logger
}

// NewScheduleMutator builds a mutator in single or multi assignment mode.
func NewScheduleMutator(state *scheduleState, multi bool, rules ValidatorConfig, logger *zap.Logger) *ScheduleMutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleMutator{state: state, multi: multi, rules: rules, logger: logger}
}

// UpsertAssignment validates and places teacherID/subject at slot. In multi
// mode the assignment is appended, or replaces the teacher's existing entry
// in place; in single mode it replaces the whole cell. An empty pair clears
// the slot.
func (m *ScheduleMutator) UpsertAssignment(classroomID string, slot models.Slot, teacherID, subject string) (MutationResult, Decision, error) {
	unlock, err := m.state.lockClassroom(classroomID)
	if err != nil {
		return MutationResult{}, Decision{}, err
	}
	defer unlock()

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	decision, err := m.state.validator(m.rules).Validate(classroomID, slot, teacherID, subject)
	if err != nil {
		return MutationResult{}, Decision{}, err
	}
	if !decision.Accepted {
		return MutationResult{}, decision, decision.Err()
	}
	if decision.Clears() {
		result, err := m.write(OpClear, classroomID, slot, nil)
		return result, decision, err
	}

	current, err := m.state.store.Cell(classroomID, slot)
	if err != nil {
		return MutationResult{}, decision, err
	}
	result, err := m.write(OpUpsert, classroomID, slot, m.upsertCell(current, decision.Assignment))
	return result, decision, err
}

func (m *ScheduleMutator) upsertCell(current models.Cell, assignment models.Assignment) models.Cell {
	if !m.multi {
		return models.Cell{assignment}
	}
	next := current.Clone()
	if idx := next.IndexOf(assignment.TeacherID); idx >= 0 {
		next[idx] = assignment
		return next
	}
	return append(next, assignment)
}

// RemoveAssignment drops teacherID from the slot, keeping the order of the
// remaining assignments.
func (m *ScheduleMutator) RemoveAssignment(classroomID string, slot models.Slot, teacherID string) (MutationResult, error) {
	if teacherID == "" {
		return MutationResult{}, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}

	unlock, err := m.state.lockClassroom(classroomID)
	if err != nil {
		return MutationResult{}, err
	}
	defer unlock()

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	current, err := m.state.store.Cell(classroomID, slot)
	if err != nil {
		return MutationResult{}, err
	}
	idx := current.IndexOf(teacherID)
	if idx < 0 {
		return MutationResult{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s is not assigned at %s in classroom %s", teacherID, slot, classroomID))
	}

	next := make(models.Cell, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	return m.write(OpRemove, classroomID, slot, next)
}

// ClearSlot empties the slot.
func (m *ScheduleMutator) ClearSlot(classroomID string, slot models.Slot) (MutationResult, error) {
	unlock, err := m.state.lockClassroom(classroomID)
	if err != nil {
		return MutationResult{}, err
	}
	defer unlock()

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	return m.write(OpClear, classroomID, slot, nil)
}

// ReplaceSlot swaps the whole assignment list of a slot. Every entry is
// validated as if upserted on its own; the first rejection aborts the call
// and is returned with its decision.
func (m *ScheduleMutator) ReplaceSlot(classroomID string, slot models.Slot, assignments []models.Assignment) (MutationResult, Decision, error) {
	unlock, err := m.state.lockClassroom(classroomID)
	if err != nil {
		return MutationResult{}, Decision{}, err
	}
	defer unlock()

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	validator := m.state.validator(m.rules)
	next := make(models.Cell, 0, len(assignments))
	for _, assignment := range assignments {
		decision, err := validator.Validate(classroomID, slot, assignment.TeacherID, assignment.Subject)
		if err != nil {
			return MutationResult{}, Decision{}, err
		}
		if !decision.Accepted {
			return MutationResult{}, decision, decision.Err()
		}
		if decision.Clears() {
			continue
		}
		if next.IndexOf(assignment.TeacherID) >= 0 {
			return MutationResult{}, decision, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s listed twice at %s", assignment.TeacherID, slot))
		}
		next = append(next, decision.Assignment)
	}
	if !m.multi && len(next) > 1 {
		return MutationResult{}, Decision{}, appErrors.Clone(appErrors.ErrValidation, "single assignment mode allows one assignment per slot")
	}

	result, err := m.write(OpReplace, classroomID, slot, next)
	return result, Decision{Accepted: true}, err
}

// write must run under the state write lock.
func (m *ScheduleMutator) write(op, classroomID string, slot models.Slot, cell models.Cell) (MutationResult, error) {
	diff, err := m.state.store.SetCell(classroomID, slot, cell)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrIndexConflict.Code) {
			m.logger.Error("index rejected grid write",
				zap.String("operation", op),
				zap.String("classroom_id", classroomID),
				zap.Stringer("slot", slot),
				zap.Error(err),
			)
		}
		return MutationResult{}, err
	}
	snapshot, err := m.state.store.Snapshot(classroomID)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{
		Operation: op,
		Slot:      slot,
		Cell:      snapshot.Grid.Cell(slot).Clone(),
		Removed:   diff.Removed,
		Added:     diff.Added,
		Snapshot:  snapshot,
	}, nil
}
