package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// GradeLookup resolves the grade recorded on occupancy entries.
type GradeLookup interface {
	GradeOf(classroomID string) string
}

// AvailabilityIndex maps teacher -> week of occupancy, derived from the
// classroom grids. A teacher occupies at most one classroom per slot.
// Not safe for concurrent use.
type AvailabilityIndex struct {
	rows   map[string]*models.TeacherWeek
	grades GradeLookup
}

// NewAvailabilityIndex builds an empty index.
func NewAvailabilityIndex(grades GradeLookup) *AvailabilityIndex {
	return &AvailabilityIndex{rows: make(map[string]*models.TeacherWeek), grades: grades}
}

// Rebuild discards the index and rescans every grid once. Double claims are
// never overwritten: the first classroom in id order keeps the slot and the
// rest are reported as INDEX_CONFLICT.
func (x *AvailabilityIndex) Rebuild(grids map[string]models.Grid) ([]models.ScheduleConflict, error) {
	x.rows = make(map[string]*models.TeacherWeek)

	ids := make([]string, 0, len(grids))
	for id := range grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var conflicts []models.ScheduleConflict
	for _, classroomID := range ids {
		grid := grids[classroomID]
		for _, slot := range models.AllSlots() {
			for _, a := range grid.Cell(slot) {
				if a.TeacherID == "" {
					continue
				}
				if existing := x.at(a.TeacherID, slot); existing != nil {
					conflicts = append(conflicts, conflictFor(a, classroomID, slot, existing))
					continue
				}
				x.write(a.TeacherID, slot, x.occupancy(classroomID, a.Subject))
			}
		}
	}
	if len(conflicts) > 0 {
		return conflicts, indexConflictError("rebuild found double-booked teachers", conflicts)
	}
	return nil, nil
}

// ApplyDiff clears removed teachers and records added ones at slot. The
// whole diff is checked first; on conflict nothing changes.
func (x *AvailabilityIndex) ApplyDiff(classroomID string, slot models.Slot, removedTeacherIDs []string, added []models.Assignment) error {
	if !slot.Valid() {
		return invalidSlotError(slot)
	}

	removed := make(map[string]struct{}, len(removedTeacherIDs))
	var conflicts []models.ScheduleConflict
	for _, teacherID := range removedTeacherIDs {
		removed[teacherID] = struct{}{}
		existing := x.at(teacherID, slot)
		if existing == nil || existing.ClassroomID != classroomID {
			conflicts = append(conflicts, models.ScheduleConflict{
				TeacherID:         teacherID,
				Day:               slot.Day,
				Period:            slot.Period,
				ClassroomID:       classroomID,
				ExistingClassroom: occupancyClassroom(existing),
				Dimension:         models.ConflictDimensionSlot,
			})
		}
	}

	claimed := make(map[string]struct{}, len(added))
	for _, a := range added {
		if _, dup := claimed[a.TeacherID]; dup {
			conflicts = append(conflicts, models.ScheduleConflict{
				TeacherID:   a.TeacherID,
				Day:         slot.Day,
				Period:      slot.Period,
				ClassroomID: classroomID,
				Subject:     a.Subject,
				Dimension:   models.ConflictDimensionSlot,
			})
			continue
		}
		claimed[a.TeacherID] = struct{}{}
		existing := x.at(a.TeacherID, slot)
		if existing == nil {
			continue
		}
		if _, freed := removed[a.TeacherID]; freed && existing.ClassroomID == classroomID {
			continue
		}
		conflicts = append(conflicts, conflictFor(a, classroomID, slot, existing))
	}
	if len(conflicts) > 0 {
		return indexConflictError(fmt.Sprintf("diff for classroom %s at %s disagrees with index", classroomID, slot), conflicts)
	}

	for teacherID := range removed {
		x.clear(teacherID, slot)
	}
	for _, a := range added {
		x.write(a.TeacherID, slot, x.occupancy(classroomID, a.Subject))
	}
	return nil
}

// ClearClassroom removes the occupancy grid contributed for classroomID.
func (x *AvailabilityIndex) ClearClassroom(classroomID string, grid models.Grid) {
	for _, slot := range models.AllSlots() {
		for _, a := range grid.Cell(slot) {
			if existing := x.at(a.TeacherID, slot); existing != nil && existing.ClassroomID == classroomID {
				x.clear(a.TeacherID, slot)
			}
		}
	}
}

// IndexClassroom records every assignment of grid for classroomID. The grid
// is checked as a whole before anything is written.
func (x *AvailabilityIndex) IndexClassroom(classroomID string, grid models.Grid) error {
	conflicts := x.Sweep(classroomID, grid)
	if len(conflicts) > 0 {
		return indexConflictError(fmt.Sprintf("classroom %s grid conflicts with index", classroomID), conflicts)
	}
	for _, slot := range models.AllSlots() {
		for _, a := range grid.Cell(slot) {
			x.write(a.TeacherID, slot, x.occupancy(classroomID, a.Subject))
		}
	}
	return nil
}

// Sweep reports every slot where grid would double-book a teacher, either
// against other classrooms or within one of its own cells. Occupancy held
// by classroomID itself is ignored since the grid replaces it.
func (x *AvailabilityIndex) Sweep(classroomID string, grid models.Grid) []models.ScheduleConflict {
	var conflicts []models.ScheduleConflict
	for _, slot := range models.AllSlots() {
		seen := make(map[string]struct{})
		for _, a := range grid.Cell(slot) {
			if _, dup := seen[a.TeacherID]; dup {
				conflicts = append(conflicts, models.ScheduleConflict{
					TeacherID:         a.TeacherID,
					Day:               slot.Day,
					Period:            slot.Period,
					ClassroomID:       classroomID,
					Subject:           a.Subject,
					ExistingClassroom: classroomID,
					Dimension:         models.ConflictDimensionSlot,
				})
				continue
			}
			seen[a.TeacherID] = struct{}{}
			if existing := x.at(a.TeacherID, slot); existing != nil && existing.ClassroomID != classroomID {
				conflicts = append(conflicts, conflictFor(a, classroomID, slot, existing))
			}
		}
	}
	return conflicts
}

// IsFree reports whether the teacher has no occupancy at slot. Unknown
// teachers are free everywhere.
func (x *AvailabilityIndex) IsFree(teacherID string, slot models.Slot) bool {
	return x.at(teacherID, slot) == nil
}

// OccupancyOf returns a copy of the teacher's occupancy at slot, or nil.
func (x *AvailabilityIndex) OccupancyOf(teacherID string, slot models.Slot) *models.Occupancy {
	existing := x.at(teacherID, slot)
	if existing == nil {
		return nil
	}
	occ := *existing
	return &occ
}

// Row returns a copy of the teacher's week.
func (x *AvailabilityIndex) Row(teacherID string) models.TeacherWeek {
	var week models.TeacherWeek
	row, ok := x.rows[teacherID]
	if !ok {
		return week
	}
	for day := range row {
		for period := range row[day] {
			if occ := row[day][period]; occ != nil {
				copied := *occ
				week[day][period] = &copied
			}
		}
	}
	return week
}

// Teachers lists teachers holding at least one occupancy, sorted.
func (x *AvailabilityIndex) Teachers() []string {
	ids := make([]string, 0, len(x.rows))
	for id := range x.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Drift lists every (teacher, slot) where x and other disagree.
func (x *AvailabilityIndex) Drift(other *AvailabilityIndex) []IndexDrift {
	teachers := make(map[string]struct{}, len(x.rows)+len(other.rows))
	for id := range x.rows {
		teachers[id] = struct{}{}
	}
	for id := range other.rows {
		teachers[id] = struct{}{}
	}
	ids := make([]string, 0, len(teachers))
	for id := range teachers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var drift []IndexDrift
	for _, teacherID := range ids {
		for _, slot := range models.AllSlots() {
			live := x.at(teacherID, slot)
			expected := other.at(teacherID, slot)
			if sameOccupancy(live, expected) {
				continue
			}
			drift = append(drift, IndexDrift{
				TeacherID: teacherID,
				Slot:      slot,
				Live:      x.OccupancyOf(teacherID, slot),
				Expected:  other.OccupancyOf(teacherID, slot),
			})
		}
	}
	return drift
}

// Equal reports whether both indexes hold identical occupancy.
func (x *AvailabilityIndex) Equal(other *AvailabilityIndex) bool {
	return len(x.Drift(other)) == 0
}

// IndexDrift is one disagreement between the live index and a fresh rebuild.
type IndexDrift struct {
	TeacherID string            `json:"teacher_id"`
	Slot      models.Slot       `json:"slot"`
	Live      *models.Occupancy `json:"live,omitempty"`
	Expected  *models.Occupancy `json:"expected,omitempty"`
}

func (x *AvailabilityIndex) at(teacherID string, slot models.Slot) *models.Occupancy {
	if !slot.Valid() {
		return nil
	}
	row, ok := x.rows[teacherID]
	if !ok {
		return nil
	}
	return row[slot.Day][slot.Period]
}

func (x *AvailabilityIndex) write(teacherID string, slot models.Slot, occ models.Occupancy) {
	row, ok := x.rows[teacherID]
	if !ok {
		row = &models.TeacherWeek{}
		x.rows[teacherID] = row
	}
	row[slot.Day][slot.Period] = &occ
}

func (x *AvailabilityIndex) clear(teacherID string, slot models.Slot) {
	row, ok := x.rows[teacherID]
	if !ok {
		return
	}
	row[slot.Day][slot.Period] = nil
	if row.Booked() == 0 {
		delete(x.rows, teacherID)
	}
}

func (x *AvailabilityIndex) occupancy(classroomID, subject string) models.Occupancy {
	occ := models.Occupancy{ClassroomID: classroomID, Subject: subject}
	if x.grades != nil {
		occ.Grade = x.grades.GradeOf(classroomID)
	}
	return occ
}

func conflictFor(a models.Assignment, classroomID string, slot models.Slot, existing *models.Occupancy) models.ScheduleConflict {
	return models.ScheduleConflict{
		TeacherID:         a.TeacherID,
		Day:               slot.Day,
		Period:            slot.Period,
		ClassroomID:       classroomID,
		Subject:           a.Subject,
		ExistingClassroom: existing.ClassroomID,
		ExistingSubject:   existing.Subject,
		Dimension:         models.ConflictDimensionTeacher,
	}
}

func occupancyClassroom(occ *models.Occupancy) string {
	if occ == nil {
		return ""
	}
	return occ.ClassroomID
}

func sameOccupancy(a, b *models.Occupancy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func indexConflictError(message string, conflicts []models.ScheduleConflict) error {
	domainErr := &models.ScheduleConflictError{Type: appErrors.ErrIndexConflict.Code, Message: conflictSummary(conflicts), Conflicts: conflicts}
	return appErrors.Extend(appErrors.ErrIndexConflict, domainErr, message)
}

// conflictSummary is the short text of the inner conflict error; the outer
// typed error carries the detailed message.
func conflictSummary(conflicts []models.ScheduleConflict) string {
	if len(conflicts) == 1 {
		return "1 conflict"
	}
	return fmt.Sprintf("%d conflicts", len(conflicts))
}
