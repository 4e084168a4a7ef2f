package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// CellObserver receives the exact delta of every grid write.
type CellObserver interface {
	ApplyDiff(classroomID string, slot models.Slot, removedTeacherIDs []string, added []models.Assignment) error
}

// CellDiff is the change between an old and a new cell. A teacher whose
// subject changed shows up in both lists.
type CellDiff struct {
	Removed []string
	Added   []models.Assignment
}

// Empty reports whether the write changed nothing the index tracks.
func (d CellDiff) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

func diffCells(before, after models.Cell) CellDiff {
	var diff CellDiff
	for _, old := range before {
		idx := after.IndexOf(old.TeacherID)
		if idx < 0 || after[idx].Subject != old.Subject {
			diff.Removed = append(diff.Removed, old.TeacherID)
		}
	}
	for _, next := range after {
		idx := before.IndexOf(next.TeacherID)
		if idx < 0 || before[idx].Subject != next.Subject {
			diff.Added = append(diff.Added, next)
		}
	}
	return diff
}

type gridEntry struct {
	classroom models.Classroom
	grid      models.Grid
	version   int64
}

// GridStore owns the authoritative classroom grids. It performs no
// qualification or conflict checks and is not safe for concurrent use; the
// timetable service serialises access.
type GridStore struct {
	entries  map[string]*gridEntry
	observer CellObserver
}

// NewGridStore constructs an empty store.
func NewGridStore() *GridStore {
	return &GridStore{entries: make(map[string]*gridEntry)}
}

// Observe registers the observer notified after each SetCell.
func (s *GridStore) Observe(observer CellObserver) {
	s.observer = observer
}

// Register adds (or re-seeds) a classroom with its initial grid.
func (s *GridStore) Register(classroom models.Classroom, grid models.Grid, version int64) {
	s.entries[classroom.ID] = &gridEntry{classroom: classroom, grid: grid.Clone(), version: version}
}

// Classroom returns the classroom metadata.
func (s *GridStore) Classroom(classroomID string) (models.Classroom, error) {
	entry, err := s.entry(classroomID)
	if err != nil {
		return models.Classroom{}, err
	}
	return entry.classroom, nil
}

// Classrooms lists registered classrooms ordered by id.
func (s *GridStore) Classrooms() []models.Classroom {
	out := make([]models.Classroom, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.classroom)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GradeOf returns the grade label of a classroom, or "" when unknown.
func (s *GridStore) GradeOf(classroomID string) string {
	if entry, ok := s.entries[classroomID]; ok {
		return entry.classroom.Grade
	}
	return ""
}

// Get returns a copy of the classroom grid.
func (s *GridStore) Get(classroomID string) (models.Grid, error) {
	entry, err := s.entry(classroomID)
	if err != nil {
		return models.Grid{}, err
	}
	return entry.grid.Clone(), nil
}

// Cell returns a copy of one cell.
func (s *GridStore) Cell(classroomID string, slot models.Slot) (models.Cell, error) {
	entry, err := s.entry(classroomID)
	if err != nil {
		return nil, err
	}
	if !slot.Valid() {
		return nil, invalidSlotError(slot)
	}
	return entry.grid.Cell(slot).Clone(), nil
}

// Version returns the write counter of a classroom grid.
func (s *GridStore) Version(classroomID string) int64 {
	if entry, ok := s.entries[classroomID]; ok {
		return entry.version
	}
	return 0
}

// SetCell replaces the assignments at slot and notifies the observer with
// the delta. When the observer refuses the delta the write is undone.
func (s *GridStore) SetCell(classroomID string, slot models.Slot, cell models.Cell) (CellDiff, error) {
	entry, err := s.entry(classroomID)
	if err != nil {
		return CellDiff{}, err
	}
	if !slot.Valid() {
		return CellDiff{}, invalidSlotError(slot)
	}

	previous := entry.grid.Cell(slot)
	next := cell.Clone()
	diff := diffCells(previous, next)

	entry.grid.Set(slot, next)
	if s.observer != nil && !diff.Empty() {
		if err := s.observer.ApplyDiff(classroomID, slot, diff.Removed, diff.Added); err != nil {
			entry.grid.Set(slot, previous)
			return CellDiff{}, err
		}
	}
	entry.version++
	return diff, nil
}

// Replace swaps the whole grid without notifying the observer and returns
// the previous grid. Callers own index consistency.
func (s *GridStore) Replace(classroomID string, grid models.Grid) (models.Grid, error) {
	entry, err := s.entry(classroomID)
	if err != nil {
		return models.Grid{}, err
	}
	previous := entry.grid
	entry.grid = grid.Clone()
	entry.version++
	return previous, nil
}

// All returns copies of every grid keyed by classroom id.
func (s *GridStore) All() map[string]models.Grid {
	out := make(map[string]models.Grid, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry.grid.Clone()
	}
	return out
}

// Snapshot copies one classroom grid together with its version.
func (s *GridStore) Snapshot(classroomID string) (models.GridSnapshot, error) {
	entry, err := s.entry(classroomID)
	if err != nil {
		return models.GridSnapshot{}, err
	}
	return models.GridSnapshot{
		ClassroomID: classroomID,
		Version:     entry.version,
		Grid:        entry.grid.Clone(),
	}, nil
}

func (s *GridStore) entry(classroomID string) (*gridEntry, error) {
	entry, ok := s.entries[classroomID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("classroom %s not found", classroomID))
	}
	return entry, nil
}

func invalidSlotError(slot models.Slot) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s outside %dx%d grid", slot, models.DaysPerWeek, models.PeriodsPerDay))
}
