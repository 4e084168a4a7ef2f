package service

import (
	"fmt"
	"sync"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// scheduleState is the one shared mutable resource: the grid store and the
// index derived from it. mu guards both as a pair; writers hold it for the
// whole write-then-reindex step so readers never see a half applied diff.
type scheduleState struct {
	mu     sync.RWMutex
	store  *GridStore
	index  *AvailabilityIndex
	roster *TeacherRoster

	classrooms *keyedMutex
}

func newScheduleState(roster *TeacherRoster) *scheduleState {
	store := NewGridStore()
	index := NewAvailabilityIndex(store)
	store.Observe(index)
	return &scheduleState{
		store:      store,
		index:      index,
		roster:     roster,
		classrooms: newKeyedMutex(),
	}
}

// load re-seeds the state from scratch and rebuilds the index. Stored cells
// the index cannot hold (incomplete pairs, unknown teachers) abort the load.
func (s *scheduleState) load(classrooms []models.Classroom, teachers []models.Teacher, grids map[string]models.GridSnapshot) ([]models.ScheduleConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := NewTeacherRoster(teachers)
	store := NewGridStore()
	var malformed []models.ScheduleConflict
	for _, classroom := range classrooms {
		snapshot := grids[classroom.ID]
		malformed = append(malformed, cellShapeConflicts(classroom.ID, snapshot.Grid, roster)...)
		store.Register(classroom, snapshot.Grid, snapshot.Version)
	}
	if len(malformed) > 0 {
		return malformed, indexConflictError(fmt.Sprintf("stored grids hold %d malformed cells", len(malformed)), malformed)
	}

	index := NewAvailabilityIndex(store)
	conflicts, err := index.Rebuild(store.All())
	if err != nil {
		return conflicts, err
	}
	store.Observe(index)

	s.store = store
	s.index = index
	s.roster = roster

	ids := make([]string, 0, len(classrooms))
	for _, classroom := range classrooms {
		ids = append(ids, classroom.ID)
	}
	s.classrooms.Reset(ids)
	return nil, nil
}

func (s *scheduleState) validator(cfg ValidatorConfig) *AssignmentValidator {
	return NewAssignmentValidator(s.store, s.index, s.roster, cfg)
}

// lockClassroom serialises writers of one classroom. Unknown ids are
// NOT_FOUND and never reach the lock table.
func (s *scheduleState) lockClassroom(classroomID string) (func(), error) {
	unlock, ok := s.classrooms.Lock(classroomID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("classroom %s not found", classroomID))
	}
	return unlock, nil
}

// cellShapeConflicts lists entries with a missing teacher or subject and
// teachers absent from the roster.
func cellShapeConflicts(classroomID string, grid models.Grid, roster *TeacherRoster) []models.ScheduleConflict {
	var conflicts []models.ScheduleConflict
	for _, slot := range models.AllSlots() {
		for _, a := range grid.Cell(slot) {
			conflict := models.ScheduleConflict{
				TeacherID:   a.TeacherID,
				Day:         slot.Day,
				Period:      slot.Period,
				ClassroomID: classroomID,
				Subject:     a.Subject,
			}
			if a.TeacherID == "" || a.Subject == "" {
				conflict.Dimension = models.ConflictDimensionSlot
			} else if _, ok := roster.Get(a.TeacherID); !ok {
				conflict.Dimension = models.ConflictDimensionUnknown
			} else {
				continue
			}
			conflicts = append(conflicts, conflict)
		}
	}
	return conflicts
}

// keyedMutex hands out one mutex per known key. The key set is replaced on
// every load, so it stays bounded by the classroom directory.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Reset makes keys the lockable set. Mutexes of surviving keys are kept so
// holders stay exclusive across a reload.
func (k *keyedMutex) Reset(keys []string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	locks := make(map[string]*sync.Mutex, len(keys))
	for _, key := range keys {
		if lock, ok := k.locks[key]; ok {
			locks[key] = lock
			continue
		}
		locks[key] = &sync.Mutex{}
	}
	k.locks = locks
}

// Lock blocks until key is held and returns its unlock func. It reports
// false for keys outside the current set.
func (k *keyedMutex) Lock(key string) (func(), bool) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		return nil, false
	}

	lock.Lock()
	return lock.Unlock, true
}

// Len reports how many keys are lockable.
func (k *keyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
