package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/logger"
)

// ClassroomDirectory lists classrooms with their curriculum.
type ClassroomDirectory interface {
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
}

// TeacherDirectory lists teachers with their qualifications.
type TeacherDirectory interface {
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
}

// GridLoader returns the stored grids keyed by classroom id.
type GridLoader interface {
	LoadInitialGrids(ctx context.Context) (map[string]models.GridSnapshot, error)
}

// TimetableServiceConfig governs engine behaviour.
type TimetableServiceConfig struct {
	MultiAssignment  bool
	Rules            ValidatorConfig
	GeneratorTimeout time.Duration
}

// TimetableService is the entry point for every timetable read and write.
// Writes go through the mutator or the coordinator; reads take the state
// read lock and return copies.
type TimetableService struct {
	classrooms ClassroomDirectory
	teachers   TeacherDirectory
	loader     GridLoader
	persister  GridPersister
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        TimetableServiceConfig

	state       *scheduleState
	mutator     *ScheduleMutator
	coordinator *RegenerationCoordinator
}

// NewTimetableService wires the engine. persister and generator may be nil.
func NewTimetableService(
	classrooms ClassroomDirectory,
	teachers TeacherDirectory,
	loader GridLoader,
	persister GridPersister,
	generator Generator,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	state := newScheduleState(NewTeacherRoster(nil))
	return &TimetableService{
		classrooms:  classrooms,
		teachers:    teachers,
		loader:      loader,
		persister:   persister,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		state:       state,
		mutator:     NewScheduleMutator(state, cfg.MultiAssignment, cfg.Rules, logger),
		coordinator: NewRegenerationCoordinator(state, generator, cfg.GeneratorTimeout, cfg.MultiAssignment, logger),
	}
}

// Load fetches directories and grids and rebuilds the availability index.
// Grids that double-book a teacher or hold malformed cells abort the load
// with INDEX_CONFLICT.
func (s *TimetableService) Load(ctx context.Context) error {
	var (
		classrooms []models.Classroom
		teachers   []models.Teacher
		grids      map[string]models.GridSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		classrooms, err = s.classrooms.ListClassrooms(gctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		teachers, err = s.teachers.ListTeachers(gctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
		}
		return nil
	})
	g.Go(func() error {
		if s.loader == nil {
			return nil
		}
		var err error
		grids, err = s.loader.LoadInitialGrids(gctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom grids")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for classroomID := range grids {
		if !hasClassroom(classrooms, classroomID) {
			s.logger.Warn("ignoring grid for unknown classroom", zap.String("classroom_id", classroomID))
		}
	}

	start := time.Now()
	conflicts, err := s.state.load(classrooms, teachers, grids)
	s.metrics.ObserveRebuild(len(classrooms), time.Since(start))
	if err != nil {
		s.metrics.RecordIndexConflict(len(conflicts))
		s.logger.Error("stored grids rejected", zap.Int("conflicts", len(conflicts)), zap.Error(err))
		return err
	}

	s.logger.Info("timetable loaded",
		zap.Int("classrooms", len(classrooms)),
		zap.Int("teachers", len(teachers)),
		zap.Duration("rebuild", time.Since(start)),
	)
	return nil
}

func hasClassroom(classrooms []models.Classroom, id string) bool {
	for _, classroom := range classrooms {
		if classroom.ID == id {
			return true
		}
	}
	return false
}

// Validate runs the validator without changing state.
func (s *TimetableService) Validate(_ context.Context, classroomID string, slot models.Slot, teacherID, subject string) (Decision, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.state.validator(s.cfg.Rules).Validate(classroomID, slot, teacherID, subject)
}

// UpsertAssignment validates and applies one assignment.
func (s *TimetableService) UpsertAssignment(ctx context.Context, classroomID string, slot models.Slot, teacherID, subject string) (MutationResult, Decision, error) {
	result, decision, err := s.mutator.UpsertAssignment(classroomID, slot, teacherID, subject)
	s.afterMutation(ctx, OpUpsert, classroomID, result, decision, err)
	return result, decision, err
}

// RemoveAssignment drops one teacher from a slot.
func (s *TimetableService) RemoveAssignment(ctx context.Context, classroomID string, slot models.Slot, teacherID string) (MutationResult, error) {
	result, err := s.mutator.RemoveAssignment(classroomID, slot, teacherID)
	s.afterMutation(ctx, OpRemove, classroomID, result, Decision{Accepted: err == nil}, err)
	return result, err
}

// ClearSlot empties a slot.
func (s *TimetableService) ClearSlot(ctx context.Context, classroomID string, slot models.Slot) (MutationResult, error) {
	result, err := s.mutator.ClearSlot(classroomID, slot)
	s.afterMutation(ctx, OpClear, classroomID, result, Decision{Accepted: err == nil}, err)
	return result, err
}

// ReplaceSlot swaps a slot's whole assignment list.
func (s *TimetableService) ReplaceSlot(ctx context.Context, classroomID string, slot models.Slot, assignments []models.Assignment) (MutationResult, Decision, error) {
	result, decision, err := s.mutator.ReplaceSlot(classroomID, slot, assignments)
	s.afterMutation(ctx, OpReplace, classroomID, result, decision, err)
	return result, decision, err
}

func (s *TimetableService) afterMutation(ctx context.Context, op, classroomID string, result MutationResult, decision Decision, err error) {
	if err != nil {
		reason := string(decision.Reason)
		if reason == "" {
			reason = appErrors.FromError(err).Code
		}
		if appErrors.HasCode(err, appErrors.ErrIndexConflict.Code) {
			s.metrics.RecordIndexConflict(len(ConflictsOf(err)))
		}
		s.metrics.RecordMutation(op, reason)
		logger.WithContext(ctx, s.logger).Debug("mutation rejected",
			zap.String("operation", op),
			zap.String("classroom_id", classroomID),
			zap.String("reason", reason),
		)
		return
	}
	s.metrics.RecordMutation(op, "")
	s.persist(ctx, result.Snapshot)
}

// persist hands a committed snapshot to the persistence seam. Failures are
// logged; the in-memory commit stands.
func (s *TimetableService) persist(ctx context.Context, snapshot models.GridSnapshot) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Persist(ctx, snapshot); err != nil {
		logger.WithContext(ctx, s.logger).Error("failed to persist classroom grid",
			zap.String("classroom_id", snapshot.ClassroomID),
			zap.Int64("version", snapshot.Version),
			zap.Error(err),
		)
	}
}

// Regenerate replaces a classroom grid with generator output.
func (s *TimetableService) Regenerate(ctx context.Context, classroomID string) (*models.GridSnapshot, error) {
	start := time.Now()
	snapshot, err := s.coordinator.Regenerate(ctx, classroomID)
	if err != nil {
		outcome := appErrors.FromError(err).Code
		s.metrics.RecordRegeneration(outcome, time.Since(start))
		s.metrics.RecordMutation(OpRegenerate, outcome)
		if appErrors.HasCode(err, appErrors.ErrIndexConflict.Code) {
			s.metrics.RecordIndexConflict(len(ConflictsOf(err)))
		}
		return nil, err
	}
	s.metrics.RecordRegeneration("committed", time.Since(start))
	s.metrics.RecordMutation(OpRegenerate, "")
	logger.WithContext(ctx, s.logger).Info("classroom regenerated",
		zap.String("classroom_id", classroomID),
		zap.String("snapshot_id", snapshot.ID),
		zap.Int64("version", snapshot.Version),
	)
	s.persist(ctx, *snapshot)
	return snapshot, nil
}

// Grid returns a snapshot of one classroom.
func (s *TimetableService) Grid(_ context.Context, classroomID string) (*models.GridSnapshot, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	snapshot, err := s.state.store.Snapshot(classroomID)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Classrooms lists known classrooms.
func (s *TimetableService) Classrooms(_ context.Context) []models.Classroom {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.state.store.Classrooms()
}

// Teachers lists known teachers.
func (s *TimetableService) Teachers(_ context.Context) []models.Teacher {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.state.roster.All()
}

// IsFree reports whether the teacher is unbooked at slot.
func (s *TimetableService) IsFree(_ context.Context, teacherID string, slot models.Slot) (bool, error) {
	if !slot.Valid() {
		return false, invalidSlotError(slot)
	}
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.state.index.IsFree(teacherID, slot), nil
}

// OccupancyOf returns where the teacher is booked at slot, or nil.
func (s *TimetableService) OccupancyOf(_ context.Context, teacherID string, slot models.Slot) (*models.Occupancy, error) {
	if !slot.Valid() {
		return nil, invalidSlotError(slot)
	}
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.state.index.OccupancyOf(teacherID, slot), nil
}

// TeacherSchedule returns the teacher's week from the index.
func (s *TimetableService) TeacherSchedule(_ context.Context, teacherID string) (models.TeacherWeek, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	if _, ok := s.state.roster.Get(teacherID); !ok {
		return models.TeacherWeek{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", teacherID))
	}
	return s.state.index.Row(teacherID), nil
}

// AvailableTeachers lists teachers the validator would accept at slot for
// subject, ordered by id. Teachers already in the slot are included.
func (s *TimetableService) AvailableTeachers(_ context.Context, classroomID string, slot models.Slot, subject string) ([]models.Teacher, error) {
	if subject == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()

	validator := s.state.validator(s.cfg.Rules)
	var out []models.Teacher
	for _, teacher := range s.state.roster.All() {
		decision, err := validator.Validate(classroomID, slot, teacher.ID, subject)
		if err != nil {
			return nil, err
		}
		if decision.Accepted {
			out = append(out, teacher)
		}
	}
	return out, nil
}

// ClassroomStats summarises how complete a classroom's week is.
func (s *TimetableService) ClassroomStats(_ context.Context, classroomID string) (*models.ClassroomStats, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()

	classroom, err := s.state.store.Classroom(classroomID)
	if err != nil {
		return nil, err
	}
	grid, err := s.state.store.Get(classroomID)
	if err != nil {
		return nil, err
	}

	stats := &models.ClassroomStats{
		ClassroomID:  classroomID,
		TotalSlots:   models.SlotsPerWeek,
		FilledSlots:  grid.FilledSlots(),
		SubjectCount: make(map[string]int),
		TeacherCount: make(map[string]int),
	}
	stats.CompletionPercentage = percentage(stats.FilledSlots, stats.TotalSlots)
	for _, slot := range models.AllSlots() {
		for _, a := range grid.Cell(slot) {
			stats.SubjectCount[a.Subject]++
			stats.TeacherCount[a.TeacherID]++
		}
	}
	if len(classroom.Curriculum) > 0 {
		stats.RemainingDemand = make(map[string]int, len(classroom.Curriculum))
		for subject, want := range classroom.Curriculum {
			if left := want - stats.SubjectCount[subject]; left > 0 {
				stats.RemainingDemand[subject] = left
			}
		}
	}
	return stats, nil
}

// TeacherWorkload summarises a teacher's booked periods.
func (s *TimetableService) TeacherWorkload(_ context.Context, teacherID string) (*models.TeacherWorkload, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()

	if _, ok := s.state.roster.Get(teacherID); !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", teacherID))
	}
	row := s.state.index.Row(teacherID)
	workload := &models.TeacherWorkload{
		TeacherID:     teacherID,
		BookedPeriods: row.Booked(),
		SubjectCount:  make(map[string]int),
		GradeCount:    make(map[string]int),
	}
	workload.LoadPercentage = percentage(workload.BookedPeriods, models.SlotsPerWeek)
	for day := range row {
		for period := range row[day] {
			occ := row[day][period]
			if occ == nil {
				continue
			}
			workload.SubjectCount[occ.Subject]++
			if occ.Grade != "" {
				workload.GradeCount[occ.Grade]++
			}
		}
	}
	return workload, nil
}

// VerifyReport compares the live index against a rebuild from the grids.
type VerifyReport struct {
	Consistent bool                      `json:"consistent"`
	Drift      []IndexDrift              `json:"drift,omitempty"`
	Conflicts  []models.ScheduleConflict `json:"conflicts,omitempty"`
	CheckedAt  time.Time                 `json:"checked_at"`
}

// Verify rebuilds a fresh index from the grid store and reports any drift
// from the live index, plus double bookings the grids themselves contain.
func (s *TimetableService) Verify(_ context.Context) VerifyReport {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()

	start := time.Now()
	fresh := NewAvailabilityIndex(s.state.store)
	conflicts, _ := fresh.Rebuild(s.state.store.All())
	s.metrics.ObserveRebuild(len(s.state.store.Classrooms()), time.Since(start))

	drift := s.state.index.Drift(fresh)
	report := VerifyReport{
		Consistent: len(drift) == 0 && len(conflicts) == 0,
		Drift:      drift,
		Conflicts:  conflicts,
		CheckedAt:  time.Now().UTC(),
	}
	if !report.Consistent {
		s.metrics.RecordIndexConflict(len(drift) + len(conflicts))
		s.logger.Error("availability index drifted from grids",
			zap.Int("drift", len(drift)),
			zap.Int("conflicts", len(conflicts)),
		)
	}
	return report
}

// AllGrids returns snapshots of every classroom ordered by classroom id.
func (s *TimetableService) AllGrids(_ context.Context) []models.GridSnapshot {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()

	classrooms := s.state.store.Classrooms()
	out := make([]models.GridSnapshot, 0, len(classrooms))
	for _, classroom := range classrooms {
		snapshot, err := s.state.store.Snapshot(classroom.ID)
		if err != nil {
			continue
		}
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassroomID < out[j].ClassroomID })
	return out
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}
