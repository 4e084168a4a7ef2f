package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// GenerationRequest is what a generator gets to build one classroom's week.
type GenerationRequest struct {
	Classroom models.Classroom
	Teachers  []models.Teacher
	// Busy holds every teacher's occupancy in other classrooms.
	Busy    map[string]models.TeacherWeek
	Current models.Grid
}

// Generator produces a full replacement grid for one classroom.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (models.Grid, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (models.Grid, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (models.Grid, error) {
	return f(ctx, req)
}

// RegenerationCoordinator swaps a classroom grid for a generator's output.
// The generator runs outside the state lock while the classroom lock keeps
// other edits of that classroom waiting. The commit re-checks the grid
// against every other classroom and is all or nothing.
type RegenerationCoordinator struct {
	state     *scheduleState
	generator Generator
	timeout   time.Duration
	multi     bool
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegenerationCoordinator wires a coordinator. A zero timeout means no
// deadline beyond the caller's context.
func NewRegenerationCoordinator(state *scheduleState, generator Generator, timeout time.Duration, multi bool, logger *zap.Logger) *RegenerationCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegenerationCoordinator{
		state:     state,
		generator: generator,
		timeout:   timeout,
		multi:     multi,
		logger:    logger,
		now:       time.Now,
	}
}

// Regenerate replaces classroomID's grid with freshly generated content.
// Failures leave the grid store and index untouched.
func (c *RegenerationCoordinator) Regenerate(ctx context.Context, classroomID string) (*models.GridSnapshot, error) {
	if c.generator == nil {
		return nil, appErrors.Clone(appErrors.ErrGenerationFailed, "no schedule generator configured")
	}

	unlock, err := c.state.lockClassroom(classroomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := c.request(classroomID)
	if err != nil {
		return nil, err
	}

	genCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := c.now()
	grid, err := c.generator.Generate(genCtx, req)
	if err == nil {
		err = genCtx.Err()
	}
	if err != nil {
		return nil, c.generationError(classroomID, err)
	}
	c.logger.Debug("generator returned grid",
		zap.String("classroom_id", classroomID),
		zap.Duration("elapsed", c.now().Sub(started)),
		zap.Int("filled_slots", grid.FilledSlots()),
	)

	if conflicts := c.shapeConflicts(classroomID, grid); len(conflicts) > 0 {
		return nil, generationConflictError(classroomID, conflicts)
	}

	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if conflicts := c.state.index.Sweep(classroomID, grid); len(conflicts) > 0 {
		c.logger.Warn("generated grid rejected",
			zap.String("classroom_id", classroomID),
			zap.Int("conflicts", len(conflicts)),
		)
		return nil, generationConflictError(classroomID, conflicts)
	}

	previous, err := c.state.store.Get(classroomID)
	if err != nil {
		return nil, err
	}
	c.state.index.ClearClassroom(classroomID, previous)
	if err := c.state.index.IndexClassroom(classroomID, grid); err != nil {
		if restoreErr := c.state.index.IndexClassroom(classroomID, previous); restoreErr != nil {
			c.logger.Error("failed to restore index after aborted regeneration", zap.String("classroom_id", classroomID), zap.Error(restoreErr))
		}
		c.logger.Error("index refused generated grid", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, err
	}
	if _, err := c.state.store.Replace(classroomID, grid); err != nil {
		return nil, err
	}

	snapshot, err := c.state.store.Snapshot(classroomID)
	if err != nil {
		return nil, err
	}
	snapshot.ID = uuid.NewString()
	snapshot.GeneratedAt = c.now().UTC()
	return &snapshot, nil
}

func (c *RegenerationCoordinator) request(classroomID string) (GenerationRequest, error) {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()

	classroom, err := c.state.store.Classroom(classroomID)
	if err != nil {
		return GenerationRequest{}, err
	}
	current, err := c.state.store.Get(classroomID)
	if err != nil {
		return GenerationRequest{}, err
	}

	busy := make(map[string]models.TeacherWeek)
	for _, teacherID := range c.state.index.Teachers() {
		row := c.state.index.Row(teacherID)
		for day := range row {
			for period := range row[day] {
				if occ := row[day][period]; occ != nil && occ.ClassroomID == classroomID {
					row[day][period] = nil
				}
			}
		}
		if row.Booked() > 0 {
			busy[teacherID] = row
		}
	}

	return GenerationRequest{
		Classroom: classroom,
		Teachers:  c.state.roster.All(),
		Busy:      busy,
		Current:   current,
	}, nil
}

// shapeConflicts rejects grids the index cannot hold: unknown teachers,
// incomplete entries, and more than one assignment per cell in single mode.
// Duplicate teachers within a cell are left to the sweep.
func (c *RegenerationCoordinator) shapeConflicts(classroomID string, grid models.Grid) []models.ScheduleConflict {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()

	var conflicts []models.ScheduleConflict
	if !c.multi {
		for _, slot := range models.AllSlots() {
			if len(grid.Cell(slot)) > 1 {
				conflicts = append(conflicts, models.ScheduleConflict{
					Day:         slot.Day,
					Period:      slot.Period,
					ClassroomID: classroomID,
					Dimension:   models.ConflictDimensionCapacity,
				})
			}
		}
	}
	return append(conflicts, cellShapeConflicts(classroomID, grid, c.state.roster)...)
}

func (c *RegenerationCoordinator) generationError(classroomID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("schedule generation timed out", zap.String("classroom_id", classroomID), zap.Duration("timeout", c.timeout))
		return appErrors.Extend(appErrors.ErrGenerationTimeout, err, fmt.Sprintf("generation for classroom %s timed out", classroomID))
	}
	if errors.Is(err, context.Canceled) {
		return appErrors.Extend(appErrors.ErrGenerationFailed, err, fmt.Sprintf("generation for classroom %s cancelled", classroomID))
	}
	c.logger.Warn("schedule generation failed", zap.String("classroom_id", classroomID), zap.Error(err))
	var typed *appErrors.Error
	if errors.As(err, &typed) && typed.Code == appErrors.ErrGenerationFailed.Code {
		return typed
	}
	return appErrors.Extend(appErrors.ErrGenerationFailed, err, fmt.Sprintf("generation for classroom %s failed", classroomID))
}

func generationConflictError(classroomID string, conflicts []models.ScheduleConflict) error {
	message := fmt.Sprintf("generated grid for classroom %s rejected", classroomID)
	domainErr := &models.ScheduleConflictError{Type: appErrors.ErrGenerationConflict.Code, Message: conflictSummary(conflicts), Conflicts: conflicts}
	return appErrors.Extend(appErrors.ErrGenerationConflict, domainErr, message)
}

// ConflictsOf extracts the conflict list carried by a scheduling error.
func ConflictsOf(err error) []models.ScheduleConflict {
	var domainErr *models.ScheduleConflictError
	if errors.As(err, &domainErr) && domainErr != nil {
		return domainErr.Conflicts
	}
	return nil
}
