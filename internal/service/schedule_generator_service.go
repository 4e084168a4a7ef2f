package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// Infeasibility reasons reported when generation cannot satisfy demand.
const (
	InfeasibleSlotSaturation     = "SLOT_SATURATION"
	InfeasibleMaxPeriodsExceeded = "MAX_PERIODS_EXCEEDED"
	InfeasibleNoQualifiedTeacher = "NO_QUALIFIED_TEACHER"
	InfeasibleAttemptsExhausted  = "ATTEMPTS_EXHAUSTED"
)

// HeuristicGeneratorConfig governs generator behaviour.
type HeuristicGeneratorConfig struct {
	MaxAttempts          int
	MaxSubjectPeriodsDay int
	// Seed fixes the random source; zero seeds from the clock on each call.
	Seed int64
}

// HeuristicGenerator fills a classroom's curriculum demand with a randomised
// greedy pass, retrying from scratch until a full placement is found. It
// never books a teacher who is busy in another classroom.
type HeuristicGenerator struct {
	cfg    HeuristicGeneratorConfig
	logger *zap.Logger
}

// NewHeuristicGenerator applies defaults to cfg.
func NewHeuristicGenerator(cfg HeuristicGeneratorConfig, logger *zap.Logger) *HeuristicGenerator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1000
	}
	if cfg.MaxSubjectPeriodsDay <= 0 {
		cfg.MaxSubjectPeriodsDay = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeuristicGenerator{cfg: cfg, logger: logger}
}

// InfeasibleError explains why no grid could be produced.
type InfeasibleError struct {
	Reason  string
	Subject string
}

func (e *InfeasibleError) Error() string {
	if e.Subject == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s_FOR_%s", e.Reason, e.Subject)
}

// Generate implements Generator.
func (g *HeuristicGenerator) Generate(ctx context.Context, req GenerationRequest) (models.Grid, error) {
	demand := req.Classroom.Curriculum
	if len(demand) == 0 {
		return models.Grid{}, appErrors.Clone(appErrors.ErrGenerationFailed, fmt.Sprintf("classroom %s has no curriculum to schedule", req.Classroom.ID))
	}

	candidates := qualifiedTeachers(req)
	if err := g.checkFeasibility(demand, candidates); err != nil {
		return models.Grid{}, infeasibleError(req.Classroom.ID, err)
	}

	seed := g.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var last *InfeasibleError
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.Grid{}, err
		}
		state := newSchedulerState(demand, candidates, req.Busy, g.cfg.MaxSubjectPeriodsDay, rng)
		if reason := state.fill(); reason != nil {
			last = reason
			continue
		}
		moved := state.repairGaps(12)
		g.logger.Debug("timetable generated",
			zap.String("classroom_id", req.Classroom.ID),
			zap.Int("attempt", attempt),
			zap.Int("gap_repairs", moved),
		)
		return state.grid, nil
	}

	if last == nil {
		last = &InfeasibleError{Reason: InfeasibleAttemptsExhausted}
	}
	g.logger.Info("timetable generation gave up",
		zap.String("classroom_id", req.Classroom.ID),
		zap.Int("attempts", g.cfg.MaxAttempts),
		zap.String("last_reason", last.Error()),
	)
	return models.Grid{}, infeasibleError(req.Classroom.ID, last)
}

func (g *HeuristicGenerator) checkFeasibility(demand map[string]int, candidates map[string][]string) *InfeasibleError {
	total := 0
	for _, subject := range sortedSubjects(demand) {
		count := demand[subject]
		total += count
		if count > models.DaysPerWeek*g.cfg.MaxSubjectPeriodsDay {
			return &InfeasibleError{Reason: InfeasibleMaxPeriodsExceeded, Subject: subject}
		}
		if count > 0 && len(candidates[subject]) == 0 {
			return &InfeasibleError{Reason: InfeasibleNoQualifiedTeacher, Subject: subject}
		}
	}
	if total > models.SlotsPerWeek {
		return &InfeasibleError{Reason: InfeasibleSlotSaturation}
	}
	return nil
}

func infeasibleError(classroomID string, reason *InfeasibleError) error {
	return appErrors.Extend(appErrors.ErrGenerationFailed, reason, fmt.Sprintf("cannot generate timetable for classroom %s: %s", classroomID, reason.Error()))
}

// qualifiedTeachers maps subject -> teacher ids able to teach it in the
// classroom's grade, lowest id first.
func qualifiedTeachers(req GenerationRequest) map[string][]string {
	out := make(map[string][]string, len(req.Classroom.Curriculum))
	for subject := range req.Classroom.Curriculum {
		var ids []string
		for _, teacher := range req.Teachers {
			if teacher.Teaches(subject) && teacher.CoversGrade(req.Classroom.Grade) {
				ids = append(ids, teacher.ID)
			}
		}
		sort.Strings(ids)
		out[subject] = ids
	}
	return out
}

func sortedSubjects(demand map[string]int) []string {
	subjects := make([]string, 0, len(demand))
	for subject := range demand {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// --- Scheduler state ---

type schedulerState struct {
	grid       models.Grid
	remaining  map[string]int
	candidates map[string][]string
	teachers   map[string]*teacherAvailability
	maxPerDay  int
	rng        *rand.Rand
}

func newSchedulerState(demand map[string]int, candidates map[string][]string, busy map[string]models.TeacherWeek, maxPerDay int, rng *rand.Rand) *schedulerState {
	remaining := make(map[string]int, len(demand))
	for subject, count := range demand {
		if count > 0 {
			remaining[subject] = count
		}
	}
	teachers := make(map[string]*teacherAvailability)
	for _, ids := range candidates {
		for _, id := range ids {
			if _, ok := teachers[id]; ok {
				continue
			}
			availability := newTeacherAvailability()
			if week, ok := busy[id]; ok {
				for _, slot := range models.AllSlots() {
					if week[slot.Day][slot.Period] != nil {
						availability.Block(slot)
					}
				}
			}
			teachers[id] = availability
		}
	}
	return &schedulerState{
		remaining:  remaining,
		candidates: candidates,
		teachers:   teachers,
		maxPerDay:  maxPerDay,
		rng:        rng,
	}
}

// fill places every remaining period or reports why it stopped.
func (s *schedulerState) fill() *InfeasibleError {
	for {
		subject, ok := s.nextSubject()
		if !ok {
			return nil
		}
		if s.assign(subject) {
			continue
		}
		if reason := s.infeasibility(); reason != nil {
			return reason
		}
		return &InfeasibleError{Reason: InfeasibleAttemptsExhausted, Subject: subject}
	}
}

// nextSubject picks the subject with the most remaining periods.
func (s *schedulerState) nextSubject() (string, bool) {
	best := ""
	for _, subject := range sortedSubjects(s.remaining) {
		if s.remaining[subject] <= 0 {
			continue
		}
		if best == "" || s.remaining[subject] > s.remaining[best] {
			best = subject
		}
	}
	return best, best != ""
}

func (s *schedulerState) assign(subject string) bool {
	days := s.rng.Perm(models.DaysPerWeek)
	periods := s.rng.Perm(models.PeriodsPerDay)
	for _, day := range days {
		if s.subjectCount(day, subject) >= s.maxPerDay {
			continue
		}
		for _, period := range periods {
			slot := models.Slot{Day: day, Period: period}
			if len(s.grid.Cell(slot)) > 0 {
				continue
			}
			for _, teacherID := range s.candidates[subject] {
				if s.teachers[teacherID].CanTeach(slot) {
					s.place(slot, models.Assignment{TeacherID: teacherID, Subject: subject})
					return true
				}
			}
		}
	}
	return false
}

func (s *schedulerState) place(slot models.Slot, a models.Assignment) {
	s.grid.Set(slot, models.Cell{a})
	s.teachers[a.TeacherID].Reserve(slot)
	s.remaining[a.Subject]--
}

func (s *schedulerState) subjectCount(day int, subject string) int {
	count := 0
	for period := 0; period < models.PeriodsPerDay; period++ {
		for _, a := range s.grid[day][period] {
			if a.Subject == subject {
				count++
			}
		}
	}
	return count
}

// infeasibility distinguishes hard dead ends from unlucky randomisation.
func (s *schedulerState) infeasibility() *InfeasibleError {
	if s.grid.FilledSlots() >= models.SlotsPerWeek {
		return &InfeasibleError{Reason: InfeasibleSlotSaturation}
	}
	for _, subject := range sortedSubjects(s.remaining) {
		need := s.remaining[subject]
		if need <= 0 {
			continue
		}
		room := 0
		for day := 0; day < models.DaysPerWeek; day++ {
			room += s.maxPerDay - s.subjectCount(day, subject)
		}
		if need > room {
			return &InfeasibleError{Reason: InfeasibleMaxPeriodsExceeded, Subject: subject}
		}
	}
	return nil
}

// repairGaps pulls lessons earlier in the day to close free periods
// between them. Moves stay within a day so the per-day cap holds.
func (s *schedulerState) repairGaps(maxIterations int) int {
	iterations := 0
	for iterations < maxIterations {
		moved := false
		for day := 0; day < models.DaysPerWeek && !moved; day++ {
			periods := s.periodsForDay(day)
			for i := 0; i < len(periods)-1; i++ {
				current, next := periods[i], periods[i+1]
				if next-current <= 1 {
					continue
				}
				from := models.Slot{Day: day, Period: next}
				to := models.Slot{Day: day, Period: current + 1}
				a := s.grid.Cell(from)[0]
				if s.teachers[a.TeacherID].CanTeach(to) {
					s.moveSlot(from, to)
					moved = true
					break
				}
			}
		}
		if !moved {
			break
		}
		iterations++
	}
	return iterations
}

func (s *schedulerState) periodsForDay(day int) []int {
	var periods []int
	for period := 0; period < models.PeriodsPerDay; period++ {
		if len(s.grid[day][period]) > 0 {
			periods = append(periods, period)
		}
	}
	return periods
}

func (s *schedulerState) moveSlot(from, to models.Slot) {
	cell := s.grid.Cell(from)
	a := cell[0]
	s.grid.Set(from, nil)
	s.teachers[a.TeacherID].Release(from)
	s.grid.Set(to, cell)
	s.teachers[a.TeacherID].Reserve(to)
}

// --- Teacher availability ---

type teacherAvailability struct {
	blocked  [models.DaysPerWeek][models.PeriodsPerDay]bool
	assigned [models.DaysPerWeek][models.PeriodsPerDay]bool
}

func newTeacherAvailability() *teacherAvailability {
	return &teacherAvailability{}
}

func (t *teacherAvailability) Block(slot models.Slot) {
	t.blocked[slot.Day][slot.Period] = true
}

func (t *teacherAvailability) CanTeach(slot models.Slot) bool {
	return !t.blocked[slot.Day][slot.Period] && !t.assigned[slot.Day][slot.Period]
}

func (t *teacherAvailability) Reserve(slot models.Slot) {
	t.assigned[slot.Day][slot.Period] = true
}

func (t *teacherAvailability) Release(slot models.Slot) {
	t.assigned[slot.Day][slot.Period] = false
}
