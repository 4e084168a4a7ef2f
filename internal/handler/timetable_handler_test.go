package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type timetableEngineStub struct {
	upsertSlot     models.Slot
	upsertTeacher  string
	upsertDecision service.Decision
	upsertErr      error
	removeTeacher  string
	replaced       []models.Assignment
	regenerateErr  error
	free           bool
	occupancy      *models.Occupancy
	report         service.VerifyReport
}

func (s *timetableEngineStub) Classrooms(context.Context) []models.Classroom {
	return []models.Classroom{{ID: "c-1", Grade: "5"}}
}

func (s *timetableEngineStub) Teachers(context.Context) []models.Teacher {
	return []models.Teacher{{ID: "t-1"}}
}

func (s *timetableEngineStub) Grid(_ context.Context, classroomID string) (*models.GridSnapshot, error) {
	if classroomID != "c-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	}
	return &models.GridSnapshot{ClassroomID: classroomID, Version: 3}, nil
}

func (s *timetableEngineStub) ClassroomStats(_ context.Context, classroomID string) (*models.ClassroomStats, error) {
	return &models.ClassroomStats{ClassroomID: classroomID, TotalSlots: models.SlotsPerWeek}, nil
}

func (s *timetableEngineStub) Validate(_ context.Context, _ string, _ models.Slot, teacherID, subject string) (service.Decision, error) {
	return service.Decision{Accepted: true, Assignment: models.Assignment{TeacherID: teacherID, Subject: subject}}, nil
}

func (s *timetableEngineStub) UpsertAssignment(_ context.Context, _ string, slot models.Slot, teacherID, _ string) (service.MutationResult, service.Decision, error) {
	s.upsertSlot = slot
	s.upsertTeacher = teacherID
	if s.upsertErr != nil {
		return service.MutationResult{}, s.upsertDecision, s.upsertErr
	}
	return service.MutationResult{Operation: service.OpUpsert, Slot: slot, Snapshot: models.GridSnapshot{Version: 4}}, service.Decision{Accepted: true}, nil
}

func (s *timetableEngineStub) RemoveAssignment(_ context.Context, _ string, slot models.Slot, teacherID string) (service.MutationResult, error) {
	s.removeTeacher = teacherID
	return service.MutationResult{Operation: service.OpRemove, Slot: slot, Removed: []string{teacherID}}, nil
}

func (s *timetableEngineStub) ClearSlot(_ context.Context, _ string, slot models.Slot) (service.MutationResult, error) {
	return service.MutationResult{Operation: service.OpClear, Slot: slot}, nil
}

func (s *timetableEngineStub) ReplaceSlot(_ context.Context, _ string, slot models.Slot, assignments []models.Assignment) (service.MutationResult, service.Decision, error) {
	s.replaced = assignments
	return service.MutationResult{Operation: service.OpReplace, Slot: slot}, service.Decision{Accepted: true}, nil
}

func (s *timetableEngineStub) Regenerate(_ context.Context, classroomID string) (*models.GridSnapshot, error) {
	if s.regenerateErr != nil {
		return nil, s.regenerateErr
	}
	return &models.GridSnapshot{ID: "snap-1", ClassroomID: classroomID}, nil
}

func (s *timetableEngineStub) AvailableTeachers(context.Context, string, models.Slot, string) ([]models.Teacher, error) {
	return []models.Teacher{{ID: "t-2"}}, nil
}

func (s *timetableEngineStub) IsFree(context.Context, string, models.Slot) (bool, error) {
	return s.free, nil
}

func (s *timetableEngineStub) OccupancyOf(context.Context, string, models.Slot) (*models.Occupancy, error) {
	return s.occupancy, nil
}

func (s *timetableEngineStub) TeacherSchedule(context.Context, string) (models.TeacherWeek, error) {
	return models.TeacherWeek{}, nil
}

func (s *timetableEngineStub) TeacherWorkload(_ context.Context, teacherID string) (*models.TeacherWorkload, error) {
	return &models.TeacherWorkload{TeacherID: teacherID}, nil
}

func (s *timetableEngineStub) Verify(context.Context) service.VerifyReport {
	return s.report
}

type exporterStub struct{}

func (exporterStub) ClassroomCSV(context.Context, string) ([]byte, error) {
	return []byte("day,period_1\n"), nil
}

func (exporterStub) TeacherCSV(context.Context, string) ([]byte, error) {
	return []byte("day,period_1\n"), nil
}

func (exporterStub) AllocationsCSV(context.Context) ([]byte, error) {
	return []byte("classroom_id\n"), nil
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newTimetableRouter(engine *timetableEngineStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	newTimetableHandler(engine, exporterStub{}, nil).Register(router.Group("/api"))
	return router
}

func perform(t *testing.T, router *gin.Engine, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestTimetableHandlerUpsert(t *testing.T) {
	engine := &timetableEngineStub{}
	router := newTimetableRouter(engine)

	w, env := perform(t, router, http.MethodPut, "/api/classrooms/c-1/assignments", []byte(`{"day":2,"period":0,"teacherId":"t-1","subject":"Math"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Slot{Day: 2, Period: 0}, engine.upsertSlot)
	assert.Equal(t, "t-1", engine.upsertTeacher)
	assert.Contains(t, string(env.Data), `"version":4`)
}

func TestTimetableHandlerUpsertRejectsOutOfRangeSlot(t *testing.T) {
	engine := &timetableEngineStub{}
	router := newTimetableRouter(engine)

	w, env := perform(t, router, http.MethodPut, "/api/classrooms/c-1/assignments", []byte(`{"day":5,"period":0,"teacherId":"t-1","subject":"Math"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)

	w, _ = perform(t, router, http.MethodPut, "/api/classrooms/c-1/assignments", []byte(`{"period":0}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, engine.upsertTeacher)
}

func TestTimetableHandlerUpsertDoubleBooked(t *testing.T) {
	occupancy := &models.Occupancy{ClassroomID: "c-2", Subject: "Math"}
	engine := &timetableEngineStub{
		upsertDecision: service.Decision{Reason: service.ReasonDoubleBooked, Occupancy: occupancy},
		upsertErr:      appErrors.Clone(appErrors.ErrDoubleBooked, "teacher t-1 is teaching in c-2"),
	}
	router := newTimetableRouter(engine)

	w, env := perform(t, router, http.MethodPut, "/api/classrooms/c-1/assignments", []byte(`{"day":0,"period":0,"teacherId":"t-1","subject":"Math"}`))

	require.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DOUBLE_BOOKED", env.Error.Code)
	assert.Equal(t, "DOUBLE_BOOKED", env.Meta["reason"])
	assert.Contains(t, env.Meta, "occupancy")
}

func TestTimetableHandlerRemoveAndClear(t *testing.T) {
	engine := &timetableEngineStub{}
	router := newTimetableRouter(engine)

	w, _ := perform(t, router, http.MethodDelete, "/api/classrooms/c-1/assignments?day=1&period=1&teacherId=t-3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-3", engine.removeTeacher)

	w, _ = perform(t, router, http.MethodDelete, "/api/classrooms/c-1/assignments?day=1&period=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := perform(t, router, http.MethodDelete, "/api/classrooms/c-1/slots?day=4&period=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"operation":"clear"`)
}

func TestTimetableHandlerReplaceSlot(t *testing.T) {
	engine := &timetableEngineStub{}
	router := newTimetableRouter(engine)

	body := []byte(`{"day":0,"period":3,"assignments":[{"teacherId":"t-1","subject":"Math"},{"teacherId":"t-2","subject":"Science"}]}`)
	w, _ := perform(t, router, http.MethodPut, "/api/classrooms/c-1/slots", body)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, engine.replaced, 2)
	assert.Equal(t, "t-2", engine.replaced[1].TeacherID)

	w, _ = perform(t, router, http.MethodPut, "/api/classrooms/c-1/slots", []byte(`{"day":0,"period":3,"assignments":[{"teacherId":"t-1"}]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerRegenerateConflicts(t *testing.T) {
	conflicts := []models.ScheduleConflict{{TeacherID: "t-1", ClassroomID: "c-1", ExistingClassroom: "c-2", Dimension: models.ConflictDimensionTeacher}}
	domainErr := &models.ScheduleConflictError{Type: appErrors.ErrGenerationConflict.Code, Message: "conflicts", Conflicts: conflicts}
	engine := &timetableEngineStub{regenerateErr: appErrors.Extend(appErrors.ErrGenerationConflict, domainErr, "conflicts")}
	router := newTimetableRouter(engine)

	w, env := perform(t, router, http.MethodPost, "/api/classrooms/c-1/regenerate", nil)

	require.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "GENERATION_CONFLICT", env.Error.Code)
	list, ok := env.Meta["conflicts"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestTimetableHandlerGridNotFound(t *testing.T) {
	router := newTimetableRouter(&timetableEngineStub{})

	w, env := perform(t, router, http.MethodGet, "/api/classrooms/missing/grid", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, env.Error.Code)
}

func TestTimetableHandlerTeacherAvailability(t *testing.T) {
	engine := &timetableEngineStub{occupancy: &models.Occupancy{ClassroomID: "c-2", Subject: "Math"}}
	router := newTimetableRouter(engine)

	w, env := perform(t, router, http.MethodGet, "/api/teachers/t-1/availability?day=0&period=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"free":false`)
	assert.Contains(t, string(env.Data), `"classroom_id":"c-2"`)

	engine.free = true
	w, env = perform(t, router, http.MethodGet, "/api/teachers/t-1/availability?day=0&period=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), "occupancy")
}

func TestTimetableHandlerAvailableTeachersRequiresSubject(t *testing.T) {
	router := newTimetableRouter(&timetableEngineStub{})

	w, _ := perform(t, router, http.MethodGet, "/api/classrooms/c-1/available-teachers?day=0&period=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := perform(t, router, http.MethodGet, "/api/classrooms/c-1/available-teachers?day=0&period=0&subject=Math", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "t-2")
}

func TestTimetableHandlerVerify(t *testing.T) {
	engine := &timetableEngineStub{report: service.VerifyReport{Consistent: true}}
	router := newTimetableRouter(engine)

	w, _ := perform(t, router, http.MethodGet, "/api/timetable/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)

	engine.report = service.VerifyReport{Drift: []service.IndexDrift{{TeacherID: "t-1"}}}
	w, env := perform(t, router, http.MethodGet, "/api/timetable/verify", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, appErrors.ErrIndexConflict.Code, env.Error.Code)
	assert.Contains(t, env.Meta, "report")
}

func TestTimetableHandlerExport(t *testing.T) {
	router := newTimetableRouter(&timetableEngineStub{})

	w, _ := perform(t, router, http.MethodGet, "/api/classrooms/c-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "classroom-c-1.csv")

	w, _ = perform(t, router, http.MethodGet, "/api/timetable/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "classroom_id\n", w.Body.String())
}
