package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

type timetableEngine interface {
	Classrooms(ctx context.Context) []models.Classroom
	Teachers(ctx context.Context) []models.Teacher
	Grid(ctx context.Context, classroomID string) (*models.GridSnapshot, error)
	ClassroomStats(ctx context.Context, classroomID string) (*models.ClassroomStats, error)
	Validate(ctx context.Context, classroomID string, slot models.Slot, teacherID, subject string) (service.Decision, error)
	UpsertAssignment(ctx context.Context, classroomID string, slot models.Slot, teacherID, subject string) (service.MutationResult, service.Decision, error)
	RemoveAssignment(ctx context.Context, classroomID string, slot models.Slot, teacherID string) (service.MutationResult, error)
	ClearSlot(ctx context.Context, classroomID string, slot models.Slot) (service.MutationResult, error)
	ReplaceSlot(ctx context.Context, classroomID string, slot models.Slot, assignments []models.Assignment) (service.MutationResult, service.Decision, error)
	Regenerate(ctx context.Context, classroomID string) (*models.GridSnapshot, error)
	AvailableTeachers(ctx context.Context, classroomID string, slot models.Slot, subject string) ([]models.Teacher, error)
	IsFree(ctx context.Context, teacherID string, slot models.Slot) (bool, error)
	OccupancyOf(ctx context.Context, teacherID string, slot models.Slot) (*models.Occupancy, error)
	TeacherSchedule(ctx context.Context, teacherID string) (models.TeacherWeek, error)
	TeacherWorkload(ctx context.Context, teacherID string) (*models.TeacherWorkload, error)
	Verify(ctx context.Context) service.VerifyReport
}

type timetableExporter interface {
	ClassroomCSV(ctx context.Context, classroomID string) ([]byte, error)
	TeacherCSV(ctx context.Context, teacherID string) ([]byte, error)
	AllocationsCSV(ctx context.Context) ([]byte, error)
}

// TimetableHandler exposes classroom grids, teacher availability and
// scheduling operations over HTTP.
type TimetableHandler struct {
	engine    timetableEngine
	exporter  timetableExporter
	validator *validator.Validate
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(engine *service.TimetableService, exporter *service.ExportService, validate *validator.Validate) *TimetableHandler {
	return newTimetableHandler(engine, exporter, validate)
}

func newTimetableHandler(engine timetableEngine, exporter timetableExporter, validate *validator.Validate) *TimetableHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TimetableHandler{engine: engine, exporter: exporter, validator: validate}
}

// Register mounts every timetable route on the group.
func (h *TimetableHandler) Register(group *gin.RouterGroup) {
	classrooms := group.Group("/classrooms")
	classrooms.GET("", h.ListClassrooms)
	classrooms.GET("/:id/grid", h.Grid)
	classrooms.GET("/:id/stats", h.Stats)
	classrooms.GET("/:id/available-teachers", h.AvailableTeachers)
	classrooms.GET("/:id/export", h.ExportClassroom)
	classrooms.POST("/:id/assignments/validate", h.Validate)
	classrooms.PUT("/:id/assignments", h.Upsert)
	classrooms.DELETE("/:id/assignments", h.Remove)
	classrooms.PUT("/:id/slots", h.ReplaceSlot)
	classrooms.DELETE("/:id/slots", h.ClearSlot)
	classrooms.POST("/:id/regenerate", h.Regenerate)

	teachers := group.Group("/teachers")
	teachers.GET("", h.ListTeachers)
	teachers.GET("/:id/schedule", h.TeacherSchedule)
	teachers.GET("/:id/workload", h.TeacherWorkload)
	teachers.GET("/:id/availability", h.TeacherAvailability)
	teachers.GET("/:id/export", h.ExportTeacher)

	group.GET("/timetable/export", h.ExportAll)
	group.GET("/timetable/verify", h.Verify)
}

// ListClassrooms godoc
// @Summary List classrooms
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *TimetableHandler) ListClassrooms(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.engine.Classrooms(c.Request.Context()))
}

// Grid godoc
// @Summary Get classroom grid
// @Tags Timetable
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classrooms/{id}/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	snapshot, err := h.engine.Grid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot)
}

// Stats godoc
// @Summary Classroom fill statistics
// @Tags Timetable
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/stats [get]
func (h *TimetableHandler) Stats(c *gin.Context) {
	stats, err := h.engine.ClassroomStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Validate godoc
// @Summary Check an assignment without applying it
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.AssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/assignments/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.AssignmentRequest
	if !h.bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	decision, err := h.engine.Validate(c.Request.Context(), c.Param("id"), req.Slot(), req.TeacherID, req.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision)
}

// Upsert godoc
// @Summary Assign a teacher and subject to a slot
// @Description Empty teacherId and subject clear the slot.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.AssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classrooms/{id}/assignments [put]
func (h *TimetableHandler) Upsert(c *gin.Context) {
	var req dto.AssignmentRequest
	if !h.bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	result, decision, err := h.engine.UpsertAssignment(c.Request.Context(), c.Param("id"), req.Slot(), req.TeacherID, req.Subject)
	if err != nil {
		h.fail(c, err, decision)
		return
	}
	response.JSON(c, http.StatusOK, mutationResponse(result))
}

// Remove godoc
// @Summary Remove one teacher from a slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Classroom ID"
// @Param day query int true "Day (0-4)"
// @Param period query int true "Period (0-5)"
// @Param teacherId query string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classrooms/{id}/assignments [delete]
func (h *TimetableHandler) Remove(c *gin.Context) {
	var req dto.RemoveAssignmentRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.engine.RemoveAssignment(c.Request.Context(), c.Param("id"), req.Slot(), req.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mutationResponse(result))
}

// ClearSlot godoc
// @Summary Empty a slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Classroom ID"
// @Param day query int true "Day (0-4)"
// @Param period query int true "Period (0-5)"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/slots [delete]
func (h *TimetableHandler) ClearSlot(c *gin.Context) {
	var req dto.SlotRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.engine.ClearSlot(c.Request.Context(), c.Param("id"), req.Slot())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mutationResponse(result))
}

// ReplaceSlot godoc
// @Summary Replace every assignment of a slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.ReplaceSlotRequest true "Assignments"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id}/slots [put]
func (h *TimetableHandler) ReplaceSlot(c *gin.Context) {
	var req dto.ReplaceSlotRequest
	if !h.bindJSON(c, &req, "invalid slot payload") {
		return
	}
	result, decision, err := h.engine.ReplaceSlot(c.Request.Context(), c.Param("id"), req.Slot(), req.ToAssignments())
	if err != nil {
		h.fail(c, err, decision)
		return
	}
	response.JSON(c, http.StatusOK, mutationResponse(result))
}

// Regenerate godoc
// @Summary Regenerate a classroom grid
// @Description Runs the generator against other classrooms' bookings and commits the result only if it double-books nobody.
// @Tags Timetable
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /classrooms/{id}/regenerate [post]
func (h *TimetableHandler) Regenerate(c *gin.Context) {
	snapshot, err := h.engine.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, service.Decision{})
		return
	}
	response.JSON(c, http.StatusOK, snapshot)
}

// AvailableTeachers godoc
// @Summary Teachers who could take a slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Classroom ID"
// @Param day query int true "Day (0-4)"
// @Param period query int true "Period (0-5)"
// @Param subject query string true "Subject"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/available-teachers [get]
func (h *TimetableHandler) AvailableTeachers(c *gin.Context) {
	var req dto.AvailableTeachersQuery
	if !h.bindQuery(c, &req) {
		return
	}
	teachers, err := h.engine.AvailableTeachers(c.Request.Context(), c.Param("id"), req.Slot(), req.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers)
}

// ListTeachers godoc
// @Summary List teachers
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TimetableHandler) ListTeachers(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.engine.Teachers(c.Request.Context()))
}

// TeacherSchedule godoc
// @Summary A teacher's weekly bookings
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedule [get]
func (h *TimetableHandler) TeacherSchedule(c *gin.Context) {
	week, err := h.engine.TeacherSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week)
}

// TeacherWorkload godoc
// @Summary A teacher's booked load
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/workload [get]
func (h *TimetableHandler) TeacherWorkload(c *gin.Context) {
	workload, err := h.engine.TeacherWorkload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workload)
}

// TeacherAvailability godoc
// @Summary Whether a teacher is free at a slot
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Param day query int true "Day (0-4)"
// @Param period query int true "Period (0-5)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *TimetableHandler) TeacherAvailability(c *gin.Context) {
	var req dto.SlotRequest
	if !h.bindQuery(c, &req) {
		return
	}
	teacherID := c.Param("id")
	slot := req.Slot()
	free, err := h.engine.IsFree(c.Request.Context(), teacherID, slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := dto.SlotAvailabilityResponse{TeacherID: teacherID, Slot: slot, Free: free}
	if !free {
		occupancy, err := h.engine.OccupancyOf(c.Request.Context(), teacherID, slot)
		if err != nil {
			response.Error(c, err)
			return
		}
		result.Occupancy = occupancy
	}
	response.JSON(c, http.StatusOK, result)
}

// ExportClassroom godoc
// @Summary Download a classroom timetable as CSV
// @Tags Timetable
// @Produce text/csv
// @Param id path string true "Classroom ID"
// @Success 200 {file} file
// @Router /classrooms/{id}/export [get]
func (h *TimetableHandler) ExportClassroom(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exporter.ClassroomCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.CSV(c, fmt.Sprintf("classroom-%s.csv", id), payload)
}

// ExportTeacher godoc
// @Summary Download a teacher timetable as CSV
// @Tags Timetable
// @Produce text/csv
// @Param id path string true "Teacher ID"
// @Success 200 {file} file
// @Router /teachers/{id}/export [get]
func (h *TimetableHandler) ExportTeacher(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exporter.TeacherCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.CSV(c, fmt.Sprintf("teacher-%s.csv", id), payload)
}

// ExportAll godoc
// @Summary Download every allocation as CSV
// @Tags Timetable
// @Produce text/csv
// @Success 200 {file} file
// @Router /timetable/export [get]
func (h *TimetableHandler) ExportAll(c *gin.Context) {
	payload, err := h.exporter.AllocationsCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.CSV(c, "allocations.csv", payload)
}

// Verify godoc
// @Summary Audit the availability index against classroom grids
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /timetable/verify [get]
func (h *TimetableHandler) Verify(c *gin.Context) {
	report := h.engine.Verify(c.Request.Context())
	if !report.Consistent {
		response.Error(c, appErrors.Clone(appErrors.ErrIndexConflict, "availability index drifted from classroom grids"), map[string]interface{}{"report": report})
		return
	}
	response.JSON(c, http.StatusOK, report)
}

func (h *TimetableHandler) bindJSON(c *gin.Context, req interface{}, message string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return h.validate(c, req)
}

func (h *TimetableHandler) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return false
	}
	return h.validate(c, req)
}

func (h *TimetableHandler) validate(c *gin.Context, req interface{}) bool {
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return false
	}
	return true
}

// fail attaches rejection details and conflict lists to the error envelope.
func (h *TimetableHandler) fail(c *gin.Context, err error, decision service.Decision) {
	meta := map[string]interface{}{}
	if decision.Reason != "" {
		meta["reason"] = decision.Reason
	}
	if decision.Occupancy != nil {
		meta["occupancy"] = decision.Occupancy
	}
	if conflicts := service.ConflictsOf(err); len(conflicts) > 0 {
		meta["conflicts"] = conflicts
	}
	if len(meta) == 0 {
		response.Error(c, err)
		return
	}
	response.Error(c, err, meta)
}

func mutationResponse(result service.MutationResult) dto.MutationResponse {
	return dto.MutationResponse{
		Operation: result.Operation,
		Slot:      result.Slot,
		Cell:      result.Cell,
		Removed:   result.Removed,
		Added:     result.Added,
		Version:   result.Snapshot.Version,
	}
}
