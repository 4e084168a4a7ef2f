package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/pkg/export"
)

// DayNames labels grid rows in exports.
var DayNames = [models.DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type timetableReader interface {
	Grid(ctx context.Context, classroomID string) (*models.GridSnapshot, error)
	TeacherSchedule(ctx context.Context, teacherID string) (models.TeacherWeek, error)
	AllGrids(ctx context.Context) []models.GridSnapshot
}

// ExportService renders classroom and teacher timetables as CSV.
type ExportService struct {
	timetable timetableReader
	csv       csvRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(timetable timetableReader, csv csvRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &ExportService{timetable: timetable, csv: csv, logger: logger}
}

// ClassroomCSV renders one classroom as a day x period table.
func (s *ExportService) ClassroomCSV(ctx context.Context, classroomID string) ([]byte, error) {
	snapshot, err := s.timetable.Grid(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	dataset := weekDataset(func(slot models.Slot) string {
		return formatCell(snapshot.Grid.Cell(slot))
	})
	return s.render(dataset, "classroom", classroomID)
}

// TeacherCSV renders one teacher's week as a day x period table.
func (s *ExportService) TeacherCSV(ctx context.Context, teacherID string) ([]byte, error) {
	week, err := s.timetable.TeacherSchedule(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	dataset := weekDataset(func(slot models.Slot) string {
		occ := week[slot.Day][slot.Period]
		if occ == nil {
			return ""
		}
		return fmt.Sprintf("%s (%s)", occ.Subject, occ.ClassroomID)
	})
	return s.render(dataset, "teacher", teacherID)
}

// AllocationsCSV renders every assignment of every classroom, one per row.
func (s *ExportService) AllocationsCSV(ctx context.Context) ([]byte, error) {
	dataset := export.Dataset{Headers: []string{"classroom_id", "day", "period", "teacher_id", "subject"}}
	for _, snapshot := range s.timetable.AllGrids(ctx) {
		for _, slot := range models.AllSlots() {
			for _, a := range snapshot.Grid.Cell(slot) {
				dataset.Rows = append(dataset.Rows, map[string]string{
					"classroom_id": snapshot.ClassroomID,
					"day":          DayNames[slot.Day],
					"period":       strconv.Itoa(slot.Period + 1),
					"teacher_id":   a.TeacherID,
					"subject":      a.Subject,
				})
			}
		}
	}
	return s.render(dataset, "allocations", "all")
}

func (s *ExportService) render(dataset export.Dataset, kind, id string) ([]byte, error) {
	out, err := s.csv.Render(dataset)
	if err != nil {
		s.logger.Error("failed to render timetable csv", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("render %s csv: %w", kind, err)
	}
	return out, nil
}

func weekDataset(cell func(models.Slot) string) export.Dataset {
	headers := []string{"day"}
	for period := 0; period < models.PeriodsPerDay; period++ {
		headers = append(headers, periodHeader(period))
	}
	dataset := export.Dataset{Headers: headers}
	for day := 0; day < models.DaysPerWeek; day++ {
		row := map[string]string{"day": DayNames[day]}
		for period := 0; period < models.PeriodsPerDay; period++ {
			row[periodHeader(period)] = cell(models.Slot{Day: day, Period: period})
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}

func periodHeader(period int) string {
	return "period_" + strconv.Itoa(period+1)
}

func formatCell(cell models.Cell) string {
	parts := make([]string, 0, len(cell))
	for _, a := range cell {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Subject, a.TeacherID))
	}
	return strings.Join(parts, "; ")
}
