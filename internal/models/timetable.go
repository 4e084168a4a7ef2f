package models

import (
	"fmt"
	"time"
)

// Grid dimensions shared by every classroom.
const (
	DaysPerWeek   = 5
	PeriodsPerDay = 6
	SlotsPerWeek  = DaysPerWeek * PeriodsPerDay
)

// Slot is one (day, period) coordinate of the weekly grid, zero based.
type Slot struct {
	Day    int `json:"day"`
	Period int `json:"period"`
}

// Valid reports whether the slot lies inside the grid.
func (s Slot) Valid() bool {
	return s.Day >= 0 && s.Day < DaysPerWeek && s.Period >= 0 && s.Period < PeriodsPerDay
}

func (s Slot) String() string {
	return fmt.Sprintf("%d/%d", s.Day, s.Period)
}

// AllSlots lists every coordinate in day-major order.
func AllSlots() []Slot {
	slots := make([]Slot, 0, SlotsPerWeek)
	for day := 0; day < DaysPerWeek; day++ {
		for period := 0; period < PeriodsPerDay; period++ {
			slots = append(slots, Slot{Day: day, Period: period})
		}
	}
	return slots
}

// Assignment places a teacher teaching a subject into a slot.
type Assignment struct {
	TeacherID string `json:"teacher_id"`
	Subject   string `json:"subject"`
}

// Empty reports whether neither side of the pairing is set.
func (a Assignment) Empty() bool {
	return a.TeacherID == "" && a.Subject == ""
}

// Cell is the ordered assignment list of one slot. Nil means free.
type Cell []Assignment

// IndexOf returns the position of teacherID in the cell or -1.
func (c Cell) IndexOf(teacherID string) int {
	for i, a := range c {
		if a.TeacherID == teacherID {
			return i
		}
	}
	return -1
}

// Clone copies the cell so callers cannot alias store memory.
func (c Cell) Clone() Cell {
	if len(c) == 0 {
		return nil
	}
	out := make(Cell, len(c))
	copy(out, c)
	return out
}

// Equal compares two cells element-wise, treating nil and empty alike.
func (c Cell) Equal(other Cell) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Grid is one classroom's week: Grid[day][period].
type Grid [DaysPerWeek][PeriodsPerDay]Cell

// Cell returns the cell at slot. The slot must be valid.
func (g Grid) Cell(slot Slot) Cell {
	return g[slot.Day][slot.Period]
}

// Set replaces the cell at slot. The slot must be valid.
func (g *Grid) Set(slot Slot, cell Cell) {
	g[slot.Day][slot.Period] = cell
}

// Clone deep-copies the grid.
func (g Grid) Clone() Grid {
	var out Grid
	for day := range g {
		for period := range g[day] {
			out[day][period] = g[day][period].Clone()
		}
	}
	return out
}

// Equal compares two grids cell by cell.
func (g Grid) Equal(other Grid) bool {
	for day := range g {
		for period := range g[day] {
			if !g[day][period].Equal(other[day][period]) {
				return false
			}
		}
	}
	return true
}

// FilledSlots counts slots holding at least one assignment.
func (g Grid) FilledSlots() int {
	filled := 0
	for day := range g {
		for period := range g[day] {
			if len(g[day][period]) > 0 {
				filled++
			}
		}
	}
	return filled
}

// TeacherIDs returns every teacher referenced by the grid, unordered and unique.
func (g Grid) TeacherIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for day := range g {
		for period := range g[day] {
			for _, a := range g[day][period] {
				if _, ok := seen[a.TeacherID]; ok || a.TeacherID == "" {
					continue
				}
				seen[a.TeacherID] = struct{}{}
				ids = append(ids, a.TeacherID)
			}
		}
	}
	return ids
}

// Occupancy is a teacher's commitment to one classroom at one slot.
type Occupancy struct {
	ClassroomID string `json:"classroom_id"`
	Subject     string `json:"subject"`
	Grade       string `json:"grade,omitempty"`
}

// TeacherWeek is one teacher's row of the availability index. Nil is free.
type TeacherWeek [DaysPerWeek][PeriodsPerDay]*Occupancy

// Booked counts occupied slots.
func (w TeacherWeek) Booked() int {
	booked := 0
	for day := range w {
		for period := range w[day] {
			if w[day][period] != nil {
				booked++
			}
		}
	}
	return booked
}

// GridSnapshot is a point-in-time copy of a classroom grid.
type GridSnapshot struct {
	ID          string    `json:"id"`
	ClassroomID string    `json:"classroom_id"`
	Version     int64     `json:"version"`
	Grid        Grid      `json:"grid"`
	GeneratedAt time.Time `json:"generated_at"`
}

// EngineMetrics is a point-in-time summary of engine activity.
type EngineMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Mutations                uint64    `json:"mutations"`
	Rejections               uint64    `json:"rejections"`
	Regenerations            uint64    `json:"regenerations"`
	IndexConflicts           uint64    `json:"index_conflicts"`
	PersistFailures          uint64    `json:"persist_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
