package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type staticGrades map[string]string

func (g staticGrades) GradeOf(classroomID string) string { return g[classroomID] }

func gridWith(entries map[models.Slot]models.Cell) models.Grid {
	var g models.Grid
	for slot, cell := range entries {
		g.Set(slot, cell)
	}
	return g
}

func TestAvailabilityIndexRebuild(t *testing.T) {
	grids := map[string]models.Grid{
		"c-1": gridWith(map[models.Slot]models.Cell{
			{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Math"}},
			{Day: 2, Period: 3}: {{TeacherID: "t-1", Subject: "Math"}, {TeacherID: "t-2", Subject: "Art"}},
		}),
		"c-2": gridWith(map[models.Slot]models.Cell{
			{Day: 0, Period: 1}: {{TeacherID: "t-1", Subject: "Physics"}},
		}),
	}
	index := NewAvailabilityIndex(staticGrades{"c-1": "5", "c-2": "6"})

	conflicts, err := index.Rebuild(grids)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	assert.False(t, index.IsFree("t-1", models.Slot{Day: 0, Period: 0}))
	assert.True(t, index.IsFree("t-1", models.Slot{Day: 4, Period: 5}))
	assert.True(t, index.IsFree("unknown", models.Slot{Day: 0, Period: 0}))

	occ := index.OccupancyOf("t-1", models.Slot{Day: 0, Period: 1})
	require.NotNil(t, occ)
	assert.Equal(t, models.Occupancy{ClassroomID: "c-2", Subject: "Physics", Grade: "6"}, *occ)

	occ.Subject = "mutated"
	assert.Equal(t, "Physics", index.OccupancyOf("t-1", models.Slot{Day: 0, Period: 1}).Subject)
	assert.Equal(t, []string{"t-1", "t-2"}, index.Teachers())
	assert.Equal(t, 3, index.Row("t-1").Booked())
}

func TestAvailabilityIndexRebuildIsIdempotent(t *testing.T) {
	grids := map[string]models.Grid{
		"c-1": gridWith(map[models.Slot]models.Cell{{Day: 1, Period: 1}: {{TeacherID: "t-1", Subject: "Math"}}}),
		"c-2": gridWith(map[models.Slot]models.Cell{{Day: 1, Period: 2}: {{TeacherID: "t-1", Subject: "Math"}}}),
	}
	first := NewAvailabilityIndex(nil)
	_, err := first.Rebuild(grids)
	require.NoError(t, err)
	snapshot := NewAvailabilityIndex(nil)
	_, err = snapshot.Rebuild(grids)
	require.NoError(t, err)

	_, err = first.Rebuild(grids)
	require.NoError(t, err)
	assert.True(t, first.Equal(snapshot))
}

func TestAvailabilityIndexRebuildReportsDoubleBooking(t *testing.T) {
	grids := map[string]models.Grid{
		"c-1": gridWith(map[models.Slot]models.Cell{{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Math"}}}),
		"c-2": gridWith(map[models.Slot]models.Cell{{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Science"}}}),
	}
	index := NewAvailabilityIndex(nil)

	conflicts, err := index.Rebuild(grids)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrIndexConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c-2", conflicts[0].ClassroomID)
	assert.Equal(t, "c-1", conflicts[0].ExistingClassroom)
	assert.Equal(t, conflicts, ConflictsOf(err))

	occ := index.OccupancyOf("t-1", models.Slot{Day: 0, Period: 0})
	require.NotNil(t, occ)
	assert.Equal(t, "c-1", occ.ClassroomID, "first occupant is never overwritten")
}

func TestAvailabilityIndexApplyDiff(t *testing.T) {
	index := NewAvailabilityIndex(nil)
	slot := models.Slot{Day: 3, Period: 4}

	require.NoError(t, index.ApplyDiff("c-1", slot, nil, []models.Assignment{{TeacherID: "t-1", Subject: "Math"}}))
	assert.False(t, index.IsFree("t-1", slot))

	// Subject change in place: removed and re-added in one diff.
	require.NoError(t, index.ApplyDiff("c-1", slot, []string{"t-1"}, []models.Assignment{{TeacherID: "t-1", Subject: "Physics"}}))
	assert.Equal(t, "Physics", index.OccupancyOf("t-1", slot).Subject)

	require.NoError(t, index.ApplyDiff("c-1", slot, []string{"t-1"}, nil))
	assert.True(t, index.IsFree("t-1", slot))
	assert.Empty(t, index.Teachers())
}

func TestAvailabilityIndexApplyDiffIsAllOrNothing(t *testing.T) {
	index := NewAvailabilityIndex(nil)
	slot := models.Slot{Day: 0, Period: 0}
	require.NoError(t, index.ApplyDiff("c-1", slot, nil, []models.Assignment{{TeacherID: "t-1", Subject: "Math"}}))

	err := index.ApplyDiff("c-2", slot, nil, []models.Assignment{
		{TeacherID: "t-2", Subject: "Art"},
		{TeacherID: "t-1", Subject: "Math"},
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIndexConflict.Code))
	assert.Equal(t, "diff for classroom c-2 at 0/0 disagrees with index: 1 conflict", err.Error())
	assert.True(t, index.IsFree("t-2", slot), "partial diff must not be applied")
	assert.Equal(t, "c-1", index.OccupancyOf("t-1", slot).ClassroomID)

	err = index.ApplyDiff("c-2", slot, []string{"t-1"}, nil)
	require.Error(t, err, "removing another classroom's occupancy is a conflict")
	assert.False(t, index.IsFree("t-1", slot))

	err = index.ApplyDiff("c-1", models.Slot{Day: 5, Period: 0}, nil, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAvailabilityIndexClassroomSwap(t *testing.T) {
	index := NewAvailabilityIndex(nil)
	old := gridWith(map[models.Slot]models.Cell{{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Math"}}})
	other := gridWith(map[models.Slot]models.Cell{{Day: 1, Period: 0}: {{TeacherID: "t-2", Subject: "Art"}}})
	_, err := index.Rebuild(map[string]models.Grid{"c-1": old, "c-2": other})
	require.NoError(t, err)

	next := gridWith(map[models.Slot]models.Cell{
		{Day: 0, Period: 0}: {{TeacherID: "t-2", Subject: "Art"}},
		{Day: 1, Period: 0}: {{TeacherID: "t-2", Subject: "Art"}},
	})
	conflicts := index.Sweep("c-1", next)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.Slot{Day: 1, Period: 0}, conflicts[0].Slot())

	next.Set(models.Slot{Day: 1, Period: 0}, nil)
	assert.Empty(t, index.Sweep("c-1", next))

	index.ClearClassroom("c-1", old)
	require.NoError(t, index.IndexClassroom("c-1", next))
	assert.True(t, index.IsFree("t-1", models.Slot{Day: 0, Period: 0}))
	assert.Equal(t, "c-1", index.OccupancyOf("t-2", models.Slot{Day: 0, Period: 0}).ClassroomID)

	expected := NewAvailabilityIndex(nil)
	_, err = expected.Rebuild(map[string]models.Grid{"c-1": next, "c-2": other})
	require.NoError(t, err)
	assert.Empty(t, index.Drift(expected))
}

func TestAvailabilityIndexSweepFlagsDuplicateInCell(t *testing.T) {
	index := NewAvailabilityIndex(nil)
	grid := gridWith(map[models.Slot]models.Cell{
		{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Math"}, {TeacherID: "t-1", Subject: "Art"}},
	})
	conflicts := index.Sweep("c-1", grid)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictDimensionSlot, conflicts[0].Dimension)
}
