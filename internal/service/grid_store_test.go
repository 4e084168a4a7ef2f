package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type diffCall struct {
	classroomID string
	slot        models.Slot
	removed     []string
	added       []models.Assignment
}

type recordingObserver struct {
	calls []diffCall
	err   error
}

func (o *recordingObserver) ApplyDiff(classroomID string, slot models.Slot, removed []string, added []models.Assignment) error {
	o.calls = append(o.calls, diffCall{classroomID: classroomID, slot: slot, removed: removed, added: added})
	return o.err
}

func TestGridStoreSetCellNotifiesDiff(t *testing.T) {
	store := NewGridStore()
	observer := &recordingObserver{}
	store.Observe(observer)
	store.Register(models.Classroom{ID: "c-1", Grade: "5"}, models.Grid{}, 0)

	slot := models.Slot{Day: 1, Period: 2}
	_, err := store.SetCell("c-1", slot, models.Cell{{TeacherID: "t-1", Subject: "Math"}, {TeacherID: "t-2", Subject: "Art"}})
	require.NoError(t, err)

	diff, err := store.SetCell("c-1", slot, models.Cell{{TeacherID: "t-1", Subject: "Physics"}, {TeacherID: "t-2", Subject: "Art"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1"}, diff.Removed)
	assert.Equal(t, []models.Assignment{{TeacherID: "t-1", Subject: "Physics"}}, diff.Added)

	// identical write: no notification
	_, err = store.SetCell("c-1", slot, models.Cell{{TeacherID: "t-1", Subject: "Physics"}, {TeacherID: "t-2", Subject: "Art"}})
	require.NoError(t, err)

	require.Len(t, observer.calls, 2)
	assert.Equal(t, "c-1", observer.calls[1].classroomID)
	assert.Equal(t, int64(3), store.Version("c-1"))
	assert.Equal(t, "5", store.GradeOf("c-1"))
}

func TestGridStoreRevertsWhenObserverRefuses(t *testing.T) {
	store := NewGridStore()
	observer := &recordingObserver{err: appErrors.Clone(appErrors.ErrIndexConflict, "nope")}
	store.Observe(observer)
	seed := gridWith(map[models.Slot]models.Cell{{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Math"}}})
	store.Register(models.Classroom{ID: "c-1"}, seed, 4)

	_, err := store.SetCell("c-1", models.Slot{Day: 0, Period: 0}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrIndexConflict))

	grid, err := store.Get("c-1")
	require.NoError(t, err)
	assert.True(t, grid.Equal(seed))
	assert.Equal(t, int64(4), store.Version("c-1"))
}

func TestGridStoreErrors(t *testing.T) {
	store := NewGridStore()
	_, err := store.Get("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	store.Register(models.Classroom{ID: "c-1"}, models.Grid{}, 0)
	_, err = store.SetCell("c-1", models.Slot{Day: 0, Period: 6}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGridStoreReturnsCopies(t *testing.T) {
	store := NewGridStore()
	store.Register(models.Classroom{ID: "c-1"}, gridWith(map[models.Slot]models.Cell{{Day: 0, Period: 0}: {{TeacherID: "t-1", Subject: "Math"}}}), 0)

	grid, err := store.Get("c-1")
	require.NoError(t, err)
	grid[0][0][0].Subject = "changed"

	again, err := store.Get("c-1")
	require.NoError(t, err)
	assert.Equal(t, "Math", again[0][0][0].Subject)

	all := store.All()
	require.Contains(t, all, "c-1")
	previous, err := store.Replace("c-1", models.Grid{})
	require.NoError(t, err)
	assert.Equal(t, "Math", previous[0][0][0].Subject)
	assert.Equal(t, int64(1), store.Version("c-1"))
}
