package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotValid(t *testing.T) {
	assert.True(t, Slot{Day: 0, Period: 0}.Valid())
	assert.True(t, Slot{Day: 4, Period: 5}.Valid())
	assert.False(t, Slot{Day: 5, Period: 0}.Valid())
	assert.False(t, Slot{Day: 0, Period: 6}.Valid())
	assert.False(t, Slot{Day: -1, Period: 2}.Valid())
	assert.Len(t, AllSlots(), SlotsPerWeek)
}

func TestGridCloneDoesNotAlias(t *testing.T) {
	var g Grid
	g.Set(Slot{Day: 1, Period: 2}, Cell{{TeacherID: "t-1", Subject: "Math"}})

	clone := g.Clone()
	clone[1][2][0].Subject = "Physics"

	assert.Equal(t, "Math", g[1][2][0].Subject)
	assert.False(t, g.Equal(clone))
	assert.Equal(t, 1, g.FilledSlots())
	assert.Equal(t, []string{"t-1"}, g.TeacherIDs())
}

func TestGridJSONIsNestedAllocation(t *testing.T) {
	var g Grid
	g.Set(Slot{Day: 0, Period: 0}, Cell{{TeacherID: "t-1", Subject: "Math"}, {TeacherID: "t-2", Subject: "Art"}})

	raw, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded [][]Cell
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, DaysPerWeek)
	require.Len(t, decoded[0], PeriodsPerDay)
	assert.Equal(t, "t-2", decoded[0][0][1].TeacherID)
	assert.Nil(t, decoded[4][5])
}

func TestTeacherQualifications(t *testing.T) {
	open := Teacher{ID: "t-1"}
	assert.True(t, open.Teaches("Anything"))
	assert.True(t, open.CoversGrade("9"))

	strict := Teacher{ID: "t-2", Subjects: []string{"Math"}, Grades: []string{"5"}}
	assert.True(t, strict.Teaches("Math"))
	assert.False(t, strict.Teaches("Science"))
	assert.False(t, strict.CoversGrade("6"))
}

func TestClassroomOffers(t *testing.T) {
	assert.True(t, Classroom{}.Offers("Math"))
	c := Classroom{Curriculum: map[string]int{"Math": 5}}
	assert.True(t, c.Offers("Math"))
	assert.False(t, c.Offers("Art"))
}
