package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

func TestGridCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewGridCacheRepository(nil, "", nil)
	ctx := context.Background()

	assert.Equal(t, DefaultGridKeyPrefix+"c-1", repo.Key("c-1"))

	grids, err := repo.LoadInitialGrids(ctx)
	require.NoError(t, err)
	assert.Empty(t, grids)

	require.NoError(t, repo.Persist(ctx, models.GridSnapshot{ClassroomID: "c-1", Version: 1}))

	_, err = repo.Get(ctx, "c-1")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Close())
}

func TestDecodeCachedGrid(t *testing.T) {
	raw := []byte(`{"version":4,"allocation":[[[{"teacher_id":"t-1","subject":"Math"}]],[],[],[],[]]}`)
	snapshot, err := decodeCachedGrid("c-9", raw)
	require.NoError(t, err)
	assert.Equal(t, "c-9", snapshot.ClassroomID)
	assert.Equal(t, int64(4), snapshot.Version)
	assert.Equal(t, "t-1", snapshot.Grid.Cell(models.Slot{})[0].TeacherID)
}
