package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func TestGridPersistQueueWritesAndSkipsStale(t *testing.T) {
	target := &recordingPersister{}
	metrics := NewMetricsService()
	queue := NewGridPersistQueue(target, GridPersistQueueConfig{Backend: "memory", Workers: 1}, metrics, nil)
	queue.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, queue.Persist(ctx, models.GridSnapshot{ClassroomID: "c-1", Version: 2}))
	require.NoError(t, queue.Persist(ctx, models.GridSnapshot{ClassroomID: "c-1", Version: 1}))
	require.NoError(t, queue.Persist(ctx, models.GridSnapshot{ClassroomID: "c-2", Version: 1}))
	queue.Stop()

	require.Equal(t, 2, target.Len())
	assert.Equal(t, int64(2), target.snapshots[0].Version)
	assert.Equal(t, "c-2", target.snapshots[1].ClassroomID)

	assert.Error(t, queue.Persist(ctx, models.GridSnapshot{ClassroomID: "c-1", Version: 3}))
}

func TestGridPersistQueueRetriesFailures(t *testing.T) {
	target := &flakyPersister{failures: 1, done: make(chan struct{})}
	metrics := NewMetricsService()
	queue := NewGridPersistQueue(target, GridPersistQueueConfig{Backend: "memory", MaxRetries: 2, RetryDelay: time.Millisecond}, metrics, nil)
	queue.Start(context.Background())

	require.NoError(t, queue.Persist(context.Background(), models.GridSnapshot{ClassroomID: "c-1", Version: 1}))
	select {
	case <-target.done:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot never persisted")
	}
	queue.Stop()

	assert.Equal(t, 2, target.calls)
	assert.Equal(t, uint64(1), metrics.Snapshot().PersistFailures)
}

type flakyPersister struct {
	failures int
	calls    int
	done     chan struct{}
}

func (f *flakyPersister) Persist(context.Context, models.GridSnapshot) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	close(f.done)
	return nil
}
