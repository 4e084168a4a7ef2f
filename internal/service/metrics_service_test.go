package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordMutation(OpUpsert, "")
	m.RecordRegeneration("committed", time.Second)
	m.ObservePersist("postgres", time.Millisecond, errors.New("down"))
	m.RecordIndexConflict(2)
	assert.Nil(t, m.Registry())
	assert.Zero(t, m.Snapshot().Mutations)
}

func TestMetricsServiceCountsEngineActivity(t *testing.T) {
	metrics := NewMetricsService()
	svc := newTimetableFixture(t, fixtureOptions{metrics: metrics})
	ctx := context.Background()

	_, _, err := svc.UpsertAssignment(ctx, "c-1", slotA, "t-1", "Math")
	require.NoError(t, err)
	_, _, err = svc.UpsertAssignment(ctx, "c-2", slotA, "t-1", "Math")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mutations.WithLabelValues(OpUpsert, "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mutations.WithLabelValues(OpUpsert, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rejections.WithLabelValues(string(ReasonDoubleBooked))))

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.Mutations)
	assert.Equal(t, uint64(1), snapshot.Rejections)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.classroomsLoaded))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/classrooms", http.StatusOK, 5*time.Millisecond)
	metrics.ObservePersist("redis", time.Millisecond, errors.New("timeout"))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "timetable_persist_failures_total")
	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)
	assert.Equal(t, uint64(1), metrics.Snapshot().PersistFailures)
}
