package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/pkg/jobs"
)

// JobTypeGridPersist labels grid persistence jobs.
const JobTypeGridPersist = "grid.persist"

// GridPersister stores a committed classroom grid.
type GridPersister interface {
	Persist(ctx context.Context, snapshot models.GridSnapshot) error
}

// GridPersistQueueConfig tunes the background writer.
type GridPersistQueueConfig struct {
	Backend    string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

type persistMetrics interface {
	ObservePersist(backend string, duration time.Duration, err error)
}

// GridPersistQueue writes committed grids off the mutation path. Only the
// newest version of each classroom is written; older queued snapshots are
// skipped when a newer one has already been stored.
type GridPersistQueue struct {
	queue     *jobs.Queue
	persister GridPersister
	backend   string
	metrics   persistMetrics
	logger    *zap.Logger

	mu      sync.Mutex
	written map[string]int64
}

// NewGridPersistQueue wires a persist queue around persister.
func NewGridPersistQueue(persister GridPersister, cfg GridPersistQueueConfig, metrics persistMetrics, logger *zap.Logger) *GridPersistQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &GridPersistQueue{
		persister: persister,
		backend:   cfg.Backend,
		metrics:   metrics,
		logger:    logger,
		written:   make(map[string]int64),
	}
	p.queue = jobs.NewQueue("grid-persist", p.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDrop:     p.dropped,
	})
	return p
}

// Start launches the workers.
func (p *GridPersistQueue) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop flushes buffered snapshots and stops the workers.
func (p *GridPersistQueue) Stop() {
	p.queue.Stop()
}

// Persist implements GridPersister by enqueueing the snapshot.
func (p *GridPersistQueue) Persist(_ context.Context, snapshot models.GridSnapshot) error {
	return p.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeGridPersist,
		Payload: snapshot,
	})
}

func (p *GridPersistQueue) handle(ctx context.Context, job jobs.Job) error {
	snapshot, ok := job.Payload.(models.GridSnapshot)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	if p.stale(snapshot) {
		return nil
	}

	start := time.Now()
	err := p.persister.Persist(ctx, snapshot)
	if p.metrics != nil {
		p.metrics.ObservePersist(p.backend, time.Since(start), err)
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	if snapshot.Version > p.written[snapshot.ClassroomID] {
		p.written[snapshot.ClassroomID] = snapshot.Version
	}
	p.mu.Unlock()
	return nil
}

func (p *GridPersistQueue) stale(snapshot models.GridSnapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return snapshot.Version <= p.written[snapshot.ClassroomID]
}

func (p *GridPersistQueue) dropped(job jobs.Job, err error) {
	snapshot, _ := job.Payload.(models.GridSnapshot)
	p.logger.Error("grid snapshot not persisted",
		zap.String("job_id", job.ID),
		zap.String("classroom_id", snapshot.ClassroomID),
		zap.Int64("version", snapshot.Version),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}
