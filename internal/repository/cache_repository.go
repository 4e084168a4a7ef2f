package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// DefaultGridKeyPrefix namespaces grid keys in Redis.
const DefaultGridKeyPrefix = "timetable:grid:"

// GridCacheRepository keeps classroom grids in Redis, one JSON value per
// classroom. It serves as the persistence backend when Postgres is not used.
type GridCacheRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

type cachedGrid struct {
	Version int64       `json:"version"`
	Grid    models.Grid `json:"allocation"`
}

// NewGridCacheRepository constructs a Redis grid repository.
func NewGridCacheRepository(client *redis.Client, prefix string, logger *zap.Logger) *GridCacheRepository {
	if prefix == "" {
		prefix = DefaultGridKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridCacheRepository{client: client, prefix: prefix, logger: logger}
}

// Key returns the Redis key of a classroom grid.
func (r *GridCacheRepository) Key(classroomID string) string {
	return r.prefix + classroomID
}

// Get loads one classroom grid.
func (r *GridCacheRepository) Get(ctx context.Context, classroomID string) (models.GridSnapshot, error) {
	if r.client == nil {
		return models.GridSnapshot{}, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, r.Key(classroomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.GridSnapshot{}, appErrors.ErrCacheMiss
		}
		return models.GridSnapshot{}, fmt.Errorf("redis get %s: %w", r.Key(classroomID), err)
	}
	return decodeCachedGrid(classroomID, raw)
}

// LoadInitialGrids scans every grid key under the prefix.
func (r *GridCacheRepository) LoadInitialGrids(ctx context.Context) (map[string]models.GridSnapshot, error) {
	grids := make(map[string]models.GridSnapshot)
	if r.client == nil {
		return grids, nil
	}

	pattern := r.prefix + "*"
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		classroomID := strings.TrimPrefix(key, r.prefix)
		raw, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		snapshot, err := decodeCachedGrid(classroomID, raw)
		if err != nil {
			return nil, err
		}
		grids[classroomID] = snapshot
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return grids, nil
}

// Persist stores the snapshot unless Redis already holds a newer version.
func (r *GridCacheRepository) Persist(ctx context.Context, snapshot models.GridSnapshot) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(cachedGrid{Version: snapshot.Version, Grid: snapshot.Grid})
	if err != nil {
		return fmt.Errorf("marshal grid for %s: %w", snapshot.ClassroomID, err)
	}

	key := r.Key(snapshot.ClassroomID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			current, decodeErr := decodeCachedGrid(snapshot.ClassroomID, raw)
			if decodeErr == nil && current.Version >= snapshot.Version {
				r.logger.Debug("skipping stale grid write",
					zap.String("classroom_id", snapshot.ClassroomID),
					zap.Int64("stored_version", current.Version),
					zap.Int64("version", snapshot.Version),
				)
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *GridCacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func decodeCachedGrid(classroomID string, raw []byte) (models.GridSnapshot, error) {
	var cached cachedGrid
	if err := json.Unmarshal(raw, &cached); err != nil {
		return models.GridSnapshot{}, fmt.Errorf("unmarshal grid for %s: %w", classroomID, err)
	}
	return models.GridSnapshot{ClassroomID: classroomID, Version: cached.Version, Grid: cached.Grid}, nil
}
