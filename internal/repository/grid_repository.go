package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// GridRepository stores classroom allocations as JSON, one row per classroom.
type GridRepository struct {
	db *sqlx.DB
}

// NewGridRepository constructs a GridRepository.
func NewGridRepository(db *sqlx.DB) *GridRepository {
	return &GridRepository{db: db}
}

func (r *GridRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LoadInitialGrids returns the stored grid of every classroom.
func (r *GridRepository) LoadInitialGrids(ctx context.Context) (map[string]models.GridSnapshot, error) {
	const query = `SELECT classroom_id, allocation, version, updated_at FROM classroom_grids`
	var records []models.ClassroomGridRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("load classroom grids: %w", err)
	}

	grids := make(map[string]models.GridSnapshot, len(records))
	for _, record := range records {
		grid, err := decodeAllocation(record.Allocation)
		if err != nil {
			return nil, fmt.Errorf("decode allocation for classroom %s: %w", record.ClassroomID, err)
		}
		grids[record.ClassroomID] = models.GridSnapshot{
			ClassroomID: record.ClassroomID,
			Version:     record.Version,
			Grid:        grid,
			GeneratedAt: record.UpdatedAt,
		}
	}
	return grids, nil
}

// Persist upserts a snapshot. Rows already holding a newer version are left
// alone so out-of-order writes cannot roll a grid back.
func (r *GridRepository) Persist(ctx context.Context, snapshot models.GridSnapshot) error {
	return r.PersistWith(ctx, nil, snapshot)
}

// PersistWith is Persist on an explicit executor such as a transaction.
func (r *GridRepository) PersistWith(ctx context.Context, exec sqlx.ExtContext, snapshot models.GridSnapshot) error {
	payload, err := json.Marshal(snapshot.Grid)
	if err != nil {
		return fmt.Errorf("encode allocation for classroom %s: %w", snapshot.ClassroomID, err)
	}
	const query = `INSERT INTO classroom_grids (classroom_id, allocation, version, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (classroom_id) DO UPDATE SET allocation = EXCLUDED.allocation, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
WHERE classroom_grids.version < EXCLUDED.version`
	if _, err := r.exec(exec).ExecContext(ctx, query, snapshot.ClassroomID, types.JSONText(payload), snapshot.Version, time.Now().UTC()); err != nil {
		return fmt.Errorf("persist grid for classroom %s: %w", snapshot.ClassroomID, err)
	}
	return nil
}

// decodeAllocation parses the 5x6 nested allocation array. Missing rows or
// periods stay free; anything larger is an error. NULL columns scan as "{}".
func decodeAllocation(raw types.JSONText) (models.Grid, error) {
	var grid models.Grid
	switch string(raw) {
	case "", "null", "{}":
		return grid, nil
	}
	var rows [][]models.Cell
	if err := json.Unmarshal(raw, &rows); err != nil {
		return grid, err
	}
	if len(rows) > models.DaysPerWeek {
		return grid, fmt.Errorf("allocation has %d days, want at most %d", len(rows), models.DaysPerWeek)
	}
	for day, periods := range rows {
		if len(periods) > models.PeriodsPerDay {
			return grid, fmt.Errorf("allocation day %d has %d periods, want at most %d", day, len(periods), models.PeriodsPerDay)
		}
		for period, cell := range periods {
			grid[day][period] = cell
		}
	}
	return grid, nil
}
