package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// ClassroomRepository reads classrooms and their curriculum.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a ClassroomRepository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// ListClassrooms returns every classroom ordered by id.
func (r *ClassroomRepository) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	const query = `SELECT id, name, grade, curriculum, created_at FROM classrooms ORDER BY id`
	var records []models.ClassroomRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}

	classrooms := make([]models.Classroom, 0, len(records))
	for _, record := range records {
		classroom := models.Classroom{
			ID:        record.ID,
			Name:      record.Name,
			Grade:     record.Grade,
			CreatedAt: record.CreatedAt,
		}
		if len(record.Curriculum) > 0 && string(record.Curriculum) != "null" {
			if err := json.Unmarshal(record.Curriculum, &classroom.Curriculum); err != nil {
				return nil, fmt.Errorf("decode curriculum for classroom %s: %w", record.ID, err)
			}
		}
		classrooms = append(classrooms, classroom)
	}
	return classrooms, nil
}
