package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassroomRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestClassroomRepositoryListClassrooms(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()

	repo := NewClassroomRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "grade", "curriculum", "created_at"}).
		AddRow("c-1", "5A", "5", []byte(`{"Math":4,"Science":3}`), now).
		AddRow("c-2", "5B", "5", nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, grade, curriculum, created_at FROM classrooms ORDER BY id")).
		WillReturnRows(rows)

	classrooms, err := repo.ListClassrooms(context.Background())
	require.NoError(t, err)
	require.Len(t, classrooms, 2)
	assert.Equal(t, 4, classrooms[0].Curriculum["Math"])
	assert.True(t, classrooms[0].Offers("Science"))
	assert.False(t, classrooms[0].Offers("Art"))
	assert.Empty(t, classrooms[1].Curriculum)
	assert.True(t, classrooms[1].Offers("Art"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryListClassroomsBadCurriculum(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()

	repo := NewClassroomRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "grade", "curriculum", "created_at"}).
		AddRow("c-1", "5A", "5", []byte(`[1,2]`), time.Now())
	mock.ExpectQuery("SELECT id, name, grade").WillReturnRows(rows)

	_, err := repo.ListClassrooms(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c-1")
}

func TestClassroomRepositoryListClassroomsQueryError(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()

	repo := NewClassroomRepository(db)
	mock.ExpectQuery("SELECT id, name, grade").WillReturnError(errors.New("boom"))

	_, err := repo.ListClassrooms(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list classrooms")
}
