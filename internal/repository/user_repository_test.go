package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userColumns() []string {
	return []string{"id", "class", "is_notifying_lesson_updates", "is_getting_daily_schedule", "created_at", "updated_at"}
}

func TestFindByIDUnknownUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class, is_notifying_lesson_updates, is_getting_daily_schedule, created_at, updated_at FROM users WHERE id = $1 LIMIT 1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(userColumns()))

	user, err := repo.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNotifyingLessonUpdates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	class := "CLASS_11A"
	rows := sqlmock.NewRows(userColumns()).
		AddRow(int64(100), &class, true, false, now, now).
		AddRow(int64(200), &class, true, true, now, now)
	mock.ExpectQuery("SELECT id, class, is_notifying_lesson_updates, is_getting_daily_schedule, created_at, updated_at\nFROM users WHERE class = \\$1 AND is_notifying_lesson_updates = TRUE ORDER BY id ASC").
		WithArgs("CLASS_11A").
		WillReturnRows(rows)

	users, err := repo.FindNotifyingLessonUpdates(context.Background(), models.Class11A)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(100), users[0].ID)
	assert.Equal(t, models.Class11A, users[1].ClassValue())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotificationFlags(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET is_notifying_lesson_updates").
		WithArgs(int64(100), true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateNotificationFlags(context.Background(), 100, true, false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
