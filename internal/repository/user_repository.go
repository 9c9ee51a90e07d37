package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

// UserRepository provides database access for Telegram users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by Telegram chat id, or nil when unknown.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, class, is_notifying_lesson_updates, is_getting_daily_schedule, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create registers a new user with default notification settings.
func (r *UserRepository) Create(ctx context.Context, id int64) (*models.User, error) {
	const query = `INSERT INTO users (id, created_at, updated_at) VALUES ($1, $2, $2)
RETURNING id, class, is_notifying_lesson_updates, is_getting_daily_schedule, created_at, updated_at`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// UpdateClass sets or clears the user's class.
func (r *UserRepository) UpdateClass(ctx context.Context, id int64, class *string) error {
	const query = `UPDATE users SET class = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, class, time.Now().UTC()); err != nil {
		return fmt.Errorf("update user class: %w", err)
	}
	return nil
}

// UpdateNotificationFlags toggles the lesson-update and daily-schedule
// subscriptions.
func (r *UserRepository) UpdateNotificationFlags(ctx context.Context, id int64, lessonUpdates, dailySchedule bool) error {
	const query = `UPDATE users SET is_notifying_lesson_updates = $2, is_getting_daily_schedule = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lessonUpdates, dailySchedule, time.Now().UTC()); err != nil {
		return fmt.Errorf("update user notification flags: %w", err)
	}
	return nil
}

// FindNotifyingLessonUpdates lists users of a class subscribed to
// lesson-update notifications.
func (r *UserRepository) FindNotifyingLessonUpdates(ctx context.Context, class models.Class) ([]models.User, error) {
	const query = `SELECT id, class, is_notifying_lesson_updates, is_getting_daily_schedule, created_at, updated_at
FROM users WHERE class = $1 AND is_notifying_lesson_updates = TRUE ORDER BY id ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, class.DBValue()); err != nil {
		return nil, fmt.Errorf("find users notifying lesson updates: %w", err)
	}
	return users, nil
}

// FindGettingDailySchedule lists users subscribed to the daily schedule
// message, across both classes.
func (r *UserRepository) FindGettingDailySchedule(ctx context.Context) ([]models.User, error) {
	const query = `SELECT id, class, is_notifying_lesson_updates, is_getting_daily_schedule, created_at, updated_at
FROM users WHERE class IS NOT NULL AND is_getting_daily_schedule = TRUE ORDER BY id ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("find users getting daily schedule: %w", err)
	}
	return users, nil
}

// Count returns the total number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
