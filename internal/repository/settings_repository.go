package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

// SettingsRepository manages the singleton row of global bot toggles.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Find returns the settings row, or nil when none exists yet.
func (r *SettingsRepository) Find(ctx context.Context) (*models.Settings, error) {
	const query = `SELECT id, is_distance_education, is_technical_works, updated_at FROM settings LIMIT 1`
	var settings models.Settings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find settings: %w", err)
	}
	return &settings, nil
}

// Create inserts the settings row with default toggles.
func (r *SettingsRepository) Create(ctx context.Context) (*models.Settings, error) {
	const query = `INSERT INTO settings (id, is_distance_education, is_technical_works, updated_at)
VALUES ($1, FALSE, FALSE, $2)
RETURNING id, is_distance_education, is_technical_works, updated_at`
	var settings models.Settings
	if err := r.db.GetContext(ctx, &settings, query, uuid.NewString(), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}
	return &settings, nil
}

// Update overwrites the toggle flags.
func (r *SettingsRepository) Update(ctx context.Context, id string, isDistanceEducation, isTechnicalWorks bool) error {
	const query = `UPDATE settings SET is_distance_education = $2, is_technical_works = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, isDistanceEducation, isTechnicalWorks, time.Now().UTC()); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
