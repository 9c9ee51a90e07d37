package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

const (
	conferenceIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	conferenceIDLength   = 5
)

// ConferenceRepository persists meeting-URL to short-id mappings and the
// per-device redirect analytics.
type ConferenceRepository struct {
	db *sqlx.DB
}

// NewConferenceRepository creates a new instance of ConferenceRepository.
func NewConferenceRepository(db *sqlx.DB) *ConferenceRepository {
	return &ConferenceRepository{db: db}
}

// FindByURLClassDate looks up a conference by its unique
// (url, class, schedule date) key. Returns nil when absent.
func (r *ConferenceRepository) FindByURLClassDate(ctx context.Context, url string, class models.Class, date time.Time) (*models.Conference, error) {
	const query = `SELECT id, original_conference_url, schedule_class, schedule_date, created_at
FROM conferences WHERE original_conference_url = $1 AND schedule_class = $2 AND schedule_date = $3 LIMIT 1`
	var conference models.Conference
	if err := r.db.GetContext(ctx, &conference, query, url, class.DBValue(), date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find conference: %w", err)
	}
	return &conference, nil
}

// FindByID returns a conference by its short id, or nil when unknown.
func (r *ConferenceRepository) FindByID(ctx context.Context, id string) (*models.Conference, error) {
	const query = `SELECT id, original_conference_url, schedule_class, schedule_date, created_at
FROM conferences WHERE id = $1 LIMIT 1`
	var conference models.Conference
	if err := r.db.GetContext(ctx, &conference, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find conference by id: %w", err)
	}
	return &conference, nil
}

// Create inserts a conference with a freshly generated short id and returns
// the stored row.
func (r *ConferenceRepository) Create(ctx context.Context, url string, class models.Class, date time.Time) (*models.Conference, error) {
	id, err := newConferenceID()
	if err != nil {
		return nil, fmt.Errorf("generate conference id: %w", err)
	}

	const query = `INSERT INTO conferences (id, original_conference_url, schedule_class, schedule_date, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, original_conference_url, schedule_class, schedule_date, created_at`
	var conference models.Conference
	if err := r.db.GetContext(ctx, &conference, query, id, url, class.DBValue(), date, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create conference: %w", err)
	}
	return &conference, nil
}

// RecordVisit stores one redirect through a conference link.
func (r *ConferenceRepository) RecordVisit(ctx context.Context, conferenceID, deviceType string) error {
	visit := models.ConferenceVisit{
		ID:           uuid.NewString(),
		ConferenceID: conferenceID,
		DeviceType:   deviceType,
		CreatedAt:    time.Now().UTC(),
	}
	const query = `INSERT INTO conference_visits (id, conference_id, device_type, created_at)
VALUES (:id, :conference_id, :device_type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, visit); err != nil {
		return fmt.Errorf("record conference visit: %w", err)
	}
	return nil
}

// CountVisits returns the total number of recorded redirects.
func (r *ConferenceRepository) CountVisits(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM conference_visits`); err != nil {
		return 0, fmt.Errorf("count conference visits: %w", err)
	}
	return count, nil
}

// newConferenceID generates a 5-character alphanumeric short id, the public
// part of the redirect URL.
func newConferenceID() (string, error) {
	id := make([]byte, conferenceIDLength)
	max := big.NewInt(int64(len(conferenceIDAlphabet)))
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		id[i] = conferenceIDAlphabet[n.Int64()]
	}
	return string(id), nil
}
