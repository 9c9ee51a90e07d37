package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

// ScheduleStore abstracts the redis-backed schedule cache.
type ScheduleStore interface {
	Lessons(ctx context.Context, class models.Class, date string) ([]models.ScheduleLesson, error)
	PutSchedule(ctx context.Context, class models.Class, schedule models.Schedule, ttl time.Duration) error
	UpdatedAt(ctx context.Context, class models.Class) (*time.Time, error)
	AccessToken(ctx context.Context, class models.Class, account models.Account) (string, error)
	SetAccessToken(ctx context.Context, class models.Class, account models.Account, token string, ttl time.Duration) error
	DeleteAccessTokens(ctx context.Context, class models.Class) error
}

// ScheduleService is the read-only schedule query API consumed by the bot
// presentation layer, plus the cache-write path used by the sync job.
type ScheduleService struct {
	store       ScheduleStore
	metrics     *MetricsService
	scheduleTTL time.Duration
	staleAfter  time.Duration
	logger      *zap.Logger
}

// NewScheduleService constructs a schedule service.
func NewScheduleService(store ScheduleStore, metrics *MetricsService, scheduleTTL, staleAfter time.Duration, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		store:       store,
		metrics:     metrics,
		scheduleTTL: scheduleTTL,
		staleAfter:  staleAfter,
		logger:      logger,
	}
}

// GetSchedule returns the cached lessons for a class and date. A cache miss
// is an empty list.
func (s *ScheduleService) GetSchedule(ctx context.Context, class models.Class, date string) ([]models.ScheduleLesson, error) {
	lessons, err := s.store.Lessons(ctx, class, date)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(len(lessons) > 0)
	}
	return lessons, nil
}

// UpdatedAt returns the instant of the class's last successful cache write,
// or nil when no write has happened yet.
func (s *ScheduleService) UpdatedAt(ctx context.Context, class models.Class) (*time.Time, error) {
	return s.store.UpdatedAt(ctx, class)
}

// IsStale reports whether the class's schedule has not been refreshed within
// the staleness threshold, signalling portal trouble to consumers.
func (s *ScheduleService) IsStale(ctx context.Context, class models.Class, now time.Time) (bool, error) {
	updatedAt, err := s.store.UpdatedAt(ctx, class)
	if err != nil {
		return false, err
	}
	if updatedAt == nil {
		return false, nil
	}
	return now.UTC().Sub(updatedAt.UTC()) >= s.staleAfter, nil
}

// CacheSchedule persists a fully merged schedule and stamps updated-at,
// unconditionally, even when nothing changed.
func (s *ScheduleService) CacheSchedule(ctx context.Context, class models.Class, schedule models.Schedule) error {
	return s.store.PutSchedule(ctx, class, schedule, s.scheduleTTL)
}
