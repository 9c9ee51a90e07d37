package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

const statisticsCacheKey = "root-statistics"

// Statistics is the public usage summary. Counts above one hundred are
// rounded down to the nearest hundred and suffixed with a plus.
type Statistics struct {
	Users            string    `json:"users"`
	ScheduleRequests string    `json:"scheduleRequests"`
	ConferenceVisits string    `json:"conferenceVisits"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// UserCounter counts registered bot users.
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// VisitCounter counts conference link redirects.
type VisitCounter interface {
	CountVisits(ctx context.Context) (int, error)
}

// RequestCounter reads the lifetime schedule-request total.
type RequestCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatisticsCache stores the computed summary between requests.
type StatisticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatisticsService aggregates usage counters, serving from cache while a
// previous computation is still fresh.
type StatisticsService struct {
	users    UserCounter
	requests RequestCounter
	visits   VisitCounter
	cache    StatisticsCache
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatisticsService constructs a statistics service.
func NewStatisticsService(users UserCounter, requests RequestCounter, visits VisitCounter, cache StatisticsCache, ttl time.Duration, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		users:    users,
		requests: requests,
		visits:   visits,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Statistics returns the usage summary, recomputing it on a cache miss.
func (s *StatisticsService) Statistics(ctx context.Context) (*Statistics, error) {
	var cached Statistics
	err := s.cache.Get(ctx, statisticsCacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("statistics cache read failed", zap.Error(err))
	}

	userCount, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	requestCount, err := s.requests.Count(ctx)
	if err != nil {
		return nil, err
	}
	visitCount, err := s.visits.CountVisits(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Users:            formatCount(userCount),
		ScheduleRequests: formatCount(requestCount),
		ConferenceVisits: formatCount(visitCount),
		GeneratedAt:      s.now().UTC(),
	}

	if err := s.cache.Set(ctx, statisticsCacheKey, stats, s.ttl); err != nil {
		s.logger.Warn("statistics cache write failed", zap.Error(err))
	}

	return stats, nil
}

// formatCount renders small counts exactly and larger ones as a rounded
// lower bound, e.g. 347 becomes "300+".
func formatCount(n int) string {
	if n < 100 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%d+", n/100*100)
}
