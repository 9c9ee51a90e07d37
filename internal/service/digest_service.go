package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/internal/notify"
)

// DigestUserStore lists users subscribed to the morning schedule message.
type DigestUserStore interface {
	FindGettingDailySchedule(ctx context.Context) ([]models.User, error)
}

// DailyNotifier enqueues daily schedule messages.
type DailyNotifier interface {
	EnqueueDailySchedule(userID int64, text string) error
}

// DigestService renders each class's today schedule once per morning and
// fans it out to the opted-in users of that class.
type DigestService struct {
	schedules *ScheduleService
	users     DigestUserStore
	notifier  DailyNotifier
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewDigestService constructs a digest service.
func NewDigestService(schedules *ScheduleService, users DigestUserStore, notifier DailyNotifier, location *time.Location, logger *zap.Logger) *DigestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &DigestService{
		schedules: schedules,
		users:     users,
		notifier:  notifier,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

// SendDailySchedules builds one message per class and enqueues it for every
// subscribed user of that class.
func (s *DigestService) SendDailySchedules(ctx context.Context) error {
	users, err := s.users.FindGettingDailySchedule(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}

	now := s.now()
	today := now.In(s.location).Format("2006-01-02")
	day, err := time.Parse("2006-01-02", today)
	if err != nil {
		return err
	}

	texts := make(map[models.Class]string)
	for _, class := range []models.Class{models.Class11A, models.Class11B} {
		lessons, err := s.schedules.GetSchedule(ctx, class, today)
		if err != nil {
			return err
		}
		stale, err := s.schedules.IsStale(ctx, class, now)
		if err != nil {
			return err
		}
		texts[class] = notify.FormatDailySchedule(lessons, day, s.location, stale)
	}

	enqueued := 0
	for _, user := range users {
		text, ok := texts[user.ClassValue()]
		if !ok {
			continue
		}
		if err := s.notifier.EnqueueDailySchedule(user.ID, text); err != nil {
			s.logger.Warn("enqueue daily schedule", zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		enqueued++
	}

	s.logger.Info("daily schedules dispatched", zap.String("date", today), zap.Int("recipients", enqueued))
	return nil
}
