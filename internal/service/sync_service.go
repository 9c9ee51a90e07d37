package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

// ScheduleSource builds one account's schedule for a date range.
type ScheduleSource interface {
	Build(ctx context.Context, class models.Class, accessToken, startDate, endDate string) (*models.Schedule, error)
}

// SettingsStore reads the global toggle flags.
type SettingsStore interface {
	Find(ctx context.Context) (*models.Settings, error)
	Create(ctx context.Context) (*models.Settings, error)
}

// UserStore lists notification subscribers.
type UserStore interface {
	FindNotifyingLessonUpdates(ctx context.Context, class models.Class) ([]models.User, error)
}

// UpdateNotifier enqueues lesson-update notification jobs. Dispatch runs on
// its own queue so a slow fan-out never blocks the next sync tick.
type UpdateNotifier interface {
	EnqueueLessonUpdates(userID int64, updates []models.LessonUpdate) error
}

// AccountCredentials is one portal login identity.
type AccountCredentials struct {
	Username string
	Password string
}

// ClassCredentials maps both polled accounts of a class to their portal
// credentials.
type ClassCredentials map[models.Account]AccountCredentials

// SyncService orchestrates the periodic per-class synchronisation tick:
// token lifecycle, two-account fetch and merge, change detection,
// notification fan-out and the cache write.
type SyncService struct {
	builder   ScheduleSource
	portal    PortalClient
	schedules *ScheduleService
	store     ScheduleStore
	settings  SettingsStore
	users     UserStore
	notifier  UpdateNotifier
	metrics   *MetricsService

	credentials map[models.Class]ClassCredentials
	tokenTTL    time.Duration
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewSyncService constructs the orchestrator.
func NewSyncService(
	builder ScheduleSource,
	portalClient PortalClient,
	schedules *ScheduleService,
	store ScheduleStore,
	settings SettingsStore,
	users UserStore,
	notifier UpdateNotifier,
	metrics *MetricsService,
	credentials map[models.Class]ClassCredentials,
	tokenTTL time.Duration,
	location *time.Location,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &SyncService{
		builder:     builder,
		portal:      portalClient,
		schedules:   schedules,
		store:       store,
		settings:    settings,
		users:       users,
		notifier:    notifier,
		metrics:     metrics,
		credentials: credentials,
		tokenTTL:    tokenTTL,
		location:    location,
		logger:      logger,
		now:         time.Now,
	}
}

// SyncClass executes one tick for a class. Errors abort the tick without
// rolling anything back; the next tick retries from scratch.
func (s *SyncService) SyncClass(ctx context.Context, class models.Class) (err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSyncRun(string(class), err, time.Since(start))
		}
	}()

	tokens, err := s.classTokens(ctx, class)
	if err != nil {
		return err
	}

	now := s.now().In(s.location)
	weekStart, weekEnd := weekBounds(now)

	schedule, err := s.buildMerged(ctx, class, tokens, weekStart, weekEnd)
	if errors.Is(err, appErrors.ErrPortalAuth) {
		// The portal revoked a cached token. Force a fresh login pair and
		// retry once within this tick rather than waiting for eviction.
		s.logger.Warn("portal rejected cached token, re-authenticating",
			zap.String("class", string(class)))
		if delErr := s.store.DeleteAccessTokens(ctx, class); delErr != nil {
			return delErr
		}
		tokens, err = s.loginAccounts(ctx, class)
		if err != nil {
			return err
		}
		schedule, err = s.buildMerged(ctx, class, tokens, weekStart, weekEnd)
	}
	if err != nil {
		return err
	}

	if err := s.notifyLessonUpdates(ctx, class, schedule, now); err != nil {
		return err
	}

	if err := s.schedules.CacheSchedule(ctx, class, *schedule); err != nil {
		return err
	}

	// On the last day of the week, prefetch next week so it is cached
	// before it becomes "today".
	if now.Weekday() == time.Sunday {
		nextStart, nextEnd := weekBounds(now.AddDate(0, 0, 7))
		next, err := s.buildMerged(ctx, class, tokens, nextStart, nextEnd)
		if err != nil {
			return err
		}
		if err := s.schedules.CacheSchedule(ctx, class, *next); err != nil {
			return err
		}
	}

	return nil
}

// classTokens returns both accounts' access tokens, logging in when any is
// missing from the cache.
func (s *SyncService) classTokens(ctx context.Context, class models.Class) (map[models.Account]string, error) {
	tokens := make(map[models.Account]string, 2)
	for _, account := range []models.Account{models.AccountBoy, models.AccountGirl} {
		token, err := s.store.AccessToken(ctx, class, account)
		if err != nil {
			return nil, err
		}
		tokens[account] = token
	}

	if tokens[models.AccountBoy] != "" && tokens[models.AccountGirl] != "" {
		return tokens, nil
	}
	return s.loginAccounts(ctx, class)
}

// loginAccounts authenticates both accounts in parallel and caches the
// resulting tokens.
func (s *SyncService) loginAccounts(ctx context.Context, class models.Class) (map[models.Account]string, error) {
	creds, ok := s.credentials[class]
	if !ok {
		return nil, fmt.Errorf("no portal credentials configured for class %s", class)
	}

	accounts := []models.Account{models.AccountBoy, models.AccountGirl}
	tokens := make(map[models.Account]string, len(accounts))
	errs := make(map[models.Account]error, len(accounts))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, account := range accounts {
		wg.Add(1)
		go func(account models.Account) {
			defer wg.Done()
			resp, err := s.portal.Login(ctx, creds[account].Username, creds[account].Password)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[account] = err
				return
			}
			tokens[account] = resp.AccessToken
		}(account)
	}
	wg.Wait()

	for _, account := range accounts {
		if err := errs[account]; err != nil {
			return nil, fmt.Errorf("login %s/%s: %w", class, account, err)
		}
		if err := s.store.SetAccessToken(ctx, class, account, tokens[account], s.tokenTTL); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// buildMerged builds both accounts' schedules in parallel and reconciles
// them into one.
func (s *SyncService) buildMerged(ctx context.Context, class models.Class, tokens map[models.Account]string, startDate, endDate string) (*models.Schedule, error) {
	accounts := []models.Account{models.AccountBoy, models.AccountGirl}
	schedules := make([]*models.Schedule, len(accounts))
	errs := make([]error, len(accounts))

	var wg sync.WaitGroup
	for i, account := range accounts {
		wg.Add(1)
		go func(i int, account models.Account) {
			defer wg.Done()
			schedules[i], errs[i] = s.builder.Build(ctx, class, tokens[account], startDate, endDate)
		}(i, account)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	merged := MergeSchedules(*schedules[0], *schedules[1])
	return &merged, nil
}

// notifyLessonUpdates diffs today's lessons against the cache and fans out
// notification jobs to subscribers. Enqueue failures are logged but never
// abort the tick.
func (s *SyncService) notifyLessonUpdates(ctx context.Context, class models.Class, schedule *models.Schedule, now time.Time) error {
	settings, err := s.settings.Find(ctx)
	if err != nil {
		return err
	}
	if settings == nil {
		if settings, err = s.settings.Create(ctx); err != nil {
			return err
		}
	}

	if !settings.IsDistanceEducation || settings.IsTechnicalWorks {
		return nil
	}

	today := now.Format("2006-01-02")
	var newToday []models.ScheduleLesson
	found := false
	for _, date := range schedule.Dates {
		if date.Date == today {
			newToday = date.Lessons
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	oldToday, err := s.store.Lessons(ctx, class, today)
	if err != nil {
		return err
	}

	updates := CompareLessons(oldToday, newToday, s.now())
	if len(updates) == 0 {
		return nil
	}

	users, err := s.users.FindNotifyingLessonUpdates(ctx, class)
	if err != nil {
		return err
	}

	for _, user := range users {
		if err := s.notifier.EnqueueLessonUpdates(user.ID, updates); err != nil {
			s.logger.Warn("enqueue lesson updates",
				zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	s.logger.Info("lesson updates dispatched",
		zap.String("class", string(class)),
		zap.Int("updates", len(updates)),
		zap.Int("subscribers", len(users)),
	)
	return nil
}

// weekBounds returns the Monday and Sunday of t's week, formatted as
// ISO dates in t's location.
func weekBounds(t time.Time) (string, string) {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	sunday := monday.AddDate(0, 0, 6)
	return monday.Format("2006-01-02"), sunday.Format("2006-01-02")
}
