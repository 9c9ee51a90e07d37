package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/internal/portal"
	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

type stubScheduleStore struct {
	mu sync.Mutex

	lessons   map[string][]models.ScheduleLesson
	tokens    map[string]string
	updatedAt *time.Time

	putSchedules  []models.Schedule
	putClasses    []models.Class
	setTokenCalls int
	tokenTTL      time.Duration
	deletedTokens int
}

func newStubScheduleStore() *stubScheduleStore {
	return &stubScheduleStore{
		lessons: make(map[string][]models.ScheduleLesson),
		tokens:  make(map[string]string),
	}
}

func storeKey(class models.Class, suffix string) string {
	return string(class) + "|" + suffix
}

func (s *stubScheduleStore) Lessons(ctx context.Context, class models.Class, date string) ([]models.ScheduleLesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lessons[storeKey(class, date)], nil
}

func (s *stubScheduleStore) PutSchedule(ctx context.Context, class models.Class, schedule models.Schedule, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putSchedules = append(s.putSchedules, schedule)
	s.putClasses = append(s.putClasses, class)
	return nil
}

func (s *stubScheduleStore) UpdatedAt(ctx context.Context, class models.Class) (*time.Time, error) {
	return s.updatedAt, nil
}

func (s *stubScheduleStore) AccessToken(ctx context.Context, class models.Class, account models.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[storeKey(class, string(account))], nil
}

func (s *stubScheduleStore) SetAccessToken(ctx context.Context, class models.Class, account models.Account, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[storeKey(class, string(account))] = token
	s.setTokenCalls++
	s.tokenTTL = ttl
	return nil
}

func (s *stubScheduleStore) DeleteAccessTokens(ctx context.Context, class models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, storeKey(class, string(models.AccountBoy)))
	delete(s.tokens, storeKey(class, string(models.AccountGirl)))
	s.deletedTokens++
	return nil
}

type stubSource struct {
	mu sync.Mutex

	schedule     models.Schedule
	failuresLeft int

	tokens []string
	starts []string
}

func (s *stubSource) Build(ctx context.Context, class models.Class, accessToken, startDate, endDate string) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, accessToken)
	s.starts = append(s.starts, startDate)
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return nil, appErrors.ErrPortalAuth
	}
	copied := s.schedule
	return &copied, nil
}

type stubSettings struct {
	settings *models.Settings
	created  int
}

func (s *stubSettings) Find(ctx context.Context) (*models.Settings, error) {
	return s.settings, nil
}

func (s *stubSettings) Create(ctx context.Context) (*models.Settings, error) {
	s.created++
	s.settings = &models.Settings{ID: "stub"}
	return s.settings, nil
}

type stubUsers struct {
	users []models.User
}

func (s *stubUsers) FindNotifyingLessonUpdates(ctx context.Context, class models.Class) ([]models.User, error) {
	return s.users, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	enqueued map[int64][]models.LessonUpdate
}

func (s *stubNotifier) EnqueueLessonUpdates(userID int64, updates []models.LessonUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueued == nil {
		s.enqueued = make(map[int64][]models.LessonUpdate)
	}
	s.enqueued[userID] = updates
	return nil
}

type syncFixture struct {
	sync     *SyncService
	store    *stubScheduleStore
	source   *stubSource
	portal   *stubPortal
	settings *stubSettings
	users    *stubUsers
	notifier *stubNotifier
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	store := newStubScheduleStore()
	source := &stubSource{schedule: models.Schedule{Dates: []models.ScheduleDate{{
		Date: "2026-01-12",
		Lessons: []models.ScheduleLesson{
			lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
		},
	}}}}
	portalStub := &stubPortal{loginResp: &portal.LoginResponse{AccessToken: "fresh-token"}}
	settings := &stubSettings{settings: &models.Settings{ID: "s1", IsDistanceEducation: true}}
	users := &stubUsers{}
	notifier := &stubNotifier{}

	schedules := NewScheduleService(store, nil, 7*24*time.Hour, 10*time.Minute, nil)
	credentials := map[models.Class]ClassCredentials{
		models.Class11A: {
			models.AccountBoy:  {Username: "boy-a", Password: "pw"},
			models.AccountGirl: {Username: "girl-a", Password: "pw"},
		},
	}

	service := NewSyncService(
		source, portalStub, schedules, store, settings, users, notifier, nil,
		credentials, 12*time.Hour, kyiv(t), nil,
	)
	// Monday, 07:00 in Kyiv, before the fixture lesson ends.
	service.now = func() time.Time {
		return time.Date(2026, time.January, 12, 5, 0, 0, 0, time.UTC)
	}

	return &syncFixture{
		sync:     service,
		store:    store,
		source:   source,
		portal:   portalStub,
		settings: settings,
		users:    users,
		notifier: notifier,
	}
}

func TestSyncClassUsesCachedTokens(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "cached-girl"

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Zero(t, f.portal.logins)
	assert.ElementsMatch(t, []string{"cached-boy", "cached-girl"}, f.source.tokens)
	require.Len(t, f.store.putSchedules, 1)
	assert.Equal(t, models.Class11A, f.store.putClasses[0])
}

func TestSyncClassLogsInWhenTokenMissing(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Equal(t, 2, f.portal.logins, "both accounts re-authenticate together")
	assert.Equal(t, 2, f.store.setTokenCalls)
	assert.Equal(t, 12*time.Hour, f.store.tokenTTL)
	assert.ElementsMatch(t, []string{"fresh-token", "fresh-token"}, f.source.tokens)
}

func TestSyncClassRetriesOnceOnRejectedToken(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "stale-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "stale-girl"
	f.source.failuresLeft = 2

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Equal(t, 1, f.store.deletedTokens)
	assert.Equal(t, 2, f.portal.logins)
	require.Len(t, f.store.putSchedules, 1)
}

func TestSyncClassFailsWhenFreshTokensAreRejected(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "stale-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "stale-girl"
	f.source.failuresLeft = 4

	err := f.sync.SyncClass(context.Background(), models.Class11A)

	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPortalAuth)
	assert.Equal(t, 1, f.store.deletedTokens, "exactly one re-login attempt per tick")
	assert.Empty(t, f.store.putSchedules)
}

func TestSyncClassNotifiesSubscribersOfTodayChanges(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "cached-girl"
	f.users.users = []models.User{{ID: 101}, {ID: 102}}
	// Cache holds an empty today, so the fresh lesson is an addition.
	f.store.lessons[storeKey(models.Class11A, "2026-01-12")] = []models.ScheduleLesson{}

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	require.Len(t, f.notifier.enqueued, 2)
	for _, userID := range []int64{101, 102} {
		updates := f.notifier.enqueued[userID]
		require.Len(t, updates, 1)
		assert.Equal(t, models.AddedLesson, updates[0].Type)
	}
}

func TestSyncClassSkipsNotificationsOutsideDistanceEducation(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "cached-girl"
	f.users.users = []models.User{{ID: 101}}
	f.settings.settings = &models.Settings{ID: "s1", IsDistanceEducation: false}

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Empty(t, f.notifier.enqueued)
	assert.Len(t, f.store.putSchedules, 1, "cache still refreshes")
}

func TestSyncClassSkipsNotificationsDuringTechnicalWorks(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "cached-girl"
	f.users.users = []models.User{{ID: 101}}
	f.settings.settings = &models.Settings{ID: "s1", IsDistanceEducation: true, IsTechnicalWorks: true}

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Empty(t, f.notifier.enqueued)
}

func TestSyncClassCreatesSettingsWhenAbsent(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "cached-girl"
	f.settings.settings = nil

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Equal(t, 1, f.settings.created)
	assert.Empty(t, f.notifier.enqueued, "fresh settings default to notifications off")
}

func TestSyncClassPrefetchesNextWeekOnSunday(t *testing.T) {
	f := newSyncFixture(t)
	f.store.tokens[storeKey(models.Class11A, "boy")] = "cached-boy"
	f.store.tokens[storeKey(models.Class11A, "girl")] = "cached-girl"
	// Sunday, 10:00 in Kyiv.
	f.sync.now = func() time.Time {
		return time.Date(2026, time.January, 18, 8, 0, 0, 0, time.UTC)
	}

	require.NoError(t, f.sync.SyncClass(context.Background(), models.Class11A))

	assert.Len(t, f.store.putSchedules, 2, "current and next week both cached")
	assert.Contains(t, f.source.starts, "2026-01-12", "current week starts on its Monday")
	assert.Contains(t, f.source.starts, "2026-01-19", "next week starts on the following Monday")
}

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		day       string
		wantStart string
		wantEnd   string
	}{
		{"2026-01-12", "2026-01-12", "2026-01-18"}, // Monday
		{"2026-01-15", "2026-01-12", "2026-01-18"}, // Thursday
		{"2026-01-18", "2026-01-12", "2026-01-18"}, // Sunday
	}
	for _, tc := range tests {
		start, end := weekBounds(mustDate(t, tc.day))
		assert.Equal(t, tc.wantStart, start, tc.day)
		assert.Equal(t, tc.wantEnd, end, tc.day)
	}
}
