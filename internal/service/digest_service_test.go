package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

type stubDigestUsers struct {
	users []models.User
}

func (s *stubDigestUsers) FindGettingDailySchedule(ctx context.Context) ([]models.User, error) {
	return s.users, nil
}

type stubDailyNotifier struct {
	texts map[int64]string
}

func (s *stubDailyNotifier) EnqueueDailySchedule(userID int64, text string) error {
	if s.texts == nil {
		s.texts = make(map[int64]string)
	}
	s.texts[userID] = text
	return nil
}

func classPtr(c models.Class) *string {
	s := string(c)
	return &s
}

func TestSendDailySchedulesGroupsByClass(t *testing.T) {
	store := newStubScheduleStore()
	store.lessons[storeKey(models.Class11A, "2026-01-12")] = []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
	}
	store.lessons[storeKey(models.Class11B, "2026-01-12")] = []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Хімія", TeacherName: "Коваль К. К."}),
	}
	updatedAt := time.Date(2026, time.January, 12, 4, 58, 0, 0, time.UTC)
	store.updatedAt = &updatedAt

	users := &stubDigestUsers{users: []models.User{
		{ID: 101, Class: classPtr(models.Class11A)},
		{ID: 102, Class: classPtr(models.Class11B)},
		{ID: 103},
	}}
	notifier := &stubDailyNotifier{}

	schedules := NewScheduleService(store, nil, 7*24*time.Hour, 10*time.Minute, nil)
	digest := NewDigestService(schedules, users, notifier, kyiv(t), nil)
	digest.now = func() time.Time {
		return time.Date(2026, time.January, 12, 5, 0, 0, 0, time.UTC)
	}

	require.NoError(t, digest.SendDailySchedules(context.Background()))

	require.Len(t, notifier.texts, 2, "user without a class gets nothing")
	assert.Contains(t, notifier.texts[101], "алгебра")
	assert.Contains(t, notifier.texts[102], "хімія")
	assert.NotContains(t, notifier.texts[101], "⚠️")
}

func TestSendDailySchedulesStaleWarning(t *testing.T) {
	store := newStubScheduleStore()
	updatedAt := time.Date(2026, time.January, 12, 3, 0, 0, 0, time.UTC)
	store.updatedAt = &updatedAt

	users := &stubDigestUsers{users: []models.User{{ID: 101, Class: classPtr(models.Class11A)}}}
	notifier := &stubDailyNotifier{}

	schedules := NewScheduleService(store, nil, 7*24*time.Hour, 10*time.Minute, nil)
	digest := NewDigestService(schedules, users, notifier, kyiv(t), nil)
	digest.now = func() time.Time {
		return time.Date(2026, time.January, 12, 5, 0, 0, 0, time.UTC)
	}

	require.NoError(t, digest.SendDailySchedules(context.Background()))

	assert.Contains(t, notifier.texts[101], "⚠️")
}

func TestSendDailySchedulesNoSubscribers(t *testing.T) {
	schedules := NewScheduleService(newStubScheduleStore(), nil, 7*24*time.Hour, 10*time.Minute, nil)
	digest := NewDigestService(schedules, &stubDigestUsers{}, &stubDailyNotifier{}, time.UTC, nil)

	require.NoError(t, digest.SendDailySchedules(context.Background()))
}
