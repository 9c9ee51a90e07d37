package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

func TestGetScheduleReturnsCachedLessons(t *testing.T) {
	store := newStubScheduleStore()
	store.lessons[storeKey(models.Class11B, "2026-01-13")] = []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Хімія", TeacherName: "Коваль К. К."}),
	}
	service := NewScheduleService(store, nil, 7*24*time.Hour, 10*time.Minute, nil)

	lessons, err := service.GetSchedule(context.Background(), models.Class11B, "2026-01-13")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Хімія", lessons[0].Subjects[0].Name)
}

func TestGetScheduleMissIsEmpty(t *testing.T) {
	service := NewScheduleService(newStubScheduleStore(), nil, 7*24*time.Hour, 10*time.Minute, nil)

	lessons, err := service.GetSchedule(context.Background(), models.Class11B, "2026-01-13")
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2026, time.January, 13, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		updatedAt *time.Time
		want      bool
	}{
		{"never written", nil, false},
		{"fresh", timePtr(now.Add(-3 * time.Minute)), false},
		{"at threshold", timePtr(now.Add(-10 * time.Minute)), true},
		{"long overdue", timePtr(now.Add(-2 * time.Hour)), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubScheduleStore()
			store.updatedAt = tc.updatedAt
			service := NewScheduleService(store, nil, 7*24*time.Hour, 10*time.Minute, nil)

			stale, err := service.IsStale(context.Background(), models.Class11A, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stale)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
