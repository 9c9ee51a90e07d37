package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

// Fixed reference instant: 05:00 UTC, well before a school day's lessons end.
var diffNow = time.Date(2026, time.January, 12, 5, 0, 0, 0, time.UTC)

func TestCompareLessonsAddedLesson(t *testing.T) {
	oldLessons := []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
	}
	newLessons := []models.ScheduleLesson{
		oldLessons[0],
		lesson(2, "07:25", "08:10", models.ScheduleSubject{Name: "Хімія", TeacherName: "Коваль К. К."}),
	}

	updates := CompareLessons(oldLessons, newLessons, diffNow)

	require.Len(t, updates, 1)
	assert.Equal(t, models.AddedLesson, updates[0].Type)
	assert.Equal(t, 2, updates[0].Number)
	assert.Equal(t, newLessons[1].Subjects, updates[0].Subjects)
}

func TestCompareLessonsRemovedLesson(t *testing.T) {
	oldLessons := []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
		lesson(2, "07:25", "08:10", models.ScheduleSubject{Name: "Хімія", TeacherName: "Коваль К. К."}),
	}
	newLessons := oldLessons[:1]

	updates := CompareLessons(oldLessons, newLessons, diffNow)

	require.Len(t, updates, 1)
	assert.Equal(t, models.RemovedLesson, updates[0].Type)
	assert.Equal(t, 2, updates[0].Number)
}

func TestCompareLessonsMeetingURLTransitions(t *testing.T) {
	base := func(url *string) []models.ScheduleLesson {
		return []models.ScheduleLesson{
			lesson(3, "08:20", "09:05", models.ScheduleSubject{
				Name: "Фізика", TeacherName: "Мороз М. М.", MeetingURL: url,
			}),
		}
	}

	tests := []struct {
		name    string
		oldURL  *string
		newURL  *string
		want    models.LessonUpdateType
		changed bool
	}{
		{"added", nil, strPtr("https://sch.example/meet/Ab3xQ"), models.AddedMeetingURL, true},
		{"updated", strPtr("https://sch.example/meet/Ab3xQ"), strPtr("https://sch.example/meet/Zz1aB"), models.UpdatedMeetingURL, true},
		{"removed", strPtr("https://sch.example/meet/Ab3xQ"), nil, models.RemovedMeetingURL, true},
		{"unchanged", strPtr("https://sch.example/meet/Ab3xQ"), strPtr("https://sch.example/meet/Ab3xQ"), "", false},
		{"both absent", nil, nil, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			updates := CompareLessons(base(tc.oldURL), base(tc.newURL), diffNow)
			if !tc.changed {
				assert.Empty(t, updates)
				return
			}
			require.Len(t, updates, 1)
			assert.Equal(t, tc.want, updates[0].Type)
			assert.Equal(t, 3, updates[0].Number)
		})
	}
}

func TestCompareLessonsSubjectChanges(t *testing.T) {
	oldLessons := []models.ScheduleLesson{
		lesson(4, "09:15", "10:00",
			models.ScheduleSubject{Name: "Англійська мова", TeacherName: "Ткаченко Т. Т."},
			models.ScheduleSubject{Name: "Німецька мова", TeacherName: "Кравець К. К."},
		),
	}
	newLessons := []models.ScheduleLesson{
		lesson(4, "09:15", "10:00",
			models.ScheduleSubject{Name: "Англійська мова", TeacherName: "Ткаченко Т. Т."},
			models.ScheduleSubject{Name: "Французька мова", TeacherName: "Олійник О. О."},
		),
	}

	updates := CompareLessons(oldLessons, newLessons, diffNow)

	require.Len(t, updates, 2)
	assert.Equal(t, models.AddedSubject, updates[0].Type)
	assert.Equal(t, "Французька мова", updates[0].Subjects[0].Name)
	assert.Equal(t, models.RemovedSubject, updates[1].Type)
	assert.Equal(t, "Німецька мова", updates[1].Subjects[0].Name)
}

// Swapping the inputs must mirror every event into its opposite.
func TestCompareLessonsAntiSymmetry(t *testing.T) {
	oldLessons := []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
		lesson(2, "07:25", "08:10", models.ScheduleSubject{
			Name: "Хімія", TeacherName: "Коваль К. К.", MeetingURL: strPtr("https://sch.example/meet/Ab3xQ"),
		}),
	}
	newLessons := []models.ScheduleLesson{
		lesson(2, "07:25", "08:10", models.ScheduleSubject{Name: "Хімія", TeacherName: "Коваль К. К."}),
		lesson(3, "08:20", "09:05", models.ScheduleSubject{Name: "Історія", TeacherName: "Шевчук Ш. Ш."}),
	}

	forward := CompareLessons(oldLessons, newLessons, diffNow)
	backward := CompareLessons(newLessons, oldLessons, diffNow)

	mirror := map[models.LessonUpdateType]models.LessonUpdateType{
		models.AddedLesson:       models.RemovedLesson,
		models.RemovedLesson:     models.AddedLesson,
		models.AddedSubject:      models.RemovedSubject,
		models.RemovedSubject:    models.AddedSubject,
		models.AddedMeetingURL:   models.RemovedMeetingURL,
		models.RemovedMeetingURL: models.AddedMeetingURL,
		models.UpdatedMeetingURL: models.UpdatedMeetingURL,
	}

	require.Len(t, backward, len(forward))
	mirrored := make(map[models.LessonUpdateType]int)
	for _, update := range forward {
		mirrored[mirror[update.Type]]++
	}
	actual := make(map[models.LessonUpdateType]int)
	for _, update := range backward {
		actual[update.Type]++
	}
	assert.Equal(t, mirrored, actual)
}

func TestCompareLessonsSkipsFinishedLessons(t *testing.T) {
	late := time.Date(2026, time.January, 12, 18, 0, 0, 0, time.UTC)

	oldLessons := []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
	}
	newLessons := []models.ScheduleLesson{
		lesson(2, "07:25", "08:10", models.ScheduleSubject{Name: "Хімія", TeacherName: "Коваль К. К."}),
	}

	assert.Empty(t, CompareLessons(oldLessons, newLessons, late))
}

// Each event's cutoff is evaluated against its own lesson: here one lesson
// already ended while the other has not.
func TestCompareLessonsCutoffIsPerLesson(t *testing.T) {
	midMorning := time.Date(2026, time.January, 12, 8, 0, 0, 0, time.UTC)

	newLessons := []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{Name: "Алгебра", TeacherName: "Петренко П. П."}),
		lesson(5, "10:10", "10:55", models.ScheduleSubject{Name: "Біологія", TeacherName: "Іваненко І. І."}),
	}

	updates := CompareLessons(nil, newLessons, midMorning)

	require.Len(t, updates, 1)
	assert.Equal(t, models.AddedLesson, updates[0].Type)
	assert.Equal(t, 5, updates[0].Number)
}

func TestCompareLessonsNoChanges(t *testing.T) {
	lessons := []models.ScheduleLesson{
		lesson(1, "06:30", "07:15", models.ScheduleSubject{
			Name: "Алгебра", TeacherName: "Петренко П. П.", MeetingURL: strPtr("https://sch.example/meet/Ab3xQ"),
		}),
	}

	assert.Empty(t, CompareLessons(lessons, lessons, diffNow))
}
