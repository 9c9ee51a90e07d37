package service

import (
	"github.com/classbot/nz-schedule-bot/internal/models"
)

// Subjects from parallel accounts merge by normalized subject name. Teacher
// names are sometimes missing from one account's payload, so they cannot
// key the merge.
func subjectMergeKey(subject models.ScheduleSubject) string {
	return NormalizeSubjectName(subject.Name)
}

// MergeSchedules reconciles any number of per-account schedules for the same
// class and date range into one schedule. Dates union by date, lessons by
// number (times from the first occurrence), subjects by subjectMergeKey with
// the meeting-URL-bearing instance preferred. Iteration order of the inputs
// determines output order, so the merge is deterministic.
func MergeSchedules(schedules ...models.Schedule) models.Schedule {
	dateOrder := make([]string, 0)
	lessonsByDate := make(map[string][]models.ScheduleLesson)

	for _, schedule := range schedules {
		for _, date := range schedule.Dates {
			if _, ok := lessonsByDate[date.Date]; !ok {
				dateOrder = append(dateOrder, date.Date)
			}
			lessonsByDate[date.Date] = append(lessonsByDate[date.Date], date.Lessons...)
		}
	}

	merged := models.Schedule{Dates: make([]models.ScheduleDate, 0, len(dateOrder))}
	for _, date := range dateOrder {
		merged.Dates = append(merged.Dates, models.ScheduleDate{
			Date:    date,
			Lessons: mergeLessons(lessonsByDate[date]),
		})
	}
	return merged
}

func mergeLessons(lessons []models.ScheduleLesson) []models.ScheduleLesson {
	numberOrder := make([]int, 0)
	byNumber := make(map[int]*models.ScheduleLesson)
	subjectsByNumber := make(map[int][]models.ScheduleSubject)

	for _, lesson := range lessons {
		if _, ok := byNumber[lesson.Number]; !ok {
			numberOrder = append(numberOrder, lesson.Number)
			// Both accounts describe the same physical lesson, so the first
			// occurrence's times win.
			copied := lesson
			byNumber[lesson.Number] = &copied
		}
		subjectsByNumber[lesson.Number] = append(subjectsByNumber[lesson.Number], lesson.Subjects...)
	}

	merged := make([]models.ScheduleLesson, 0, len(numberOrder))
	for _, number := range numberOrder {
		lesson := byNumber[number]
		lesson.Subjects = dedupeSubjects(mergeSubjects(subjectsByNumber[number]))
		merged = append(merged, *lesson)
	}
	return merged
}

func mergeSubjects(subjects []models.ScheduleSubject) []models.ScheduleSubject {
	keyOrder := make([]string, 0)
	byKey := make(map[string]models.ScheduleSubject)

	for _, subject := range subjects {
		key := subjectMergeKey(subject)
		existing, ok := byKey[key]
		if !ok {
			keyOrder = append(keyOrder, key)
			byKey[key] = subject
			continue
		}
		// One rule for conflicts: an instance carrying a meeting URL wins.
		if existing.MeetingURL == nil && subject.MeetingURL != nil {
			byKey[key] = subject
		}
	}

	merged := make([]models.ScheduleSubject, 0, len(keyOrder))
	for _, key := range keyOrder {
		merged = append(merged, byKey[key])
	}
	return merged
}

func dedupeSubjects(subjects []models.ScheduleSubject) []models.ScheduleSubject {
	seen := make(map[string]bool, len(subjects))
	result := make([]models.ScheduleSubject, 0, len(subjects))
	for _, subject := range subjects {
		key := subject.Name + "\x00" + subject.TeacherName
		if subject.MeetingURL != nil {
			key += "\x00" + *subject.MeetingURL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, subject)
	}
	return result
}
