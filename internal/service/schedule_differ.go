package service

import (
	"time"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

// CompareLessons diffs a class's previously cached today lessons against the
// freshly computed ones and returns lesson-level change events. Every
// emission is independently guarded by the lesson-not-yet-finished cutoff:
// a lesson whose end time has already passed relative to now never produces
// an event. Removed-side events use the old lesson's end time.
func CompareLessons(oldLessons, newLessons []models.ScheduleLesson, now time.Time) []models.LessonUpdate {
	updates := make([]models.LessonUpdate, 0)

	for _, newLesson := range newLessons {
		oldLesson := findLessonByNumber(oldLessons, newLesson.Number)
		if oldLesson == nil {
			if lessonEndsAfter(newLesson, now) {
				updates = append(updates, models.LessonUpdate{
					Type:     models.AddedLesson,
					Number:   newLesson.Number,
					Subjects: newLesson.Subjects,
				})
			}
			continue
		}

		for _, newSubject := range newLesson.Subjects {
			oldSubject := findSubject(oldLesson.Subjects, newSubject)
			if oldSubject == nil {
				if lessonEndsAfter(newLesson, now) {
					updates = append(updates, models.LessonUpdate{
						Type:     models.AddedSubject,
						Number:   newLesson.Number,
						Subjects: []models.ScheduleSubject{newSubject},
					})
				}
				continue
			}

			eventType, changed := meetingURLChange(oldSubject.MeetingURL, newSubject.MeetingURL)
			if changed && lessonEndsAfter(newLesson, now) {
				updates = append(updates, models.LessonUpdate{
					Type:     eventType,
					Number:   newLesson.Number,
					Subjects: []models.ScheduleSubject{newSubject},
				})
			}
		}
	}

	for _, oldLesson := range oldLessons {
		newLesson := findLessonByNumber(newLessons, oldLesson.Number)
		if newLesson == nil {
			if lessonEndsAfter(oldLesson, now) {
				updates = append(updates, models.LessonUpdate{
					Type:     models.RemovedLesson,
					Number:   oldLesson.Number,
					Subjects: oldLesson.Subjects,
				})
			}
			continue
		}

		for _, oldSubject := range oldLesson.Subjects {
			if findSubject(newLesson.Subjects, oldSubject) == nil {
				if lessonEndsAfter(oldLesson, now) {
					updates = append(updates, models.LessonUpdate{
						Type:     models.RemovedSubject,
						Number:   oldLesson.Number,
						Subjects: []models.ScheduleSubject{oldSubject},
					})
				}
			}
		}
	}

	return updates
}

// meetingURLChange classifies a meeting URL transition. The second return is
// false when nothing changed (both nil, or equal values).
func meetingURLChange(oldURL, newURL *string) (models.LessonUpdateType, bool) {
	switch {
	case oldURL == nil && newURL != nil:
		return models.AddedMeetingURL, true
	case oldURL != nil && newURL == nil:
		return models.RemovedMeetingURL, true
	case oldURL != nil && newURL != nil && *oldURL != *newURL:
		return models.UpdatedMeetingURL, true
	default:
		return "", false
	}
}

func findLessonByNumber(lessons []models.ScheduleLesson, number int) *models.ScheduleLesson {
	for i := range lessons {
		if lessons[i].Number == number {
			return &lessons[i]
		}
	}
	return nil
}

func findSubject(subjects []models.ScheduleSubject, target models.ScheduleSubject) *models.ScheduleSubject {
	for i := range subjects {
		if subjects[i].Name == target.Name && subjects[i].TeacherName == target.TeacherName {
			return &subjects[i]
		}
	}
	return nil
}

// lessonEndsAfter reports whether the lesson's end time, taken on the
// current UTC date, is still in the future. End times are stored as UTC
// HH:mm, so the comparison happens entirely in UTC.
func lessonEndsAfter(lesson models.ScheduleLesson, now time.Time) bool {
	clock, err := time.Parse("15:04", lesson.EndTime)
	if err != nil {
		return false
	}
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	return now.Before(end)
}
