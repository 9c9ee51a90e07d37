package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/classbot/nz-schedule-bot/internal/models"
)

// FormatLessonUpdates renders a user's whole batch of diff events as one
// Telegram HTML message, one paragraph per event. Delivering the batch as a
// single message keeps the per-message rate limit equal to the per-job one.
func FormatLessonUpdates(updates []models.LessonUpdate) string {
	parts := make([]string, 0, len(updates))
	for _, update := range updates {
		if text := FormatLessonUpdate(update); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// FormatLessonUpdate renders one diff event as a Telegram HTML message.
func FormatLessonUpdate(update models.LessonUpdate) string {
	switch update.Type {
	case models.AddedLesson:
		return fmt.Sprintf("📚 Додано %d-й урок (%s).", update.Number, subjectNames(update.Subjects))
	case models.RemovedLesson:
		return fmt.Sprintf("🗑️ Видалено %d-й урок (%s).", update.Number, subjectNames(update.Subjects))
	case models.AddedSubject:
		return fmt.Sprintf("➕ Додано предмет (%s) %d-го уроку викладачем %s",
			subjectNames(update.Subjects), update.Number, teacherNames(update.Subjects))
	case models.RemovedSubject:
		return fmt.Sprintf("➖ Видалено предмет (%s) %d-го уроку викладачем %s",
			subjectNames(update.Subjects), update.Number, teacherNames(update.Subjects))
	case models.AddedMeetingURL:
		return fmt.Sprintf("🔗 Додано посилання на конференцію предмета (%s) %d-го уроку викладачем %s",
			subjectNames(update.Subjects), update.Number, teacherNames(update.Subjects))
	case models.UpdatedMeetingURL:
		return fmt.Sprintf("🔄 Оновлено посилання на конференцію предмета (%s) %d-го уроку викладачем %s",
			subjectNames(update.Subjects), update.Number, teacherNames(update.Subjects))
	case models.RemovedMeetingURL:
		return fmt.Sprintf("❌ Видалено посилання на конференцію предмета (%s) %d-го уроку викладачем %s",
			subjectNames(update.Subjects), update.Number, teacherNames(update.Subjects))
	default:
		return ""
	}
}

// FormatDailySchedule renders the morning schedule message. Lesson times are
// stored as UTC wall-clock values and are converted back to the class's local
// timezone for display. When stale is true a warning trailer is appended.
func FormatDailySchedule(lessons []models.ScheduleLesson, day time.Time, location *time.Location, stale bool) string {
	var b strings.Builder
	b.WriteString("📅 Розклад уроків на сьогодні:\n")

	if len(lessons) == 0 {
		b.WriteString("\nУроків немає. Гарного відпочинку! 🎉")
	}

	for _, lesson := range lessons {
		b.WriteString(fmt.Sprintf("\n<b>%d.</b> %s – %s: %s",
			lesson.Number,
			localClock(lesson.StartTime, day, location),
			localClock(lesson.EndTime, day, location),
			subjectLines(lesson.Subjects),
		))
	}

	if stale {
		b.WriteString("\n\n⚠️ Розклад давно не оновлювався і може бути неактуальним")
	}

	return b.String()
}

// subjectNames joins parallel subjects with a slash, lowercased the way the
// names read mid-sentence.
func subjectNames(subjects []models.ScheduleSubject) string {
	names := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		names = append(names, html.EscapeString(strings.ToLower(subject.Name)))
	}
	return strings.Join(names, "/")
}

// subjectLines renders a lesson's subjects, linking each one that carries a
// conference URL.
func subjectLines(subjects []models.ScheduleSubject) string {
	parts := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		name := html.EscapeString(strings.ToLower(subject.Name))
		if subject.MeetingURL != nil {
			parts = append(parts, fmt.Sprintf("<a href=\"%s\">%s</a>", *subject.MeetingURL, name))
			continue
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "/")
}

// teacherNames joins the subjects' teachers with a slash, keeping the
// original casing.
func teacherNames(subjects []models.ScheduleSubject) string {
	names := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		names = append(names, html.EscapeString(subject.TeacherName))
	}
	return strings.Join(names, "/")
}

// localClock converts a UTC HH:mm value to the display timezone, anchored on
// the given day.
func localClock(raw string, day time.Time, location *time.Location) string {
	clock, err := time.Parse("15:04", raw)
	if err != nil {
		return raw
	}
	utc := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	return utc.In(location).Format("15:04")
}
