package models

// Class identifies one of the two tracked student cohorts. The raw value is
// used as the cache key prefix and must stay stable.
type Class string

const (
	Class11A Class = "11a"
	Class11B Class = "11b"
)

// Valid reports whether the class is one of the tracked cohorts.
func (c Class) Valid() bool {
	return c == Class11A || c == Class11B
}

// DBValue returns the enum value stored in Postgres.
func (c Class) DBValue() string {
	if c == Class11A {
		return "CLASS_11A"
	}
	return "CLASS_11B"
}

// ClassFromDBValue maps the Postgres enum back to a Class.
func ClassFromDBValue(v string) Class {
	if v == "CLASS_11A" {
		return Class11A
	}
	return Class11B
}

// Account identifies one of the two portal login identities polled per class.
type Account string

const (
	AccountBoy  Account = "boy"
	AccountGirl Account = "girl"
)

// ScheduleSubject is one subject taught within a lesson slot. MeetingURL is
// either nil or a conference redirect URL, never a raw portal meeting link.
type ScheduleSubject struct {
	Name        string  `json:"name"`
	TeacherName string  `json:"teacherName"`
	MeetingURL  *string `json:"meetingUrl"`
}

// ScheduleLesson is a 1-based lesson slot. Start and end times are
// wall-clock HH:mm values normalised to UTC.
type ScheduleLesson struct {
	Number    int               `json:"number"`
	StartTime string            `json:"startTime"`
	EndTime   string            `json:"endTime"`
	Subjects  []ScheduleSubject `json:"subjects"`
}

// ScheduleDate groups lessons under one ISO calendar date (YYYY-MM-DD).
type ScheduleDate struct {
	Date    string           `json:"date"`
	Lessons []ScheduleLesson `json:"lessons"`
}

// Schedule is the canonical weekly schedule, ordered by date.
type Schedule struct {
	Dates []ScheduleDate `json:"dates"`
}

// LessonUpdateType enumerates lesson-level diff events.
type LessonUpdateType string

const (
	AddedLesson       LessonUpdateType = "addedLesson"
	RemovedLesson     LessonUpdateType = "removedLesson"
	AddedSubject      LessonUpdateType = "addedSubject"
	RemovedSubject    LessonUpdateType = "removedSubject"
	AddedMeetingURL   LessonUpdateType = "addedMeetingUrl"
	UpdatedMeetingURL LessonUpdateType = "updatedMeetingUrl"
	RemovedMeetingURL LessonUpdateType = "removedMeetingUrl"
)

// LessonUpdate is one diff event. It is created during a diff run, consumed
// by the notification dispatcher and never persisted.
type LessonUpdate struct {
	Type     LessonUpdateType  `json:"type"`
	Number   int               `json:"number"`
	Subjects []ScheduleSubject `json:"subjects"`
}
