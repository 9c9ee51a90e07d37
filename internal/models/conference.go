package models

import "time"

// Conference maps a raw portal meeting URL, scoped to class and schedule
// date, to a short stable redirect id. Rows are created lazily and never
// mutated.
type Conference struct {
	ID                    string    `db:"id" json:"id"`
	OriginalConferenceURL string    `db:"original_conference_url" json:"original_conference_url"`
	ScheduleClass         string    `db:"schedule_class" json:"schedule_class"`
	ScheduleDate          time.Time `db:"schedule_date" json:"schedule_date"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// ConferenceVisit records one redirect through a conference link, keyed by
// the visitor's device type for analytics.
type ConferenceVisit struct {
	ID           string    `db:"id" json:"id"`
	ConferenceID string    `db:"conference_id" json:"conference_id"`
	DeviceType   string    `db:"device_type" json:"device_type"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
