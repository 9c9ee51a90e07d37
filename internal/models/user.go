package models

import "time"

// User is a Telegram user known to the bot. The primary key is the Telegram
// chat id.
type User struct {
	ID                       int64     `db:"id" json:"id"`
	Class                    *string   `db:"class" json:"class,omitempty"`
	IsNotifyingLessonUpdates bool      `db:"is_notifying_lesson_updates" json:"is_notifying_lesson_updates"`
	IsGettingDailySchedule   bool      `db:"is_getting_daily_schedule" json:"is_getting_daily_schedule"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

// ClassValue returns the user's class, or an empty Class when unset.
func (u *User) ClassValue() Class {
	if u.Class == nil {
		return ""
	}
	return ClassFromDBValue(*u.Class)
}
