package models

import "time"

// Settings is the singleton row of global bot toggles. The sync pipeline
// reads one snapshot per tick.
type Settings struct {
	ID                  string    `db:"id" json:"id"`
	IsDistanceEducation bool      `db:"is_distance_education" json:"is_distance_education"`
	IsTechnicalWorks    bool      `db:"is_technical_works" json:"is_technical_works"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
