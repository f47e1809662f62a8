package models

import (
	"time"
)

// Registration enrolls one scout in one event. It is hard-deleted so the
// (scout, event) pair can enroll again afterwards.
type Registration struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ScoutID   uint      `json:"scout_id" gorm:"uniqueIndex:idx_scout_event;not null"`
	EventID   uint      `json:"event_id" gorm:"uniqueIndex:idx_scout_event;not null"`
	Scout     Scout     `json:"-"`
	Event     Event     `json:"-"`
	Notes     string    `json:"notes"`
}

type Preference struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	RegistrationID uint      `json:"registration_id" gorm:"uniqueIndex:idx_preference_registration_offering;not null"`
	OfferingID     uint      `json:"offering_id" gorm:"uniqueIndex:idx_preference_registration_offering;not null"`
	Offering       Offering  `json:"-"`
	Rank           int       `json:"rank"`
}
