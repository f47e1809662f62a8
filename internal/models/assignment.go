package models

import (
	"time"
)

type Assignment struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	RegistrationID uint      `json:"registration_id" gorm:"uniqueIndex:idx_assignment_registration_offering;not null"`
	OfferingID     uint      `json:"offering_id" gorm:"uniqueIndex:idx_assignment_registration_offering;not null;index"`
	Offering       Offering  `json:"-"`
	Periods        []int     `json:"periods" gorm:"serializer:json"`
	Completions    []string  `json:"completions" gorm:"serializer:json"`
}

// Assignment history actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionReplaced = "replaced"
)

// AssignmentHistory is an append-only snapshot written alongside every
// assignment mutation.
type AssignmentHistory struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	CreatedAt      time.Time `json:"created_at"`
	RegistrationID uint      `json:"registration_id" gorm:"index"`
	OfferingID     uint      `json:"offering_id"`
	Action         string    `json:"action"`
	Periods        []int     `json:"periods" gorm:"serializer:json"`
	Completions    []string  `json:"completions" gorm:"serializer:json"`
}
