package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email string `json:"email" gorm:"uniqueIndex"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type Scout struct {
	gorm.Model
	UserID    uint      `json:"user_id" gorm:"index"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate time.Time `json:"birth_date"`
}

// AgeOn returns the scout's age in whole years on the given day.
func (s Scout) AgeOn(day time.Time) int {
	age := day.Year() - s.BirthDate.Year()
	if day.Month() < s.BirthDate.Month() ||
		(day.Month() == s.BirthDate.Month() && day.Day() < s.BirthDate.Day()) {
		age--
	}
	return age
}
