package models

import (
	"slices"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultSizeLimit is the seat limit of an offering created without one.
const DefaultSizeLimit = 20

type Offering struct {
	gorm.Model
	EventID      uint            `json:"event_id" gorm:"uniqueIndex:idx_event_badge;not null"`
	BadgeID      uint            `json:"badge_id" gorm:"uniqueIndex:idx_event_badge;not null"`
	Badge        Badge           `json:"-"`
	Duration     int             `json:"duration"`
	Periods      []int           `json:"periods" gorm:"serializer:json"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null;default:0"`
	Requirements []string        `json:"requirements" gorm:"serializer:json"`
	SizeLimit    int             `json:"size_limit" gorm:"not null;default:20"`
}

// HasPeriod reports whether p is one of the offering's valid periods.
func (o Offering) HasPeriod(p int) bool {
	return slices.Contains(o.Periods, p)
}

// OfferingSeat counts the assignments occupying one period of an offering.
// Rows are created lazily and only move through conditional updates.
type OfferingSeat struct {
	OfferingID uint `json:"offering_id" gorm:"primaryKey;autoIncrement:false"`
	Period     int  `json:"period" gorm:"primaryKey;autoIncrement:false"`
	Occupied   int  `json:"occupied" gorm:"not null"`
}
