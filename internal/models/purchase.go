package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Purchasable struct {
	gorm.Model
	EventID     uint            `json:"event_id" gorm:"index;not null"`
	Item        string          `json:"item"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null;default:0"`
	MinimumAge  *int            `json:"minimum_age,omitempty"`
	MaximumAge  *int            `json:"maximum_age,omitempty"`
	HasSize     bool            `json:"has_size"`
}

type Purchase struct {
	ID             uint        `json:"id" gorm:"primarykey"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	RegistrationID uint        `json:"registration_id" gorm:"uniqueIndex:idx_purchase_registration_purchasable;not null"`
	PurchasableID  uint        `json:"purchasable_id" gorm:"uniqueIndex:idx_purchase_registration_purchasable;not null;index"`
	Purchasable    Purchasable `json:"-"`
	Quantity       int         `json:"quantity"`
	Size           *string     `json:"size,omitempty"`
}
