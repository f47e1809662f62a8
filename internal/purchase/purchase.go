// Package purchase manages purchasable items and the quantities a
// registration buys.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchasableInput struct {
	Item        string
	Description string
	Price       decimal.Decimal
	MinimumAge  *int
	MaximumAge  *int
	HasSize     bool
}

type Set struct {
	db *gorm.DB
}

func NewSet(db *gorm.DB) *Set {
	return &Set{db: db}
}

// ValidatePurchasable checks the item name, price and age window.
func ValidatePurchasable(in PurchasableInput) error {
	if strings.TrimSpace(in.Item) == "" {
		return apperr.Field(apperr.ErrInvalidPurchasable, "item", "is required")
	}
	if in.Price.IsNegative() || !in.Price.Equal(in.Price.Round(2)) {
		return apperr.Field(apperr.ErrInvalidPurchasable, "price", "must be a non-negative amount with at most 2 decimal places")
	}
	if in.MinimumAge != nil && *in.MinimumAge < 0 {
		return apperr.Field(apperr.ErrInvalidAgeRange, "minimum_age", "must not be negative")
	}
	if in.MinimumAge != nil && in.MaximumAge != nil && *in.MinimumAge > *in.MaximumAge {
		return apperr.Field(apperr.ErrInvalidAgeRange, "minimum_age",
			"minimum age %d is above maximum age %d", *in.MinimumAge, *in.MaximumAge)
	}
	return nil
}

func (s *Set) CreatePurchasable(ctx context.Context, eventID uint, in PurchasableInput) (*models.Purchasable, error) {
	if err := ValidatePurchasable(in); err != nil {
		return nil, err
	}
	p := models.Purchasable{
		EventID:     eventID,
		Item:        strings.TrimSpace(in.Item),
		Description: in.Description,
		Price:       in.Price.Round(2),
		MinimumAge:  in.MinimumAge,
		MaximumAge:  in.MaximumAge,
		HasSize:     in.HasSize,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if count == 0 {
			return apperr.ErrInvalidEvent
		}
		return tx.Create(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Set) UpdatePurchasable(ctx context.Context, eventID, purchasableID uint, in PurchasableInput) (*models.Purchasable, error) {
	if err := ValidatePurchasable(in); err != nil {
		return nil, err
	}
	var p models.Purchasable
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = loadPurchasable(tx, eventID, purchasableID); err != nil {
			return err
		}
		p.Item = strings.TrimSpace(in.Item)
		p.Description = in.Description
		p.Price = in.Price.Round(2)
		p.MinimumAge = in.MinimumAge
		p.MaximumAge = in.MaximumAge
		p.HasSize = in.HasSize
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePurchasable removes an item together with every purchase of it.
func (s *Set) DeletePurchasable(ctx context.Context, eventID, purchasableID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadPurchasable(tx, eventID, purchasableID)
		if err != nil {
			return err
		}
		if err := tx.Where("purchasable_id = ?", p.ID).Delete(&models.Purchase{}).Error; err != nil {
			return fmt.Errorf("delete purchases: %w", err)
		}
		if err := tx.Delete(&p).Error; err != nil {
			return fmt.Errorf("delete purchasable: %w", err)
		}
		return nil
	})
}

// ListPurchasables returns an event's items in creation order.
func (s *Set) ListPurchasables(ctx context.Context, eventID uint) ([]models.Purchasable, error) {
	items := []models.Purchasable{}
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list purchasables: %w", err)
	}
	return items, nil
}

// Create records a purchase. size is only accepted for sized items and the
// scout must fall inside the item's age window on the event's first day.
func (s *Set) Create(ctx context.Context, registrationID, purchasableID uint, quantity int, size *string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, item, err := s.check(tx, registrationID, purchasableID, quantity, size)
		if err != nil {
			return err
		}
		var dup int64
		if err := tx.Model(&models.Purchase{}).
			Where("registration_id = ? AND purchasable_id = ?", reg.ID, item.ID).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check purchase: %w", err)
		}
		if dup > 0 {
			return fmt.Errorf("%w: registration %d already purchased item %d", apperr.ErrAlreadyExists, reg.ID, item.ID)
		}
		purchase = models.Purchase{
			RegistrationID: reg.ID,
			PurchasableID:  item.ID,
			Quantity:       quantity,
			Size:           size,
		}
		return tx.Omit(clause.Associations).Create(&purchase).Error
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Set) Update(ctx context.Context, registrationID, purchasableID uint, quantity int, size *string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, _, err := s.check(tx, registrationID, purchasableID, quantity, size); err != nil {
			return err
		}
		if err := tx.Where("registration_id = ? AND purchasable_id = ?", registrationID, purchasableID).
			First(&purchase).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvalidPurchase
			}
			return fmt.Errorf("load purchase: %w", err)
		}
		purchase.Quantity = quantity
		purchase.Size = size
		return tx.Omit(clause.Associations).Save(&purchase).Error
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Set) Delete(ctx context.Context, registrationID, purchasableID uint) error {
	res := s.db.WithContext(ctx).
		Where("registration_id = ? AND purchasable_id = ?", registrationID, purchasableID).
		Delete(&models.Purchase{})
	if res.Error != nil {
		return fmt.Errorf("delete purchase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrInvalidPurchase
	}
	return nil
}

// List returns the registration's purchases with their items loaded.
func (s *Set) List(ctx context.Context, registrationID uint) ([]models.Purchase, error) {
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Registration{}).Where("id = ?", registrationID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if count == 0 {
		return nil, apperr.ErrInvalidRegistration
	}
	return ListTx(db, registrationID)
}

// ListTx is List on an open transaction, without the registration check.
func ListTx(db *gorm.DB, registrationID uint) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	if err := db.Preload("Purchasable").
		Where("registration_id = ?", registrationID).
		Order("purchasable_id asc").
		Find(&purchases).Error; err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

// DeleteAll removes every purchase of a registration inside tx.
func DeleteAll(tx *gorm.DB, registrationID uint) error {
	if err := tx.Where("registration_id = ?", registrationID).Delete(&models.Purchase{}).Error; err != nil {
		return fmt.Errorf("delete purchases: %w", err)
	}
	return nil
}

func (s *Set) check(tx *gorm.DB, registrationID, purchasableID uint, quantity int, size *string) (models.Registration, models.Purchasable, error) {
	var reg models.Registration
	if err := tx.Preload("Scout").Preload("Event").First(&reg, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reg, models.Purchasable{}, apperr.ErrInvalidRegistration
		}
		return reg, models.Purchasable{}, fmt.Errorf("load registration: %w", err)
	}
	item, err := loadPurchasable(tx, reg.EventID, purchasableID)
	if err != nil {
		return reg, item, err
	}
	if quantity < 0 {
		return reg, item, apperr.Field(apperr.ErrInvalidQuantity, "quantity", "must not be negative, got %d", quantity)
	}
	if size != nil && !item.HasSize {
		return reg, item, apperr.Field(apperr.ErrSizeNotAccepted, "size", "%s does not come in sizes", item.Item)
	}
	if err := CheckAge(item, reg.Scout, reg.Event); err != nil {
		return reg, item, err
	}
	return reg, item, nil
}

// CheckAge reports ErrIneligibleAge when the scout's age on the event's
// start date is outside the item's inclusive bounds.
func CheckAge(item models.Purchasable, scout models.Scout, event models.Event) error {
	if item.MinimumAge == nil && item.MaximumAge == nil {
		return nil
	}
	age := scout.AgeOn(event.StartDate)
	if item.MinimumAge != nil && age < *item.MinimumAge {
		return apperr.Field(apperr.ErrIneligibleAge, "purchasable",
			"%s requires age %d or older, scout is %d", item.Item, *item.MinimumAge, age)
	}
	if item.MaximumAge != nil && age > *item.MaximumAge {
		return apperr.Field(apperr.ErrIneligibleAge, "purchasable",
			"%s requires age %d or younger, scout is %d", item.Item, *item.MaximumAge, age)
	}
	return nil
}

func loadPurchasable(tx *gorm.DB, eventID, purchasableID uint) (models.Purchasable, error) {
	var p models.Purchasable
	if err := tx.First(&p, purchasableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, apperr.ErrInvalidPurchasable
		}
		return p, fmt.Errorf("load purchasable: %w", err)
	}
	if p.EventID != eventID {
		return p, fmt.Errorf("%w: item %d is not sold at event %d", apperr.ErrInvalidPurchasable, purchasableID, eventID)
	}
	return p, nil
}
