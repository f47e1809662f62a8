// Package preference stores a registration's ranked wishlist of offerings.
// Preferences never hold seats.
package preference

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/catalog"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinRank = 1
	MaxRank = 6
)

type Item struct {
	OfferingID uint
	Rank       int
}

type Set struct {
	db *gorm.DB
}

func NewSet(db *gorm.DB) *Set {
	return &Set{db: db}
}

// ValidateRank rejects ranks outside [MinRank, MaxRank].
func ValidateRank(rank int) error {
	if rank < MinRank || rank > MaxRank {
		return apperr.Field(apperr.ErrInvalidRank, "rank", "must be between %d and %d, got %d", MinRank, MaxRank, rank)
	}
	return nil
}

// Put creates or re-ranks the registration's preference for an offering.
func (s *Set) Put(ctx context.Context, registrationID, offeringID uint, rank int) (*models.Preference, error) {
	if err := ValidateRank(rank); err != nil {
		return nil, err
	}

	var pref models.Preference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := viewFor(tx, registrationID)
		if err != nil {
			return err
		}
		if _, err := view.Get(offeringID); err != nil {
			return err
		}
		pref, err = upsert(tx, registrationID, offeringID, rank)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Replace overwrites every preference of the registration. Nothing changes
// unless all items are valid.
func (s *Set) Replace(ctx context.Context, registrationID uint, items []Item) ([]models.Preference, error) {
	seen := make(map[uint]int, len(items))
	for i, item := range items {
		if err := ValidateRank(item.Rank); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if j, dup := seen[item.OfferingID]; dup {
			return nil, apperr.Field(apperr.ErrInvalidOffering, fmt.Sprintf("items[%d].offering", i),
				"offering %d already listed at items[%d]", item.OfferingID, j)
		}
		seen[item.OfferingID] = i
	}

	var result []models.Preference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := viewFor(tx, registrationID)
		if err != nil {
			return err
		}
		for i, item := range items {
			if _, err := view.Get(item.OfferingID); err != nil {
				return fmt.Errorf("items[%d]: %w", i, err)
			}
		}
		if err := tx.Where("registration_id = ?", registrationID).Delete(&models.Preference{}).Error; err != nil {
			return fmt.Errorf("clear preferences: %w", err)
		}
		for i, item := range items {
			if _, err := upsert(tx, registrationID, item.OfferingID, item.Rank); err != nil {
				return fmt.Errorf("items[%d]: %w", i, err)
			}
		}
		result, err = list(tx, registrationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns preferences ordered by rank, then offering.
func (s *Set) List(ctx context.Context, registrationID uint) ([]models.Preference, error) {
	db := s.db.WithContext(ctx)
	var reg models.Registration
	if err := db.First(&reg, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidRegistration
		}
		return nil, fmt.Errorf("load registration: %w", err)
	}
	return list(db, registrationID)
}

func (s *Set) Delete(ctx context.Context, registrationID, offeringID uint) error {
	res := s.db.WithContext(ctx).
		Where("registration_id = ? AND offering_id = ?", registrationID, offeringID).
		Delete(&models.Preference{})
	if res.Error != nil {
		return fmt.Errorf("delete preference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrInvalidPreference
	}
	return nil
}

// DeleteAll removes every preference of a registration inside tx.
func DeleteAll(tx *gorm.DB, registrationID uint) error {
	if err := tx.Where("registration_id = ?", registrationID).Delete(&models.Preference{}).Error; err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

func viewFor(tx *gorm.DB, registrationID uint) (*catalog.View, error) {
	var reg models.Registration
	if err := tx.First(&reg, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidRegistration
		}
		return nil, fmt.Errorf("load registration: %w", err)
	}
	return catalog.Load(tx, reg.EventID)
}

func upsert(tx *gorm.DB, registrationID, offeringID uint, rank int) (models.Preference, error) {
	pref := models.Preference{RegistrationID: registrationID, OfferingID: offeringID, Rank: rank}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registration_id"}, {Name: "offering_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rank", "updated_at"}),
	}).Omit(clause.Associations).Create(&pref).Error
	if err != nil {
		return pref, fmt.Errorf("save preference: %w", err)
	}
	if err := tx.Where("registration_id = ? AND offering_id = ?", registrationID, offeringID).
		First(&pref).Error; err != nil {
		return pref, fmt.Errorf("reload preference: %w", err)
	}
	return pref, nil
}

func list(db *gorm.DB, registrationID uint) ([]models.Preference, error) {
	prefs := []models.Preference{}
	if err := db.Where("registration_id = ?", registrationID).
		Order("rank asc, offering_id asc").
		Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}
