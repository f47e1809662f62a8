// Package pricing derives projected and actual costs from preferences,
// assignments and purchases.
//
// Projected cost counts the price of every preference row. Actual cost
// counts each assigned offering once, however many periods it holds. Both
// add price × quantity for every purchase.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/catalog"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Format renders an amount with exactly two decimal places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// PurchaseTotal sums price × quantity. Purchases must have Purchasable loaded.
func PurchaseTotal(purchases []models.Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purchases {
		total = total.Add(p.Purchasable.Price.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total
}

// Projected sums the offering price of each preference row plus purchases.
// Preferences pointing at offerings missing from view contribute nothing.
func Projected(view *catalog.View, prefs []models.Preference, purchases []models.Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, pref := range prefs {
		if o, err := view.Get(pref.OfferingID); err == nil {
			total = total.Add(o.Price)
		}
	}
	return total.Add(PurchaseTotal(purchases))
}

// Actual sums the price of each distinct assigned offering plus purchases.
func Actual(view *catalog.View, assignments []models.Assignment, purchases []models.Purchase) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[uint]bool, len(assignments))
	for _, a := range assignments {
		if seen[a.OfferingID] {
			continue
		}
		seen[a.OfferingID] = true
		if o, err := view.Get(a.OfferingID); err == nil {
			total = total.Add(o.Price)
		}
	}
	return total.Add(PurchaseTotal(purchases))
}

type kind int

const (
	projected kind = iota
	actual
)

type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) ProjectedCost(ctx context.Context, registrationID uint) (decimal.Decimal, error) {
	return e.sum(ctx, projected, byRegistration(registrationID))
}

func (e *Engine) ActualCost(ctx context.Context, registrationID uint) (decimal.Decimal, error) {
	return e.sum(ctx, actual, byRegistration(registrationID))
}

// ScoutProjectedCost resolves the scout's registration for the event first.
func (e *Engine) ScoutProjectedCost(ctx context.Context, scoutID, eventID uint) (decimal.Decimal, error) {
	return e.sum(ctx, projected, byScout(scoutID, eventID))
}

func (e *Engine) ScoutActualCost(ctx context.Context, scoutID, eventID uint) (decimal.Decimal, error) {
	return e.sum(ctx, actual, byScout(scoutID, eventID))
}

// TroopProjectedCost sums over every scout of the user registered to the
// event. A user with no registered scouts owes nothing.
func (e *Engine) TroopProjectedCost(ctx context.Context, userID, eventID uint) (decimal.Decimal, error) {
	return e.sum(ctx, projected, byUser(userID, eventID))
}

func (e *Engine) TroopActualCost(ctx context.Context, userID, eventID uint) (decimal.Decimal, error) {
	return e.sum(ctx, actual, byUser(userID, eventID))
}

func (e *Engine) ProjectedIncome(ctx context.Context, eventID uint) (decimal.Decimal, error) {
	return e.sum(ctx, projected, byEvent(eventID))
}

func (e *Engine) ActualIncome(ctx context.Context, eventID uint) (decimal.Decimal, error) {
	return e.sum(ctx, actual, byEvent(eventID))
}

// selector resolves the registrations to price and the event they share.
type selector func(tx *gorm.DB) (eventID uint, regs []models.Registration, err error)

// sum prices the selected registrations from one consistent read.
func (e *Engine) sum(ctx context.Context, k kind, sel selector) (decimal.Decimal, error) {
	total := decimal.Zero
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eventID, regs, err := sel(tx)
		if err != nil {
			return err
		}
		view, err := catalog.Load(tx, eventID)
		if err != nil {
			return err
		}
		if len(regs) == 0 {
			return nil
		}

		ids := make([]uint, len(regs))
		for i, r := range regs {
			ids[i] = r.ID
		}

		var purchases []models.Purchase
		if err := tx.Preload("Purchasable").Where("registration_id IN ?", ids).Find(&purchases).Error; err != nil {
			return fmt.Errorf("load purchases: %w", err)
		}
		total = PurchaseTotal(purchases)

		switch k {
		case projected:
			var prefs []models.Preference
			if err := tx.Where("registration_id IN ?", ids).Find(&prefs).Error; err != nil {
				return fmt.Errorf("load preferences: %w", err)
			}
			total = total.Add(Projected(view, prefs, nil))
		case actual:
			var assignments []models.Assignment
			if err := tx.Where("registration_id IN ?", ids).Find(&assignments).Error; err != nil {
				return fmt.Errorf("load assignments: %w", err)
			}
			for _, group := range groupByRegistration(assignments) {
				total = total.Add(Actual(view, group, nil))
			}
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func groupByRegistration(assignments []models.Assignment) map[uint][]models.Assignment {
	out := make(map[uint][]models.Assignment)
	for _, a := range assignments {
		out[a.RegistrationID] = append(out[a.RegistrationID], a)
	}
	return out
}

func byRegistration(registrationID uint) selector {
	return func(tx *gorm.DB) (uint, []models.Registration, error) {
		var reg models.Registration
		if err := tx.First(&reg, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil, apperr.ErrInvalidRegistration
			}
			return 0, nil, fmt.Errorf("load registration: %w", err)
		}
		return reg.EventID, []models.Registration{reg}, nil
	}
}

func byScout(scoutID, eventID uint) selector {
	return func(tx *gorm.DB) (uint, []models.Registration, error) {
		if err := exists(tx, &models.Scout{}, scoutID, apperr.ErrInvalidScout); err != nil {
			return 0, nil, err
		}
		if err := exists(tx, &models.Event{}, eventID, apperr.ErrInvalidEvent); err != nil {
			return 0, nil, err
		}
		var reg models.Registration
		if err := tx.Where("scout_id = ? AND event_id = ?", scoutID, eventID).First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil, fmt.Errorf("%w: scout %d is not registered for event %d",
					apperr.ErrInvalidRegistration, scoutID, eventID)
			}
			return 0, nil, fmt.Errorf("load registration: %w", err)
		}
		return eventID, []models.Registration{reg}, nil
	}
}

func byUser(userID, eventID uint) selector {
	return func(tx *gorm.DB) (uint, []models.Registration, error) {
		if err := exists(tx, &models.User{}, userID, apperr.ErrInvalidUser); err != nil {
			return 0, nil, err
		}
		var regs []models.Registration
		if err := tx.Joins("JOIN scouts ON scouts.id = registrations.scout_id AND scouts.deleted_at IS NULL").
			Where("scouts.user_id = ? AND registrations.event_id = ?", userID, eventID).
			Find(&regs).Error; err != nil {
			return 0, nil, fmt.Errorf("load registrations: %w", err)
		}
		return eventID, regs, nil
	}
}

func byEvent(eventID uint) selector {
	return func(tx *gorm.DB) (uint, []models.Registration, error) {
		var regs []models.Registration
		if err := tx.Where("event_id = ?", eventID).Find(&regs).Error; err != nil {
			return 0, nil, fmt.Errorf("load registrations: %w", err)
		}
		return eventID, regs, nil
	}
}

func exists(tx *gorm.DB, model any, id uint, notFound error) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
