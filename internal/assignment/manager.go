// Package assignment mutates a registration's class assignments under the
// seat-limit and no-double-booking constraints.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/capacity"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/gdg-garage/badge-camp-api/internal/notifier"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item is one entry of a batch replacement.
type Item struct {
	OfferingID uint
	Periods    []int
}

type Manager struct {
	db       *gorm.DB
	ledger   capacity.Ledger
	notifier notifier.Notifier
	logger   *slog.Logger
	locks    *keyedMutex
}

func NewManager(db *gorm.DB, ledger capacity.Ledger, n notifier.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		db:       db,
		ledger:   ledger,
		notifier: n,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

// Create assigns the registration to an offering. An empty periods list
// records a provisional enrollment and reserves nothing.
func (m *Manager) Create(ctx context.Context, registrationID, offeringID uint, periods []int) (*models.Assignment, error) {
	unlock := m.locks.Lock(registrationID)
	defer unlock()

	var created models.Assignment
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegistration(tx, registrationID)
		if err != nil {
			return err
		}
		offering, err := loadOffering(tx, reg.EventID, offeringID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Assignment{}).
			Where("registration_id = ? AND offering_id = ?", reg.ID, offering.ID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing assignment: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: registration %d is already assigned to offering %d",
				apperr.ErrAlreadyExists, reg.ID, offering.ID)
		}

		occupied, err := occupiedPeriods(tx, reg.ID, 0)
		if err != nil {
			return err
		}
		if err := m.claim(ctx, tx, offering, periods, occupied); err != nil {
			return err
		}

		created = models.Assignment{
			RegistrationID: reg.ID,
			OfferingID:     offering.ID,
			Periods:        normalize(periods),
			Completions:    []string{},
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		return recordHistory(tx, created, models.ActionCreated)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("assignment created",
		"registration_id", registrationID, "offering_id", offeringID, "periods", created.Periods)
	m.announceFull(ctx, map[uint][]int{offeringID: created.Periods})
	return &created, nil
}

// Replace discards every assignment of the registration and creates items in
// order. Either the whole batch commits or the prior set is left untouched.
func (m *Manager) Replace(ctx context.Context, registrationID uint, items []Item) ([]models.Assignment, error) {
	unlock := m.locks.Lock(registrationID)
	defer unlock()

	seen := make(map[uint]int, len(items))
	for i, item := range items {
		if j, dup := seen[item.OfferingID]; dup {
			return nil, apperr.Field(apperr.ErrInvalidOffering, fmt.Sprintf("items[%d].offering", i),
				"offering %d already listed at items[%d]", item.OfferingID, j)
		}
		seen[item.OfferingID] = i
	}

	var result []models.Assignment
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegistration(tx, registrationID)
		if err != nil {
			return err
		}

		var prior []models.Assignment
		if err := tx.Where("registration_id = ?", reg.ID).Find(&prior).Error; err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		for _, a := range prior {
			if err := m.ledger.Release(ctx, tx, a.OfferingID, a.Periods); err != nil {
				return err
			}
			if err := tx.Delete(&a).Error; err != nil {
				return fmt.Errorf("delete assignment %d: %w", a.ID, err)
			}
			if err := recordHistory(tx, a, models.ActionDeleted); err != nil {
				return err
			}
		}

		occupied := map[int]uint{}
		for i, item := range items {
			offering, err := loadOffering(tx, reg.EventID, item.OfferingID)
			if err != nil {
				return fmt.Errorf("items[%d]: %w", i, err)
			}
			if err := m.claim(ctx, tx, offering, item.Periods, occupied); err != nil {
				return fmt.Errorf("items[%d]: %w", i, err)
			}
			a := models.Assignment{
				RegistrationID: reg.ID,
				OfferingID:     offering.ID,
				Periods:        normalize(item.Periods),
				Completions:    []string{},
			}
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("items[%d]: create assignment: %w", i, err)
			}
			if err := recordHistory(tx, a, models.ActionReplaced); err != nil {
				return err
			}
		}

		result, err = list(tx, reg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("assignments replaced", "registration_id", registrationID, "count", len(result))
	touched := make(map[uint][]int, len(result))
	for _, a := range result {
		touched[a.OfferingID] = a.Periods
	}
	m.announceFull(ctx, touched)
	return result, nil
}

// Update moves an assignment to new periods. The registration's own seats
// are released first so they count as free again. completions replaces the
// completions list when non-nil.
func (m *Manager) Update(ctx context.Context, registrationID, offeringID uint, periods []int, completions []string) (*models.Assignment, error) {
	unlock := m.locks.Lock(registrationID)
	defer unlock()

	var updated models.Assignment
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegistration(tx, registrationID)
		if err != nil {
			return err
		}
		offering, err := loadOffering(tx, reg.EventID, offeringID)
		if err != nil {
			return err
		}
		if err := tx.Where("registration_id = ? AND offering_id = ?", reg.ID, offering.ID).
			First(&updated).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvalidAssignment
			}
			return fmt.Errorf("load assignment: %w", err)
		}

		occupied, err := occupiedPeriods(tx, reg.ID, offering.ID)
		if err != nil {
			return err
		}
		if err := m.ledger.Release(ctx, tx, offering.ID, updated.Periods); err != nil {
			return err
		}
		if err := m.claim(ctx, tx, offering, periods, occupied); err != nil {
			return err
		}

		updated.Periods = normalize(periods)
		if completions != nil {
			updated.Completions = completions
		}
		if updated.Completions == nil {
			updated.Completions = []string{}
		}
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("save assignment: %w", err)
		}
		return recordHistory(tx, updated, models.ActionUpdated)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("assignment updated",
		"registration_id", registrationID, "offering_id", offeringID, "periods", updated.Periods)
	m.announceFull(ctx, map[uint][]int{offeringID: updated.Periods})
	return &updated, nil
}

// Delete releases the assignment's seats and removes it.
func (m *Manager) Delete(ctx context.Context, registrationID, offeringID uint) error {
	unlock := m.locks.Lock(registrationID)
	defer unlock()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := lockRegistration(tx, registrationID)
		if err != nil {
			return err
		}
		var a models.Assignment
		if err := tx.Where("registration_id = ? AND offering_id = ?", reg.ID, offeringID).
			First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvalidAssignment
			}
			return fmt.Errorf("load assignment: %w", err)
		}
		if err := m.ledger.Release(ctx, tx, a.OfferingID, a.Periods); err != nil {
			return err
		}
		if err := tx.Delete(&a).Error; err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
		return recordHistory(tx, a, models.ActionDeleted)
	})
	if err != nil {
		return err
	}

	m.logger.Info("assignment deleted", "registration_id", registrationID, "offering_id", offeringID)
	return nil
}

// DeleteAll releases and removes every assignment of a registration inside
// tx. The caller holds the transaction; used when a registration is removed.
func (m *Manager) DeleteAll(ctx context.Context, tx *gorm.DB, registrationID uint) error {
	var assignments []models.Assignment
	if err := tx.Where("registration_id = ?", registrationID).Find(&assignments).Error; err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	for _, a := range assignments {
		if err := m.ledger.Release(ctx, tx, a.OfferingID, a.Periods); err != nil {
			return err
		}
	}
	if err := tx.Where("registration_id = ?", registrationID).Delete(&models.Assignment{}).Error; err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	if err := tx.Where("registration_id = ?", registrationID).Delete(&models.AssignmentHistory{}).Error; err != nil {
		return fmt.Errorf("delete assignment history: %w", err)
	}
	return nil
}

// List returns the registration's assignments in offering creation order.
func (m *Manager) List(ctx context.Context, registrationID uint) ([]models.Assignment, error) {
	db := m.db.WithContext(ctx)
	if err := registrationExists(db, registrationID); err != nil {
		return nil, err
	}
	return list(db, registrationID)
}

// History returns the registration's assignment history, newest first.
func (m *Manager) History(ctx context.Context, registrationID uint) ([]models.AssignmentHistory, error) {
	db := m.db.WithContext(ctx)
	if err := registrationExists(db, registrationID); err != nil {
		return nil, err
	}
	var history []models.AssignmentHistory
	if err := db.Where("registration_id = ?", registrationID).
		Order("id desc").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// claim validates periods against the offering and the scout's other
// assignments, then reserves seats. occupied maps each period the scout
// already holds to its offering and is extended on success.
func (m *Manager) claim(ctx context.Context, tx *gorm.DB, offering models.Offering, periods []int, occupied map[int]uint) error {
	seen := make(map[int]bool, len(periods))
	for _, p := range periods {
		if !offering.HasPeriod(p) {
			return apperr.Field(apperr.ErrInvalidPeriod, "periods",
				"period %d is not offered by offering %d (valid: %v)", p, offering.ID, offering.Periods)
		}
		if seen[p] {
			return apperr.Field(apperr.ErrInvalidPeriod, "periods", "period %d listed twice", p)
		}
		seen[p] = true
		if owner, taken := occupied[p]; taken {
			return &apperr.PeriodConflictError{Period: p, OfferingID: owner}
		}
	}

	if err := m.ledger.Reserve(ctx, tx, offering, periods); err != nil {
		return err
	}
	for _, p := range periods {
		occupied[p] = offering.ID
	}
	return nil
}

// announceFull notifies for every requested period that is now at its limit.
// Failures are logged; the mutation has already committed.
func (m *Manager) announceFull(ctx context.Context, touched map[uint][]int) {
	if m.notifier == nil {
		return
	}
	for offeringID, periods := range touched {
		if len(periods) == 0 {
			continue
		}
		snap, err := m.ledger.Snapshot(ctx, offeringID)
		if err != nil {
			m.logger.Warn("capacity snapshot failed", "offering_id", offeringID, "error", err)
			continue
		}
		var offering models.Offering
		if err := m.db.WithContext(ctx).Preload("Badge").First(&offering, offeringID).Error; err != nil {
			m.logger.Warn("load offering failed", "offering_id", offeringID, "error", err)
			continue
		}
		for _, p := range periods {
			if !snap.Full(p) {
				continue
			}
			if err := m.notifier.NotifyOfferingFull(offering, p); err != nil {
				m.logger.Warn("offering full notification failed",
					"offering_id", offeringID, "period", p, "error", err)
			}
		}
	}
}

func lockRegistration(tx *gorm.DB, id uint) (models.Registration, error) {
	var reg models.Registration
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reg, apperr.ErrInvalidRegistration
		}
		return reg, fmt.Errorf("load registration %d: %w", id, err)
	}
	return reg, nil
}

func registrationExists(db *gorm.DB, id uint) error {
	var count int64
	if err := db.Model(&models.Registration{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("load registration %d: %w", id, err)
	}
	if count == 0 {
		return apperr.ErrInvalidRegistration
	}
	return nil
}

// loadOffering fetches an offering and checks it belongs to eventID. The row
// is share-locked so its size limit cannot change before tx commits.
func loadOffering(tx *gorm.DB, eventID, offeringID uint) (models.Offering, error) {
	var offering models.Offering
	if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&offering, offeringID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return offering, fmt.Errorf("%w: offering %d not found", apperr.ErrInvalidOffering, offeringID)
		}
		return offering, fmt.Errorf("load offering %d: %w", offeringID, err)
	}
	if offering.EventID != eventID {
		return offering, fmt.Errorf("%w: offering %d is not part of event %d",
			apperr.ErrInvalidOffering, offeringID, eventID)
	}
	return offering, nil
}

// occupiedPeriods maps every period held by the registration to the offering
// holding it, skipping except. A registration is one scout in one event, so
// this is the scout's whole schedule for the event.
func occupiedPeriods(tx *gorm.DB, registrationID, except uint) (map[int]uint, error) {
	var assignments []models.Assignment
	if err := tx.Where("registration_id = ? AND offering_id <> ?", registrationID, except).
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	occupied := map[int]uint{}
	for _, a := range assignments {
		for _, p := range a.Periods {
			occupied[p] = a.OfferingID
		}
	}
	return occupied, nil
}

func list(db *gorm.DB, registrationID uint) ([]models.Assignment, error) {
	assignments := []models.Assignment{}
	if err := db.Where("registration_id = ?", registrationID).
		Order("offering_id asc").
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

func recordHistory(tx *gorm.DB, a models.Assignment, action string) error {
	h := models.AssignmentHistory{
		RegistrationID: a.RegistrationID,
		OfferingID:     a.OfferingID,
		Action:         action,
		Periods:        a.Periods,
		Completions:    a.Completions,
	}
	if err := tx.Create(&h).Error; err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

func normalize(periods []int) []int {
	if periods == nil {
		return []int{}
	}
	return slices.Clone(periods)
}
