// Package enrollment creates and removes registrations. Removing one
// cascades explicitly to its assignments, preferences and purchases.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/assignment"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/gdg-garage/badge-camp-api/internal/preference"
	"github.com/gdg-garage/badge-camp-api/internal/purchase"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db          *gorm.DB
	assignments *assignment.Manager
	logger      *slog.Logger
}

func NewService(db *gorm.DB, assignments *assignment.Manager, logger *slog.Logger) *Service {
	return &Service{db: db, assignments: assignments, logger: logger}
}

// Enroll registers the scout for the event. Enrolling twice returns the
// existing registration with created set to false.
func (s *Service) Enroll(ctx context.Context, scoutID, eventID uint, notes string) (reg *models.Registration, created bool, err error) {
	var out models.Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Scout{}, scoutID, apperr.ErrInvalidScout); err != nil {
			return err
		}
		if err := exists(tx, &models.Event{}, eventID, apperr.ErrInvalidEvent); err != nil {
			return err
		}

		out = models.Registration{ScoutID: scoutID, EventID: eventID, Notes: notes}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&out)
		if res.Error != nil {
			return fmt.Errorf("create registration: %w", res.Error)
		}
		created = res.RowsAffected > 0
		return tx.Where("scout_id = ? AND event_id = ?", scoutID, eventID).First(&out).Error
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.InfoContext(ctx, "scout enrolled", "registration_id", out.ID, "scout_id", scoutID, "event_id", eventID)
	}
	return &out, created, nil
}

func (s *Service) Get(ctx context.Context, registrationID uint) (*models.Registration, error) {
	var reg models.Registration
	if err := s.db.WithContext(ctx).First(&reg, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidRegistration
		}
		return nil, fmt.Errorf("load registration: %w", err)
	}
	return &reg, nil
}

// ListForEvent returns the event's registrations in enrollment order.
func (s *Service) ListForEvent(ctx context.Context, eventID uint) ([]models.Registration, error) {
	db := s.db.WithContext(ctx)
	if err := exists(db, &models.Event{}, eventID, apperr.ErrInvalidEvent); err != nil {
		return nil, err
	}
	regs := []models.Registration{}
	if err := db.Where("event_id = ?", eventID).Order("id asc").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Unenroll deletes the registration and everything it owns, releasing its
// seats, in one transaction.
func (s *Service) Unenroll(ctx context.Context, registrationID uint) error {
	return s.assignments.Locked(registrationID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var reg models.Registration
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, registrationID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.ErrInvalidRegistration
				}
				return fmt.Errorf("load registration: %w", err)
			}
			if err := s.assignments.DeleteAll(ctx, tx, reg.ID); err != nil {
				return err
			}
			if err := preference.DeleteAll(tx, reg.ID); err != nil {
				return err
			}
			if err := purchase.DeleteAll(tx, reg.ID); err != nil {
				return err
			}
			if err := tx.Delete(&reg).Error; err != nil {
				return fmt.Errorf("delete registration: %w", err)
			}
			s.logger.InfoContext(ctx, "scout unenrolled", "registration_id", reg.ID, "scout_id", reg.ScoutID, "event_id", reg.EventID)
			return nil
		})
	})
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
