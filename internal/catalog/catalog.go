// Package catalog exposes an event's offerings and validates offering
// definitions.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/capacity"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OfferingInput is a create or update request for an offering. Periods may
// hold nil entries, which are dropped before validation. A nil Price or
// SizeLimit keeps the current value on update and takes the default on
// create.
type OfferingInput struct {
	BadgeID      uint
	Duration     int
	Periods      []*int
	Price        *decimal.Decimal
	Requirements []string
	SizeLimit    *int
}

type Catalog struct {
	db               *gorm.DB
	defaultSizeLimit int
}

func New(db *gorm.DB, defaultSizeLimit int) *Catalog {
	if defaultSizeLimit <= 0 {
		defaultSizeLimit = models.DefaultSizeLimit
	}
	return &Catalog{db: db, defaultSizeLimit: defaultSizeLimit}
}

// View is a read-only copy of one event's offerings taken at a single point.
type View struct {
	EventID   uint
	offerings map[uint]models.Offering
	order     []uint
}

// ForEvent loads every offering of the event.
func (c *Catalog) ForEvent(ctx context.Context, eventID uint) (*View, error) {
	return Load(c.db.WithContext(ctx), eventID)
}

// Load builds a View using db, which may be an open transaction.
func Load(db *gorm.DB, eventID uint) (*View, error) {
	var count int64
	if err := db.Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	if count == 0 {
		return nil, apperr.ErrInvalidEvent
	}

	var offerings []models.Offering
	if err := db.Preload("Badge").
		Where("event_id = ?", eventID).
		Order("id asc").
		Find(&offerings).Error; err != nil {
		return nil, fmt.Errorf("load offerings: %w", err)
	}

	v := &View{
		EventID:   eventID,
		offerings: make(map[uint]models.Offering, len(offerings)),
		order:     make([]uint, 0, len(offerings)),
	}
	for _, o := range offerings {
		v.offerings[o.ID] = o
		v.order = append(v.order, o.ID)
	}
	return v, nil
}

// Get returns the offering with id, or ErrInvalidOffering when the event has
// no such offering.
func (v *View) Get(id uint) (models.Offering, error) {
	o, ok := v.offerings[id]
	if !ok {
		return models.Offering{}, fmt.Errorf("%w: offering %d is not part of event %d",
			apperr.ErrInvalidOffering, id, v.EventID)
	}
	return o, nil
}

// All returns the offerings in creation order.
func (v *View) All() []models.Offering {
	out := make([]models.Offering, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.offerings[id])
	}
	return out
}

func (v *View) Len() int { return len(v.order) }

// NormalizePeriods drops nil entries and duplicates and sorts the rest.
func NormalizePeriods(periods []*int) []int {
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if p != nil && !slices.Contains(out, *p) {
			out = append(out, *p)
		}
	}
	slices.Sort(out)
	return out
}

// Validate checks an input and returns the normalized periods.
func Validate(in OfferingInput) ([]int, error) {
	periods := NormalizePeriods(in.Periods)
	for _, p := range periods {
		if p < 1 {
			return nil, apperr.Field(apperr.ErrInvalidPeriod, "periods", "period %d must be positive", p)
		}
	}
	if in.Duration < 1 {
		return nil, apperr.Field(apperr.ErrInvalidDuration, "duration", "must be at least 1, got %d", in.Duration)
	}
	if in.Duration != len(periods) {
		return nil, apperr.Field(apperr.ErrInvalidDuration, "duration",
			"duration %d does not match %d distinct periods %v", in.Duration, len(periods), periods)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, apperr.Field(apperr.ErrInvalidOffering, "price", "must not be negative")
	}
	if in.Price != nil && !in.Price.Equal(in.Price.Round(2)) {
		return nil, apperr.Field(apperr.ErrInvalidOffering, "price", "must have at most 2 decimal places")
	}
	if in.SizeLimit != nil && *in.SizeLimit < 1 {
		return nil, apperr.Field(apperr.ErrInvalidOffering, "size_limit", "must be positive, got %d", *in.SizeLimit)
	}
	return periods, nil
}

// Create adds an offering of a badge to an event.
func (c *Catalog) Create(ctx context.Context, eventID uint, in OfferingInput) (*models.Offering, error) {
	periods, err := Validate(in)
	if err != nil {
		return nil, err
	}

	offering := models.Offering{
		EventID:      eventID,
		BadgeID:      in.BadgeID,
		Duration:     in.Duration,
		Periods:      periods,
		Requirements: requirements(in.Requirements),
		SizeLimit:    c.defaultSizeLimit,
	}
	if in.Price != nil {
		offering.Price = in.Price.Round(2)
	}
	if in.SizeLimit != nil {
		offering.SizeLimit = *in.SizeLimit
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Event{}, eventID, apperr.ErrInvalidEvent); err != nil {
			return err
		}
		if err := exists(tx, &models.Badge{}, in.BadgeID, apperr.ErrInvalidBadge); err != nil {
			return err
		}
		var dup int64
		if err := tx.Model(&models.Offering{}).
			Where("event_id = ? AND badge_id = ?", eventID, in.BadgeID).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check offering: %w", err)
		}
		if dup > 0 {
			return fmt.Errorf("%w: badge %d is already offered at event %d", apperr.ErrAlreadyExists, in.BadgeID, eventID)
		}
		return tx.Omit(clause.Associations).Create(&offering).Error
	})
	if err != nil {
		return nil, err
	}
	return c.reload(ctx, offering.ID)
}

// Update rewrites an offering. Periods that still hold seats cannot be
// removed and the size limit cannot drop below current occupancy.
func (c *Catalog) Update(ctx context.Context, eventID, offeringID uint, in OfferingInput) (*models.Offering, error) {
	periods, err := Validate(in)
	if err != nil {
		return nil, err
	}

	var offering models.Offering
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&offering, offeringID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvalidOffering
			}
			return fmt.Errorf("load offering: %w", err)
		}
		if offering.EventID != eventID {
			return fmt.Errorf("%w: offering %d is not part of event %d", apperr.ErrInvalidOffering, offeringID, eventID)
		}
		if in.BadgeID != 0 && in.BadgeID != offering.BadgeID {
			return apperr.Field(apperr.ErrInvalidBadge, "badge", "the badge of an offering cannot change")
		}

		snap, err := capacity.SnapshotTx(tx, offering.ID)
		if err != nil {
			return err
		}
		for _, p := range snap.SortedPeriods() {
			n := snap.Periods[p]
			if n > 0 && !slices.Contains(periods, p) {
				return apperr.Field(apperr.ErrInvalidPeriod, "periods",
					"period %d still has %d assigned scouts", p, n)
			}
		}

		offering.Duration = in.Duration
		offering.Periods = periods
		if in.Price != nil {
			offering.Price = in.Price.Round(2)
		}
		offering.Requirements = requirements(in.Requirements)
		if in.SizeLimit != nil {
			for _, p := range snap.SortedPeriods() {
				if snap.Periods[p] > *in.SizeLimit {
					return apperr.Field(apperr.ErrInvalidOffering, "size_limit",
						"period %d already holds %d scouts", p, snap.Periods[p])
				}
			}
			offering.SizeLimit = *in.SizeLimit
		}
		return tx.Omit(clause.Associations).Save(&offering).Error
	})
	if err != nil {
		return nil, err
	}
	return c.reload(ctx, offering.ID)
}

func (c *Catalog) reload(ctx context.Context, id uint) (*models.Offering, error) {
	var offering models.Offering
	if err := c.db.WithContext(ctx).Preload("Badge").First(&offering, id).Error; err != nil {
		return nil, fmt.Errorf("reload offering %d: %w", id, err)
	}
	return &offering, nil
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

func requirements(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
