// Package capacity tracks seat occupancy per offering period.
//
// Occupancy lives in offering_seats rows that only change through
// conditional UPDATEs ("occupied < size_limit"), so two writers racing for
// the last seat of a period cannot both succeed, whichever process or
// database connection they run on.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot is the derived occupancy of one offering.
type Snapshot struct {
	OfferingID uint
	SizeLimit  int
	// Total counts registrations holding at least one assignment to the
	// offering, including assignments with no period chosen yet.
	Total   int
	Periods map[int]int
}

// Fields flattens the snapshot into {"size_limit", "total", "<period>": n}.
func (s Snapshot) Fields() map[string]int {
	out := make(map[string]int, len(s.Periods)+2)
	out["size_limit"] = s.SizeLimit
	out["total"] = s.Total
	for p, n := range s.Periods {
		out[strconv.Itoa(p)] = n
	}
	return out
}

// SortedPeriods returns the snapshot's periods in ascending order.
func (s Snapshot) SortedPeriods() []int {
	periods := make([]int, 0, len(s.Periods))
	for p := range s.Periods {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	return periods
}

// Full reports whether period p has no free seat.
func (s Snapshot) Full(p int) bool {
	return s.Periods[p] >= s.SizeLimit
}

// Ledger reserves and releases seats. Reserve and Release run inside the
// caller's transaction so seat accounting commits or rolls back together
// with the assignment rows.
type Ledger interface {
	Snapshot(ctx context.Context, offeringID uint) (Snapshot, error)
	Reserve(ctx context.Context, tx *gorm.DB, offering models.Offering, periods []int) error
	Release(ctx context.Context, tx *gorm.DB, offeringID uint, periods []int) error
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ Ledger = (*Store)(nil)

func (s *Store) Snapshot(ctx context.Context, offeringID uint) (Snapshot, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = snapshot(tx, offeringID)
		return err
	})
	return snap, err
}

// SnapshotTx reads occupancy inside an open transaction, observing the
// transaction's own uncommitted reservations.
func SnapshotTx(tx *gorm.DB, offeringID uint) (Snapshot, error) {
	return snapshot(tx, offeringID)
}

func snapshot(tx *gorm.DB, offeringID uint) (Snapshot, error) {
	var offering models.Offering
	if err := tx.First(&offering, offeringID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, apperr.ErrInvalidOffering
		}
		return Snapshot{}, fmt.Errorf("load offering %d: %w", offeringID, err)
	}

	var seats []models.OfferingSeat
	if err := tx.Where("offering_id = ?", offeringID).Find(&seats).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load seats: %w", err)
	}

	var total int64
	if err := tx.Model(&models.Assignment{}).
		Where("offering_id = ?", offeringID).
		Distinct("registration_id").
		Count(&total).Error; err != nil {
		return Snapshot{}, fmt.Errorf("count registrations: %w", err)
	}

	snap := Snapshot{
		OfferingID: offering.ID,
		SizeLimit:  offering.SizeLimit,
		Total:      int(total),
		Periods:    make(map[int]int, len(offering.Periods)),
	}
	for _, p := range offering.Periods {
		snap.Periods[p] = 0
	}
	for _, seat := range seats {
		if seat.Occupied > 0 || offering.HasPeriod(seat.Period) {
			snap.Periods[seat.Period] = seat.Occupied
		}
	}
	return snap, nil
}

// Reserve takes one seat in each period, in order. The first full period
// aborts the call with a *apperr.CapacityError and undoes the seats this call
// already took. Seats are checked against the stored size_limit, not the one
// on offering.
func (s *Store) Reserve(ctx context.Context, tx *gorm.DB, offering models.Offering, periods []int) error {
	if len(periods) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range periods {
			seat := models.OfferingSeat{OfferingID: offering.ID, Period: p}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seat).Error; err != nil {
				return fmt.Errorf("init seat %d/%d: %w", offering.ID, p, err)
			}

			limit := tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.Offering{}).Select("size_limit").Where("id = ?", offering.ID)
			res := tx.Model(&models.OfferingSeat{}).
				Where("offering_id = ? AND period = ? AND occupied < (?)", offering.ID, p, limit).
				UpdateColumn("occupied", gorm.Expr("occupied + 1"))
			if res.Error != nil {
				return fmt.Errorf("reserve seat %d/%d: %w", offering.ID, p, res.Error)
			}
			if res.RowsAffected == 0 {
				return &apperr.CapacityError{OfferingID: offering.ID, Period: p, SizeLimit: offering.SizeLimit}
			}
		}
		return nil
	})
}

// Release frees one seat in each period. Counters never go below zero.
func (s *Store) Release(ctx context.Context, tx *gorm.DB, offeringID uint, periods []int) error {
	tx = tx.WithContext(ctx)
	for _, p := range periods {
		err := tx.Model(&models.OfferingSeat{}).
			Where("offering_id = ? AND period = ? AND occupied > 0", offeringID, p).
			UpdateColumn("occupied", gorm.Expr("occupied - 1")).Error
		if err != nil {
			return fmt.Errorf("release seat %d/%d: %w", offeringID, p, err)
		}
	}
	return nil
}

// RebuildAll recomputes the counters of every offering and returns how many
// were rebuilt.
func (s *Store) RebuildAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Offering{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list offerings: %w", err)
	}
	for i, id := range ids {
		if err := s.Rebuild(ctx, id); err != nil {
			return i, fmt.Errorf("rebuild offering %d: %w", id, err)
		}
	}
	return len(ids), nil
}

// Rebuild recomputes an offering's counters from its assignment rows.
func (s *Store) Rebuild(ctx context.Context, offeringID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignments []models.Assignment
		if err := tx.Where("offering_id = ?", offeringID).Find(&assignments).Error; err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		counts := map[int]int{}
		for _, a := range assignments {
			for _, p := range a.Periods {
				counts[p]++
			}
		}
		if err := tx.Where("offering_id = ?", offeringID).Delete(&models.OfferingSeat{}).Error; err != nil {
			return fmt.Errorf("clear seats: %w", err)
		}
		for p, n := range counts {
			if err := tx.Create(&models.OfferingSeat{OfferingID: offeringID, Period: p, Occupied: n}).Error; err != nil {
				return fmt.Errorf("write seat %d/%d: %w", offeringID, p, err)
			}
		}
		return nil
	})
}
