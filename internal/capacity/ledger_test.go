package capacity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/database/dbtest"
	"github.com/gdg-garage/badge-camp-api/internal/models"
)

func TestSnapshot_Empty(t *testing.T) {
	db := dbtest.New(t)
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Chess", "0.00", 0, 1, 2, 3)

	store := NewStore(db)
	snap, err := store.Snapshot(context.Background(), offering.ID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}

	want := map[string]int{"size_limit": models.DefaultSizeLimit, "total": 0, "1": 0, "2": 0, "3": 0}
	if got := snap.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := snap.SortedPeriods(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("expected sorted periods [1 2 3], got %v", got)
	}
}

func TestSnapshot_InvalidOffering(t *testing.T) {
	db := dbtest.New(t)
	_, err := NewStore(db).Snapshot(context.Background(), 999)
	if !errors.Is(err, apperr.ErrInvalidOffering) {
		t.Fatalf("expected ErrInvalidOffering, got %v", err)
	}
}

func TestReserve_FailsFastWithoutPartialSeats(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Chess", "0.00", 1, 1, 2, 3)
	store := NewStore(db)

	if err := store.Reserve(ctx, db, offering, []int{1}); err != nil {
		t.Fatalf("first Reserve returned error: %v", err)
	}

	err := store.Reserve(ctx, db, offering, []int{2, 1, 3})
	var capErr *apperr.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityError, got %v", err)
	}
	if capErr.Period != 1 || capErr.SizeLimit != 1 {
		t.Errorf("expected period 1 limit 1, got %+v", capErr)
	}

	snap, err := store.Snapshot(ctx, offering.ID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	want := map[int]int{1: 1, 2: 0, 3: 0}
	if !reflect.DeepEqual(snap.Periods, want) {
		t.Errorf("expected %v after failed reserve, got %v", want, snap.Periods)
	}
}

func TestReserve_UsesStoredSizeLimit(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Chess", "0.00", 5, 1)
	store := NewStore(db)

	// the limit is lowered after the caller read the offering
	if err := db.Model(&models.Offering{}).Where("id = ?", offering.ID).Update("size_limit", 1).Error; err != nil {
		t.Fatalf("failed to lower size limit: %v", err)
	}

	if err := store.Reserve(ctx, db, offering, []int{1}); err != nil {
		t.Fatalf("first Reserve returned error: %v", err)
	}
	err := store.Reserve(ctx, db, offering, []int{1})
	var capErr *apperr.CapacityError
	if !errors.As(err, &capErr) || capErr.Period != 1 {
		t.Fatalf("expected CapacityError on period 1, got %v", err)
	}

	snap, err := store.Snapshot(ctx, offering.ID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if snap.Periods[1] != 1 {
		t.Errorf("expected 1 seat taken, got %d", snap.Periods[1])
	}
}

func TestReserveRelease(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Archery", "0.00", 2, 1, 2)
	store := NewStore(db)

	for i := 0; i < 2; i++ {
		if err := store.Reserve(ctx, db, offering, []int{2}); err != nil {
			t.Fatalf("Reserve %d returned error: %v", i, err)
		}
	}
	if err := store.Reserve(ctx, db, offering, []int{2}); !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded on third seat, got %v", err)
	}

	if err := store.Release(ctx, db, offering.ID, []int{2}); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if err := store.Reserve(ctx, db, offering, []int{2}); err != nil {
		t.Fatalf("Reserve after release returned error: %v", err)
	}

	// Releasing more than was reserved never goes negative.
	for i := 0; i < 4; i++ {
		if err := store.Release(ctx, db, offering.ID, []int{2}); err != nil {
			t.Fatalf("Release returned error: %v", err)
		}
	}
	snap, _ := store.Snapshot(ctx, offering.ID)
	if snap.Periods[2] != 0 {
		t.Errorf("expected 0 occupied, got %d", snap.Periods[2])
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Archery", "0.00", 3, 1, 2)
	store := NewStore(db)
	if err := store.Reserve(ctx, db, offering, []int{1, 2}); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}

	first, err := store.Snapshot(ctx, offering.ID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	second, err := store.Snapshot(ctx, offering.ID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical snapshots, got %+v and %+v", first, second)
	}
}

func TestRebuild(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Archery", "0.00", 5, 1, 2, 3)
	user := dbtest.User(t, db, "leader@example.com")

	for i, periods := range [][]int{{1, 2}, {2}, {}} {
		scout := dbtest.Scout(t, db, user.ID, "Scout", time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC))
		reg := dbtest.Registration(t, db, scout.ID, ev.ID)
		a := models.Assignment{RegistrationID: reg.ID, OfferingID: offering.ID, Periods: periods, Completions: []string{}}
		if err := db.Create(&a).Error; err != nil {
			t.Fatalf("create assignment %d: %v", i, err)
		}
	}

	store := NewStore(db)
	if err := store.Rebuild(ctx, offering.ID); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}
	snap, err := store.Snapshot(ctx, offering.ID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	want := map[string]int{"size_limit": 5, "total": 3, "1": 1, "2": 2, "3": 0}
	if got := snap.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRebuildAll(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	chess := dbtest.Offering(t, db, ev.ID, "Chess", "0.00", 5, 1)
	archery := dbtest.Offering(t, db, ev.ID, "Archery", "0.00", 5, 2)
	user := dbtest.User(t, db, "leader@example.com")
	scout := dbtest.Scout(t, db, user.ID, "Scout", time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC))
	reg := dbtest.Registration(t, db, scout.ID, ev.ID)
	a := models.Assignment{RegistrationID: reg.ID, OfferingID: chess.ID, Periods: []int{1}, Completions: []string{}}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	// drifted counter with no assignment behind it
	if err := db.Create(&models.OfferingSeat{OfferingID: archery.ID, Period: 2, Occupied: 4}).Error; err != nil {
		t.Fatalf("create seat: %v", err)
	}

	store := NewStore(db)
	n, err := store.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 offerings rebuilt, got %d", n)
	}

	for _, tt := range []struct {
		offering uint
		period   int
		want     int
	}{
		{chess.ID, 1, 1},
		{archery.ID, 2, 0},
	} {
		snap, err := store.Snapshot(ctx, tt.offering)
		if err != nil {
			t.Fatalf("Snapshot returned error: %v", err)
		}
		if snap.Periods[tt.period] != tt.want {
			t.Errorf("offering %d period %d: expected %d, got %d", tt.offering, tt.period, tt.want, snap.Periods[tt.period])
		}
	}
}
