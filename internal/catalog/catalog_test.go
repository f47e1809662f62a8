package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/capacity"
	"github.com/gdg-garage/badge-camp-api/internal/database/dbtest"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizePeriods(t *testing.T) {
	got := NormalizePeriods([]*int{ptr(3), nil, ptr(1), ptr(3), nil})
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("expected [1 3], got %v", got)
	}
	if got := NormalizePeriods(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   OfferingInput
		want error
	}{
		{"NullsDropped", OfferingInput{Duration: 2, Periods: []*int{ptr(1), nil, ptr(2)}}, nil},
		{"DurationMismatch", OfferingInput{Duration: 3, Periods: []*int{ptr(1), nil, ptr(2)}}, apperr.ErrInvalidDuration},
		{"DuplicatesCountOnce", OfferingInput{Duration: 2, Periods: []*int{ptr(1), ptr(1)}}, apperr.ErrInvalidDuration},
		{"ZeroDuration", OfferingInput{Duration: 0}, apperr.ErrInvalidDuration},
		{"NonPositivePeriod", OfferingInput{Duration: 1, Periods: []*int{ptr(0)}}, apperr.ErrInvalidPeriod},
		{"NegativePrice", OfferingInput{Duration: 1, Periods: []*int{ptr(1)}, Price: ptr(decimal.RequireFromString("-1"))}, apperr.ErrInvalidOffering},
		{"SubCentPrice", OfferingInput{Duration: 1, Periods: []*int{ptr(1)}, Price: ptr(decimal.RequireFromString("1.005"))}, apperr.ErrInvalidOffering},
		{"TrailingZeroPrice", OfferingInput{Duration: 1, Periods: []*int{ptr(1)}, Price: ptr(decimal.RequireFromString("1.500"))}, nil},
		{"ZeroSizeLimit", OfferingInput{Duration: 1, Periods: []*int{ptr(1)}, SizeLimit: ptr(0)}, apperr.ErrInvalidOffering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.in)
			if tt.want == nil && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	badge := models.Badge{Name: "Chess"}
	db.Create(&badge)

	c := New(db, 15)
	o, err := c.Create(ctx, ev.ID, OfferingInput{
		BadgeID:  badge.ID,
		Duration: 2,
		Periods:  []*int{ptr(2), nil, ptr(1)},
		Price:    ptr(decimal.RequireFromString("10")),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if o.SizeLimit != 15 || !reflect.DeepEqual(o.Periods, []int{1, 2}) {
		t.Errorf("unexpected offering %+v", o)
	}
	if o.Price.StringFixed(2) != "10.00" {
		t.Errorf("expected price 10.00, got %s", o.Price.StringFixed(2))
	}
	if o.Badge.Name != "Chess" {
		t.Errorf("expected badge Chess, got %q", o.Badge.Name)
	}

	var stored models.Offering
	if err := db.First(&stored, o.ID).Error; err != nil {
		t.Fatalf("failed to load offering: %v", err)
	}
	if !reflect.DeepEqual(stored.Periods, []int{1, 2}) || stored.Requirements == nil {
		t.Errorf("unexpected stored offering %+v", stored)
	}

	_, err = c.Create(ctx, ev.ID, OfferingInput{BadgeID: badge.ID, Duration: 1, Periods: []*int{ptr(1)}})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	_, err = c.Create(ctx, 999, OfferingInput{BadgeID: badge.ID, Duration: 1, Periods: []*int{ptr(1)}})
	if !errors.Is(err, apperr.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
	_, err = c.Create(ctx, ev.ID, OfferingInput{BadgeID: 999, Duration: 1, Periods: []*int{ptr(1)}})
	if !errors.Is(err, apperr.ErrInvalidBadge) {
		t.Errorf("expected ErrInvalidBadge, got %v", err)
	}
}

func TestUpdate_GuardsOccupiedSeats(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Chess", "5.00", 3, 1, 2)
	ledger := capacity.NewStore(db)
	if err := ledger.Reserve(ctx, db, offering, []int{2}); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if err := ledger.Reserve(ctx, db, offering, []int{2}); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}

	c := New(db, 0)

	_, err := c.Update(ctx, ev.ID, offering.ID, OfferingInput{Duration: 1, Periods: []*int{ptr(1)}})
	if !errors.Is(err, apperr.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod when dropping occupied period, got %v", err)
	}
	_, err = c.Update(ctx, ev.ID, offering.ID, OfferingInput{Duration: 2, Periods: []*int{ptr(1), ptr(2)}, SizeLimit: ptr(1)})
	if !errors.Is(err, apperr.ErrInvalidOffering) {
		t.Errorf("expected ErrInvalidOffering when shrinking below occupancy, got %v", err)
	}
	other := dbtest.Event(t, db, "Fall MBU")
	_, err = c.Update(ctx, other.ID, offering.ID, OfferingInput{Duration: 1, Periods: []*int{ptr(2)}})
	if !errors.Is(err, apperr.ErrInvalidOffering) {
		t.Errorf("expected ErrInvalidOffering for wrong event, got %v", err)
	}

	updated, err := c.Update(ctx, ev.ID, offering.ID, OfferingInput{
		Duration:     2,
		Periods:      []*int{ptr(2), ptr(3)},
		Price:        ptr(decimal.RequireFromString("7.5")),
		Requirements: []string{"1a", "1b"},
		SizeLimit:    ptr(2),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !reflect.DeepEqual(updated.Periods, []int{2, 3}) || updated.SizeLimit != 2 || updated.Price.StringFixed(2) != "7.50" {
		t.Errorf("unexpected offering %+v", updated)
	}
}

func TestUpdate_OmittedFieldsKeepValues(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	offering := dbtest.Offering(t, db, ev.ID, "Chess", "10.00", 4, 1)

	updated, err := New(db, 0).Update(ctx, ev.ID, offering.ID, OfferingInput{
		Duration: 2,
		Periods:  []*int{ptr(1), ptr(2)},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Price.StringFixed(2) != "10.00" {
		t.Errorf("expected price to stay 10.00, got %s", updated.Price.StringFixed(2))
	}
	if updated.SizeLimit != 4 {
		t.Errorf("expected size limit to stay 4, got %d", updated.SizeLimit)
	}
	if updated.Badge.Name != "Chess" {
		t.Errorf("expected badge Chess, got %q", updated.Badge.Name)
	}

	free, err := New(db, 0).Update(ctx, ev.ID, offering.ID, OfferingInput{
		Duration: 2,
		Periods:  []*int{ptr(1), ptr(2)},
		Price:    ptr(decimal.Zero),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !free.Price.IsZero() {
		t.Errorf("expected explicit zero price, got %s", free.Price.StringFixed(2))
	}
}

func TestView(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ev := dbtest.Event(t, db, "Spring MBU")
	first := dbtest.Offering(t, db, ev.ID, "Chess", "1.00", 0, 1)
	second := dbtest.Offering(t, db, ev.ID, "Archery", "2.00", 0, 2)
	other := dbtest.Event(t, db, "Fall MBU")
	foreign := dbtest.Offering(t, db, other.ID, "Cooking", "3.00", 0, 1)

	v, err := New(db, 0).ForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ForEvent returned error: %v", err)
	}
	all := v.All()
	if v.Len() != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("expected offerings in creation order, got %+v", all)
	}
	if all[0].Badge.Name != "Chess" {
		t.Errorf("expected badge preloaded, got %+v", all[0].Badge)
	}
	if _, err := v.Get(foreign.ID); !errors.Is(err, apperr.ErrInvalidOffering) {
		t.Errorf("expected ErrInvalidOffering for foreign offering, got %v", err)
	}

	if _, err := New(db, 0).ForEvent(ctx, 999); !errors.Is(err, apperr.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}
