// Package dbtest provides migrated in-memory databases and fixtures for tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/gdg-garage/badge-camp-api/internal/database"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database closed at test cleanup.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Event creates an event starting on 2026-06-13.
func Event(t testing.TB, db *gorm.DB, name string) models.Event {
	t.Helper()
	ev := models.Event{
		Name:      name,
		StartDate: time.Date(2026, 6, 13, 8, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 13, 17, 0, 0, 0, time.UTC),
	}
	mustCreate(t, db, &ev)
	return ev
}

// Offering creates a badge named after the event and the offering on it.
// price is a decimal string such as "10.00"; a zero sizeLimit means the
// default.
func Offering(t testing.TB, db *gorm.DB, eventID uint, badge string, price string, sizeLimit int, periods ...int) models.Offering {
	t.Helper()
	b := models.Badge{Name: badge}
	if err := db.Where(models.Badge{Name: badge}).FirstOrCreate(&b).Error; err != nil {
		t.Fatalf("failed to create badge: %v", err)
	}
	if sizeLimit == 0 {
		sizeLimit = models.DefaultSizeLimit
	}
	o := models.Offering{
		EventID:      eventID,
		BadgeID:      b.ID,
		Duration:     len(periods),
		Periods:      periods,
		Price:        decimal.RequireFromString(price),
		Requirements: []string{},
		SizeLimit:    sizeLimit,
	}
	mustCreate(t, db, &o)
	return o
}

// Scout creates a user-owned scout born on birth.
func Scout(t testing.TB, db *gorm.DB, userID uint, name string, birth time.Time) models.Scout {
	t.Helper()
	s := models.Scout{UserID: userID, FirstName: name, LastName: "Tester", BirthDate: birth}
	mustCreate(t, db, &s)
	return s
}

// User creates a user with the given email.
func User(t testing.TB, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, Name: email, Role: "teacher"}
	mustCreate(t, db, &u)
	return u
}

// Registration enrolls a scout in an event.
func Registration(t testing.TB, db *gorm.DB, scoutID, eventID uint) models.Registration {
	t.Helper()
	r := models.Registration{ScoutID: scoutID, EventID: eventID}
	mustCreate(t, db, &r)
	return r
}

// Purchasable creates an item for an event.
func Purchasable(t testing.TB, db *gorm.DB, eventID uint, item, price string) models.Purchasable {
	t.Helper()
	p := models.Purchasable{EventID: eventID, Item: item, Price: decimal.RequireFromString(price)}
	mustCreate(t, db, &p)
	return p
}

func mustCreate(t testing.TB, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("failed to create %T: %v", v, err)
	}
}
