package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/gdg-garage/badge-camp-api/internal/apperr"
	"github.com/gdg-garage/badge-camp-api/internal/assignment"
	"github.com/gdg-garage/badge-camp-api/internal/auth"
	"github.com/gdg-garage/badge-camp-api/internal/capacity"
	"github.com/gdg-garage/badge-camp-api/internal/catalog"
	"github.com/gdg-garage/badge-camp-api/internal/config"
	"github.com/gdg-garage/badge-camp-api/internal/database/dbtest"
	"github.com/gdg-garage/badge-camp-api/internal/enrollment"
	"github.com/gdg-garage/badge-camp-api/internal/logging"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/gdg-garage/badge-camp-api/internal/notifier"
	"github.com/gdg-garage/badge-camp-api/internal/preference"
	"github.com/gdg-garage/badge-camp-api/internal/pricing"
	"github.com/gdg-garage/badge-camp-api/internal/purchase"
	"gorm.io/gorm"
)

type testServer struct {
	api   humatest.TestAPI
	db    *gorm.DB
	token string
	event models.Event
	user  models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.New(t)
	logger := logging.Discard()
	ledger := capacity.NewStore(db)
	manager := assignment.NewManager(db, ledger, notifier.LogNotifier{Logger: logger}, logger)
	authHandler := auth.NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db)

	_, api := humatest.New(t, APIConfig())
	api.UseMiddleware(authHandler.Middleware(api))
	RegisterOperations(api, Handlers{
		Auth:         authHandler,
		Offering:     NewOfferingHandler(catalog.New(db, 0), ledger),
		Registration: NewRegistrationHandler(enrollment.NewService(db, manager, logger)),
		Assignment:   NewAssignmentHandler(manager),
		Preference:   NewPreferenceHandler(preference.NewSet(db)),
		Purchase:     NewPurchaseHandler(purchase.NewSet(db)),
		Pricing:      NewPricingHandler(pricing.NewEngine(db)),
	})

	user := dbtest.User(t, db, "leader@example.com")
	token, err := authHandler.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	return &testServer{
		api:   api,
		db:    db,
		token: "Authorization: Bearer " + token,
		event: dbtest.Event(t, db, "Spring MBU"),
		user:  user,
	}
}

func (s *testServer) enroll(t *testing.T, name string) models.Registration {
	t.Helper()
	scout := dbtest.Scout(t, s.db, s.user.ID, name, time.Date(2013, 5, 2, 0, 0, 0, 0, time.UTC))
	resp := s.api.Post(fmt.Sprintf("/events/%d/scouts/%d/registration", s.event.ID, scout.ID), s.token)
	if resp.Code != http.StatusCreated {
		t.Fatalf("enroll: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var reg models.Registration
	decode(t, resp.Body.Bytes(), &reg)
	return reg
}

func decode(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
}

func TestEnroll_Idempotent(t *testing.T) {
	s := newTestServer(t)
	scout := dbtest.Scout(t, s.db, s.user.ID, "A", time.Date(2013, 5, 2, 0, 0, 0, 0, time.UTC))
	path := fmt.Sprintf("/events/%d/scouts/%d/registration", s.event.ID, scout.ID)

	first := s.api.Post(path, s.token, map[string]any{"notes": "vegetarian"})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := s.api.Post(path, s.token)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on re-enroll, got %d: %s", second.Code, second.Body.String())
	}

	var count int64
	s.db.Model(&models.Registration{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 registration in DB, got %d", count)
	}

	if resp := s.api.Post(fmt.Sprintf("/events/%d/scouts/999/registration", s.event.ID), s.token); resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown scout, got %d", resp.Code)
	}
	if resp := s.api.Post(path); resp.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.Code)
	}
}

func TestAssignments_CapacityScenario(t *testing.T) {
	s := newTestServer(t)
	offering := dbtest.Offering(t, s.db, s.event.ID, "Chess", "0.00", 1, 1, 2, 3)
	a := s.enroll(t, "A")
	b := s.enroll(t, "B")

	resp := s.api.Post(fmt.Sprintf("/registrations/%d/assignments", a.ID), s.token,
		map[string]any{"offering_id": offering.ID, "periods": []int{1}})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = s.api.Get(fmt.Sprintf("/events/%d/offerings/%d/capacity", s.event.ID, offering.ID), s.token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var snap map[string]int
	decode(t, resp.Body.Bytes(), &snap)
	want := map[string]int{"size_limit": 1, "total": 1, "1": 1, "2": 0, "3": 0}
	for k, v := range want {
		if snap[k] != v {
			t.Errorf("capacity[%q]: expected %d, got %d (%v)", k, v, snap[k], snap)
		}
	}

	resp = s.api.Post(fmt.Sprintf("/registrations/%d/assignments", b.ID), s.token,
		map[string]any{"offering_id": offering.ID, "periods": []int{1}})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a full period, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "period 1") {
		t.Errorf("expected the full period in the error, got %s", resp.Body.String())
	}

	resp = s.api.Post(fmt.Sprintf("/registrations/%d/assignments", b.ID), s.token,
		map[string]any{"offering_id": offering.ID, "periods": []int{2}})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a free period, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAssignments_ReplaceAndHistory(t *testing.T) {
	s := newTestServer(t)
	chess := dbtest.Offering(t, s.db, s.event.ID, "Chess", "5.00", 0, 1, 2)
	archery := dbtest.Offering(t, s.db, s.event.ID, "Archery", "0.00", 0, 2, 3)
	reg := s.enroll(t, "A")
	path := fmt.Sprintf("/registrations/%d/assignments", reg.ID)

	resp := s.api.Put(path, s.token, map[string]any{"assignments": []map[string]any{
		{"offering_id": chess.ID, "periods": []int{1, 2}},
		{"offering_id": archery.ID, "periods": []int{2}},
	}})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlapping periods, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = s.api.Put(path, s.token, map[string]any{"assignments": []map[string]any{
		{"offering_id": chess.ID, "periods": []int{1}},
		{"offering_id": archery.ID, "periods": []int{2, 3}},
	}})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = s.api.Put(fmt.Sprintf("%s/%d", path, chess.ID), s.token,
		map[string]any{"periods": []int{1}, "completions": []string{"1a"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated models.Assignment
	decode(t, resp.Body.Bytes(), &updated)
	if len(updated.Completions) != 1 || updated.Completions[0] != "1a" {
		t.Errorf("unexpected completions %v", updated.Completions)
	}

	if resp := s.api.Delete(fmt.Sprintf("%s/%d", path, archery.ID), s.token); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = s.api.Get(path, s.token)
	var list []models.Assignment
	decode(t, resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].OfferingID != chess.ID {
		t.Errorf("unexpected assignments %+v", list)
	}

	resp = s.api.Get(path+"/history", s.token)
	var history []models.AssignmentHistory
	decode(t, resp.Body.Bytes(), &history)
	if len(history) == 0 || history[0].Action != models.ActionDeleted {
		t.Errorf("expected newest history entry to be a delete, got %+v", history)
	}
}

func TestStrictBodies(t *testing.T) {
	s := newTestServer(t)
	offering := dbtest.Offering(t, s.db, s.event.ID, "Chess", "0.00", 0, 1)
	reg := s.enroll(t, "A")

	resp := s.api.Post(fmt.Sprintf("/registrations/%d/assignments", reg.ID), s.token,
		map[string]any{"offering_id": offering.ID, "periods": []int{1}, "seat": 4})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unknown field, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = s.api.Post(fmt.Sprintf("/registrations/%d/preferences", reg.ID), s.token,
		map[string]any{"offering_id": offering.ID, "rank": 9})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an out of range rank, got %d: %s", resp.Code, resp.Body.String())
	}

	var count int64
	s.db.Model(&models.Assignment{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected requests must not write, found %d assignments", count)
	}
}

func TestOfferings(t *testing.T) {
	s := newTestServer(t)
	badge := models.Badge{Name: "Chess"}
	s.db.Create(&badge)
	path := fmt.Sprintf("/events/%d/offerings", s.event.ID)

	resp := s.api.Post(path, s.token, map[string]any{
		"badge_id": badge.ID,
		"duration": 2,
		"periods":  []any{1, nil, 3},
		"price":    "10.5",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created OfferingBody
	decode(t, resp.Body.Bytes(), &created)
	if created.Price != "10.50" || created.SizeLimit != models.DefaultSizeLimit || len(created.Periods) != 2 || created.Badge != "Chess" {
		t.Errorf("unexpected offering %+v", created)
	}

	resp = s.api.Put(fmt.Sprintf("%s/%d", path, created.ID), s.token, map[string]any{
		"duration": 2,
		"periods":  []int{1, 2},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated OfferingBody
	decode(t, resp.Body.Bytes(), &updated)
	if updated.Price != "10.50" || updated.Badge != "Chess" {
		t.Errorf("expected price and badge to survive an update without them, got %+v", updated)
	}

	resp = s.api.Put(fmt.Sprintf("%s/%d", path, created.ID), s.token, map[string]any{
		"duration": 3,
		"periods":  []int{1, 3},
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for duration mismatch, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = s.api.Get(path, s.token)
	var list []OfferingBody
	decode(t, resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Badge != "Chess" {
		t.Errorf("unexpected offerings %+v", list)
	}
}

func TestCostsAndPurchases(t *testing.T) {
	s := newTestServer(t)
	chess := dbtest.Offering(t, s.db, s.event.ID, "Chess", "10.00", 0, 1)
	archery := dbtest.Offering(t, s.db, s.event.ID, "Archery", "0.00", 0, 2)
	reg := s.enroll(t, "A")

	resp := s.api.Post(fmt.Sprintf("/events/%d/purchasables", s.event.ID), s.token,
		map[string]any{"item": "Lunch", "price": "9.25"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var lunch PurchasableBody
	decode(t, resp.Body.Bytes(), &lunch)
	shirt := dbtest.Purchasable(t, s.db, s.event.ID, "T-shirt", "12.00")

	resp = s.api.Put(fmt.Sprintf("/registrations/%d/preferences", reg.ID), s.token, map[string]any{
		"preferences": []map[string]any{
			{"offering_id": chess.ID, "rank": 1},
			{"offering_id": archery.ID, "rank": 2},
		},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	for _, p := range []map[string]any{
		{"purchasable_id": lunch.ID, "quantity": 3},
		{"purchasable_id": shirt.ID, "quantity": 1},
	} {
		if resp := s.api.Post(fmt.Sprintf("/registrations/%d/purchases", reg.ID), s.token, p); resp.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
		}
	}
	if resp := s.api.Post(fmt.Sprintf("/registrations/%d/purchases", reg.ID), s.token,
		map[string]any{"purchasable_id": shirt.ID, "quantity": 2}); resp.Code != http.StatusConflict {
		t.Errorf("expected 409 for a duplicate purchase, got %d", resp.Code)
	}

	costs := []struct {
		path string
		want string
	}{
		{fmt.Sprintf("/registrations/%d/projected_cost", reg.ID), `{"cost":"49.75"}`},
		{fmt.Sprintf("/events/%d/scouts/%d/projected_cost", s.event.ID, reg.ScoutID), `{"cost":"49.75"}`},
		{fmt.Sprintf("/events/%d/scouts/%d/actual_cost", s.event.ID, reg.ScoutID), `{"cost":"39.75"}`},
		{fmt.Sprintf("/events/%d/users/%d/projected_cost", s.event.ID, s.user.ID), `{"cost":"49.75"}`},
		{fmt.Sprintf("/events/%d/projected_income", s.event.ID), `{"income":"49.75"}`},
		{fmt.Sprintf("/events/%d/actual_income", s.event.ID), `{"income":"39.75"}`},
	}
	for _, c := range costs {
		t.Run(c.path, func(t *testing.T) {
			resp := s.api.Get(c.path, s.token)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
			}
			var got, want map[string]string
			decode(t, resp.Body.Bytes(), &got)
			decode(t, []byte(c.want), &want)
			for k, v := range want {
				if got[k] != v {
					t.Errorf("expected %s, got %s", c.want, resp.Body.String())
				}
			}
		})
	}

	if resp := s.api.Get(fmt.Sprintf("/events/%d/users/999/projected_cost", s.event.ID), s.token); resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown user, got %d", resp.Code)
	}

	if resp := s.api.Delete(fmt.Sprintf("/events/%d/purchasables/%d", s.event.ID, lunch.ID), s.token); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.Code, resp.Body.String())
	}
	resp = s.api.Get(fmt.Sprintf("/registrations/%d/purchases", reg.ID), s.token)
	var purchases []models.Purchase
	decode(t, resp.Body.Bytes(), &purchases)
	if len(purchases) != 1 || purchases[0].PurchasableID != shirt.ID {
		t.Errorf("expected the lunch purchase to cascade away, got %+v", purchases)
	}

	if resp := s.api.Delete(fmt.Sprintf("/registrations/%d", reg.ID), s.token); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on unenroll, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := s.api.Get(fmt.Sprintf("/registrations/%d/projected_cost", reg.ID), s.token); resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 after unenroll, got %d", resp.Code)
	}
}

func TestPurchases_Defaults(t *testing.T) {
	s := newTestServer(t)
	reg := s.enroll(t, "A")
	lunch := dbtest.Purchasable(t, s.db, s.event.ID, "Lunch", "9.25")

	resp := s.api.Post(fmt.Sprintf("/registrations/%d/purchases", reg.ID), s.token,
		map[string]any{"purchasable_id": lunch.ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 without quantity, got %d: %s", resp.Code, resp.Body.String())
	}
	var p models.Purchase
	decode(t, resp.Body.Bytes(), &p)
	if p.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", p.Quantity)
	}

	resp = s.api.Put(fmt.Sprintf("/events/%d/purchasables/%d", s.event.ID, lunch.ID), s.token,
		map[string]any{"item": "Hot lunch"})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for an update without price, got %d: %s", resp.Code, resp.Body.String())
	}
	var stored models.Purchasable
	s.db.First(&stored, lunch.ID)
	if stored.Price.StringFixed(2) != "9.25" {
		t.Errorf("expected price to stay 9.25, got %s", stored.Price.StringFixed(2))
	}
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Capacity", fmt.Errorf("items[0]: %w", &apperr.CapacityError{OfferingID: 1, Period: 2, SizeLimit: 1}), http.StatusConflict},
		{"Conflict", &apperr.PeriodConflictError{Period: 1, OfferingID: 3}, http.StatusConflict},
		{"Exists", fmt.Errorf("%w: again", apperr.ErrAlreadyExists), http.StatusConflict},
		{"Field", apperr.Field(apperr.ErrInvalidOffering, "price", "negative"), http.StatusUnprocessableEntity},
		{"NotFound", apperr.ErrInvalidRegistration, http.StatusNotFound},
		{"Rank", apperr.ErrInvalidRank, http.StatusUnprocessableEntity},
		{"Age", apperr.ErrIneligibleAge, http.StatusUnprocessableEntity},
		{"Unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se huma.StatusError
			if !errors.As(toHTTPError(tt.err), &se) {
				t.Fatalf("expected a huma status error")
			}
			if se.GetStatus() != tt.want {
				t.Errorf("expected %d, got %d", tt.want, se.GetStatus())
			}
		})
	}
	if toHTTPError(nil) != nil {
		t.Error("expected nil for nil")
	}
}
