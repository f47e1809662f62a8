package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/badge-camp-api/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Auth         *auth.AuthHandler
	Offering     *OfferingHandler
	Registration *RegistrationHandler
	Assignment   *AssignmentHandler
	Preference   *PreferenceHandler
	Purchase     *PurchaseHandler
	Pricing      *PricingHandler
}

// APIConfig is the huma configuration shared by the server and tests.
func APIConfig() huma.Config {
	config := huma.DefaultConfig("Badge Camp API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
	}
	return config
}

func RegisterRoutes(r *chi.Mux, h Handlers, logger *slog.Logger, enableCORS bool) huma.API {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if enableCORS {
		r.Use(cors)
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	api := humachi.New(r, APIConfig())
	api.UseMiddleware(h.Auth.Middleware(api))
	RegisterOperations(api, h)

	logger.Info("routes registered", "paths", len(api.OpenAPI().Paths))
	return api
}

// RegisterOperations adds every operation to api. All of them require a
// token.
func RegisterOperations(api huma.API, h Handlers) {
	protected := func(o *huma.Operation) {
		o.Security = []map[string][]string{{"bearerAuth": {}}, {"cookieAuth": {}}}
	}
	op := func(id, method, path, tag string, status ...int) huma.Operation {
		o := huma.Operation{OperationID: id, Method: method, Path: path, Tags: []string{tag}}
		if len(status) > 0 {
			o.DefaultStatus = status[0]
		}
		protected(&o)
		return o
	}

	huma.Get(api, "/me", h.Auth.HandleMe, protected)

	// Offerings
	huma.Register(api, op("list-offerings", http.MethodGet, "/events/{eventID}/offerings", "offerings"), h.Offering.HandleList)
	huma.Register(api, op("create-offering", http.MethodPost, "/events/{eventID}/offerings", "offerings", http.StatusCreated), h.Offering.HandleCreate)
	huma.Register(api, op("update-offering", http.MethodPut, "/events/{eventID}/offerings/{offeringID}", "offerings"), h.Offering.HandleUpdate)
	huma.Register(api, op("offering-capacity", http.MethodGet, "/events/{eventID}/offerings/{offeringID}/capacity", "offerings"), h.Offering.HandleCapacity)

	// Registrations
	huma.Register(api, op("enroll", http.MethodPost, "/events/{eventID}/scouts/{scoutID}/registration", "registrations"), h.Registration.HandleEnroll)
	huma.Register(api, op("list-registrations", http.MethodGet, "/events/{eventID}/registrations", "registrations"), h.Registration.HandleList)
	huma.Register(api, op("get-registration", http.MethodGet, "/registrations/{registrationID}", "registrations"), h.Registration.HandleGet)
	huma.Register(api, op("unenroll", http.MethodDelete, "/registrations/{registrationID}", "registrations"), h.Registration.HandleUnenroll)

	// Assignments
	huma.Register(api, op("list-assignments", http.MethodGet, "/registrations/{registrationID}/assignments", "assignments"), h.Assignment.HandleList)
	huma.Register(api, op("assign", http.MethodPost, "/registrations/{registrationID}/assignments", "assignments", http.StatusCreated), h.Assignment.HandleCreate)
	huma.Register(api, op("replace-assignments", http.MethodPut, "/registrations/{registrationID}/assignments", "assignments"), h.Assignment.HandleReplace)
	huma.Register(api, op("assignment-history", http.MethodGet, "/registrations/{registrationID}/assignments/history", "assignments"), h.Assignment.HandleHistory)
	huma.Register(api, op("update-assignment", http.MethodPut, "/registrations/{registrationID}/assignments/{offeringID}", "assignments"), h.Assignment.HandleUpdate)
	huma.Register(api, op("delete-assignment", http.MethodDelete, "/registrations/{registrationID}/assignments/{offeringID}", "assignments"), h.Assignment.HandleDelete)

	// Preferences
	huma.Register(api, op("list-preferences", http.MethodGet, "/registrations/{registrationID}/preferences", "preferences"), h.Preference.HandleList)
	huma.Register(api, op("set-preference", http.MethodPost, "/registrations/{registrationID}/preferences", "preferences"), h.Preference.HandleSet)
	huma.Register(api, op("replace-preferences", http.MethodPut, "/registrations/{registrationID}/preferences", "preferences"), h.Preference.HandleReplace)
	huma.Register(api, op("delete-preference", http.MethodDelete, "/registrations/{registrationID}/preferences/{offeringID}", "preferences"), h.Preference.HandleDelete)

	// Purchasables and purchases
	huma.Register(api, op("list-purchasables", http.MethodGet, "/events/{eventID}/purchasables", "purchases"), h.Purchase.HandleListPurchasables)
	huma.Register(api, op("create-purchasable", http.MethodPost, "/events/{eventID}/purchasables", "purchases", http.StatusCreated), h.Purchase.HandleCreatePurchasable)
	huma.Register(api, op("update-purchasable", http.MethodPut, "/events/{eventID}/purchasables/{purchasableID}", "purchases"), h.Purchase.HandleUpdatePurchasable)
	huma.Register(api, op("delete-purchasable", http.MethodDelete, "/events/{eventID}/purchasables/{purchasableID}", "purchases"), h.Purchase.HandleDeletePurchasable)
	huma.Register(api, op("list-purchases", http.MethodGet, "/registrations/{registrationID}/purchases", "purchases"), h.Purchase.HandleList)
	huma.Register(api, op("create-purchase", http.MethodPost, "/registrations/{registrationID}/purchases", "purchases", http.StatusCreated), h.Purchase.HandleCreate)
	huma.Register(api, op("update-purchase", http.MethodPut, "/registrations/{registrationID}/purchases/{purchasableID}", "purchases"), h.Purchase.HandleUpdate)
	huma.Register(api, op("delete-purchase", http.MethodDelete, "/registrations/{registrationID}/purchases/{purchasableID}", "purchases"), h.Purchase.HandleDelete)

	// Costs and income
	huma.Register(api, op("registration-projected-cost", http.MethodGet, "/registrations/{registrationID}/projected_cost", "pricing"), h.Pricing.HandleRegistrationProjectedCost)
	huma.Register(api, op("registration-actual-cost", http.MethodGet, "/registrations/{registrationID}/actual_cost", "pricing"), h.Pricing.HandleRegistrationActualCost)
	huma.Register(api, op("scout-projected-cost", http.MethodGet, "/events/{eventID}/scouts/{scoutID}/projected_cost", "pricing"), h.Pricing.HandleScoutProjectedCost)
	huma.Register(api, op("scout-actual-cost", http.MethodGet, "/events/{eventID}/scouts/{scoutID}/actual_cost", "pricing"), h.Pricing.HandleScoutActualCost)
	huma.Register(api, op("troop-projected-cost", http.MethodGet, "/events/{eventID}/users/{userID}/projected_cost", "pricing"), h.Pricing.HandleTroopProjectedCost)
	huma.Register(api, op("troop-actual-cost", http.MethodGet, "/events/{eventID}/users/{userID}/actual_cost", "pricing"), h.Pricing.HandleTroopActualCost)
	huma.Register(api, op("projected-income", http.MethodGet, "/events/{eventID}/projected_income", "pricing"), h.Pricing.HandleProjectedIncome)
	huma.Register(api, op("actual-income", http.MethodGet, "/events/{eventID}/actual_income", "pricing"), h.Pricing.HandleActualIncome)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
