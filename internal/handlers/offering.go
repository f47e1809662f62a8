package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/badge-camp-api/internal/capacity"
	"github.com/gdg-garage/badge-camp-api/internal/catalog"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/shopspring/decimal"
)

type OfferingHandler struct {
	catalog *catalog.Catalog
	ledger  capacity.Ledger
}

func NewOfferingHandler(c *catalog.Catalog, ledger capacity.Ledger) *OfferingHandler {
	return &OfferingHandler{catalog: c, ledger: ledger}
}

type OfferingBody struct {
	ID           uint     `json:"id"`
	EventID      uint     `json:"event_id"`
	BadgeID      uint     `json:"badge_id"`
	Badge        string   `json:"badge"`
	Duration     int      `json:"duration"`
	Periods      []int    `json:"periods"`
	Price        string   `json:"price" example:"10.00"`
	Requirements []string `json:"requirements"`
	SizeLimit    int      `json:"size_limit"`
}

func offeringBody(o models.Offering) OfferingBody {
	return OfferingBody{
		ID:           o.ID,
		EventID:      o.EventID,
		BadgeID:      o.BadgeID,
		Badge:        o.Badge.Name,
		Duration:     o.Duration,
		Periods:      o.Periods,
		Price:        o.Price.StringFixed(2),
		Requirements: o.Requirements,
		SizeLimit:    o.SizeLimit,
	}
}

type OfferingFields struct {
	BadgeID      uint       `json:"badge_id,omitempty" doc:"Badge taught by the offering; fixed after creation"`
	Duration     int        `json:"duration" minimum:"1" doc:"Number of periods the class meets"`
	Periods      PeriodList `json:"periods" doc:"Valid periods; null entries are ignored"`
	Price        string     `json:"price,omitempty" pattern:"^[0-9]+(\\.[0-9]{1,2})?$" doc:"Price with at most 2 decimals; omitted keeps the current price on update"`
	Requirements []string   `json:"requirements,omitempty"`
	SizeLimit    *int       `json:"size_limit,omitempty" minimum:"1" doc:"Seats per period, defaults to 20"`
}

func (f OfferingFields) input() (catalog.OfferingInput, error) {
	var price *decimal.Decimal
	if f.Price != "" {
		d, err := decimal.NewFromString(f.Price)
		if err != nil {
			return catalog.OfferingInput{}, huma.Error422UnprocessableEntity("price is not a decimal")
		}
		price = &d
	}
	return catalog.OfferingInput{
		BadgeID:      f.BadgeID,
		Duration:     f.Duration,
		Periods:      f.Periods,
		Price:        price,
		Requirements: f.Requirements,
		SizeLimit:    f.SizeLimit,
	}, nil
}

// PeriodList is a period array that may contain nulls.
type PeriodList []*int

func (PeriodList) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:  huma.TypeArray,
		Items: &huma.Schema{Type: huma.TypeInteger, Nullable: true},
	}
}

type EventPath struct {
	EventID uint `path:"eventID" minimum:"1"`
}

type OfferingPath struct {
	EventID    uint `path:"eventID" minimum:"1"`
	OfferingID uint `path:"offeringID" minimum:"1"`
}

type CreateOfferingRequest struct {
	EventPath
	Body OfferingFields
}

type UpdateOfferingRequest struct {
	OfferingPath
	Body OfferingFields
}

type OfferingResponse struct {
	Body OfferingBody
}

type ListOfferingsResponse struct {
	Body []OfferingBody
}

type CapacityResponse struct {
	Body map[string]int
}

func (h *OfferingHandler) HandleList(ctx context.Context, input *EventPath) (*ListOfferingsResponse, error) {
	view, err := h.catalog.ForEvent(ctx, input.EventID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	resp := &ListOfferingsResponse{Body: make([]OfferingBody, 0, view.Len())}
	for _, o := range view.All() {
		resp.Body = append(resp.Body, offeringBody(o))
	}
	return resp, nil
}

func (h *OfferingHandler) HandleCreate(ctx context.Context, input *CreateOfferingRequest) (*OfferingResponse, error) {
	if input.Body.BadgeID == 0 {
		return nil, huma.Error422UnprocessableEntity("badge_id is required")
	}
	in, err := input.Body.input()
	if err != nil {
		return nil, err
	}
	o, err := h.catalog.Create(ctx, input.EventID, in)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &OfferingResponse{Body: offeringBody(*o)}, nil
}

func (h *OfferingHandler) HandleUpdate(ctx context.Context, input *UpdateOfferingRequest) (*OfferingResponse, error) {
	in, err := input.Body.input()
	if err != nil {
		return nil, err
	}
	o, err := h.catalog.Update(ctx, input.EventID, input.OfferingID, in)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &OfferingResponse{Body: offeringBody(*o)}, nil
}

// HandleCapacity returns {"size_limit", "total", "<period>": count}.
func (h *OfferingHandler) HandleCapacity(ctx context.Context, input *OfferingPath) (*CapacityResponse, error) {
	view, err := h.catalog.ForEvent(ctx, input.EventID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	if _, err := view.Get(input.OfferingID); err != nil {
		return nil, toHTTPError(err)
	}
	snap, err := h.ledger.Snapshot(ctx, input.OfferingID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &CapacityResponse{Body: snap.Fields()}, nil
}
