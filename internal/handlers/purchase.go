package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/gdg-garage/badge-camp-api/internal/purchase"
	"github.com/shopspring/decimal"
)

type PurchaseHandler struct {
	set *purchase.Set
}

func NewPurchaseHandler(set *purchase.Set) *PurchaseHandler {
	return &PurchaseHandler{set: set}
}

type PurchasableBody struct {
	ID          uint   `json:"id"`
	EventID     uint   `json:"event_id"`
	Item        string `json:"item"`
	Description string `json:"description"`
	Price       string `json:"price" example:"12.00"`
	MinimumAge  *int   `json:"minimum_age,omitempty"`
	MaximumAge  *int   `json:"maximum_age,omitempty"`
	HasSize     bool   `json:"has_size"`
}

func purchasableBody(p models.Purchasable) PurchasableBody {
	return PurchasableBody{
		ID:          p.ID,
		EventID:     p.EventID,
		Item:        p.Item,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		MinimumAge:  p.MinimumAge,
		MaximumAge:  p.MaximumAge,
		HasSize:     p.HasSize,
	}
}

type PurchasableFields struct {
	Item        string `json:"item" minLength:"1"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty" pattern:"^[0-9]+(\\.[0-9]{1,2})?$"`
	MinimumAge  *int   `json:"minimum_age,omitempty" minimum:"0"`
	MaximumAge  *int   `json:"maximum_age,omitempty" minimum:"0"`
	HasSize     bool   `json:"has_size,omitempty"`
}

func (f PurchasableFields) input() (purchase.PurchasableInput, error) {
	price := decimal.Zero
	if f.Price != "" {
		var err error
		if price, err = decimal.NewFromString(f.Price); err != nil {
			return purchase.PurchasableInput{}, huma.Error422UnprocessableEntity("price is not a decimal")
		}
	}
	return purchase.PurchasableInput{
		Item:        f.Item,
		Description: f.Description,
		Price:       price,
		MinimumAge:  f.MinimumAge,
		MaximumAge:  f.MaximumAge,
		HasSize:     f.HasSize,
	}, nil
}

type PurchasablePath struct {
	EventID       uint `path:"eventID" minimum:"1"`
	PurchasableID uint `path:"purchasableID" minimum:"1"`
}

type RegistrationPurchasablePath struct {
	RegistrationID uint `path:"registrationID" minimum:"1"`
	PurchasableID  uint `path:"purchasableID" minimum:"1"`
}

type CreatePurchasableRequest struct {
	EventPath
	Body PurchasableFields
}

type UpdatePurchasableRequest struct {
	PurchasablePath
	Body PurchasableFields
}

type PurchasableResponse struct {
	Body PurchasableBody
}

type PurchasablesResponse struct {
	Body []PurchasableBody
}

type PurchaseFields struct {
	Quantity int     `json:"quantity,omitempty" minimum:"0" doc:"Defaults to 0"`
	Size     *string `json:"size,omitempty" doc:"Only for items that come in sizes"`
}

type CreatePurchaseRequest struct {
	RegistrationPath
	Body struct {
		PurchasableID uint `json:"purchasable_id" minimum:"1"`
		PurchaseFields
	}
}

type UpdatePurchaseRequest struct {
	RegistrationPurchasablePath
	Body PurchaseFields
}

type PurchaseResponse struct {
	Body models.Purchase
}

type PurchasesResponse struct {
	Body []models.Purchase
}

func (h *PurchaseHandler) HandleListPurchasables(ctx context.Context, input *EventPath) (*PurchasablesResponse, error) {
	items, err := h.set.ListPurchasables(ctx, input.EventID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	resp := &PurchasablesResponse{Body: make([]PurchasableBody, 0, len(items))}
	for _, p := range items {
		resp.Body = append(resp.Body, purchasableBody(p))
	}
	return resp, nil
}

func (h *PurchaseHandler) HandleCreatePurchasable(ctx context.Context, input *CreatePurchasableRequest) (*PurchasableResponse, error) {
	in, err := input.Body.input()
	if err != nil {
		return nil, err
	}
	p, err := h.set.CreatePurchasable(ctx, input.EventID, in)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PurchasableResponse{Body: purchasableBody(*p)}, nil
}

// HandleUpdatePurchasable replaces every field of the item, so the price
// must be sent.
func (h *PurchaseHandler) HandleUpdatePurchasable(ctx context.Context, input *UpdatePurchasableRequest) (*PurchasableResponse, error) {
	if input.Body.Price == "" {
		return nil, huma.Error422UnprocessableEntity("price is required", &huma.ErrorDetail{
			Message:  "is required",
			Location: "body.price",
		})
	}
	in, err := input.Body.input()
	if err != nil {
		return nil, err
	}
	p, err := h.set.UpdatePurchasable(ctx, input.EventID, input.PurchasableID, in)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PurchasableResponse{Body: purchasableBody(*p)}, nil
}

// HandleDeletePurchasable also removes every purchase of the item.
func (h *PurchaseHandler) HandleDeletePurchasable(ctx context.Context, input *PurchasablePath) (*struct{}, error) {
	if err := h.set.DeletePurchasable(ctx, input.EventID, input.PurchasableID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

func (h *PurchaseHandler) HandleList(ctx context.Context, input *RegistrationPath) (*PurchasesResponse, error) {
	purchases, err := h.set.List(ctx, input.RegistrationID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PurchasesResponse{Body: purchases}, nil
}

func (h *PurchaseHandler) HandleCreate(ctx context.Context, input *CreatePurchaseRequest) (*PurchaseResponse, error) {
	p, err := h.set.Create(ctx, input.RegistrationID, input.Body.PurchasableID, input.Body.Quantity, input.Body.Size)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PurchaseResponse{Body: *p}, nil
}

func (h *PurchaseHandler) HandleUpdate(ctx context.Context, input *UpdatePurchaseRequest) (*PurchaseResponse, error) {
	p, err := h.set.Update(ctx, input.RegistrationID, input.PurchasableID, input.Body.Quantity, input.Body.Size)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PurchaseResponse{Body: *p}, nil
}

func (h *PurchaseHandler) HandleDelete(ctx context.Context, input *RegistrationPurchasablePath) (*struct{}, error) {
	if err := h.set.Delete(ctx, input.RegistrationID, input.PurchasableID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}
