package handlers

import (
	"context"

	"github.com/gdg-garage/badge-camp-api/internal/pricing"
	"github.com/shopspring/decimal"
)

type PricingHandler struct {
	engine *pricing.Engine
}

func NewPricingHandler(engine *pricing.Engine) *PricingHandler {
	return &PricingHandler{engine: engine}
}

type UserEventPath struct {
	EventID uint `path:"eventID" minimum:"1"`
	UserID  uint `path:"userID" minimum:"1"`
}

type CostResponse struct {
	Body struct {
		Cost string `json:"cost" example:"59.75"`
	}
}

type IncomeResponse struct {
	Body struct {
		Income string `json:"income" example:"1250.00"`
	}
}

func cost(d decimal.Decimal, err error) (*CostResponse, error) {
	if err != nil {
		return nil, toHTTPError(err)
	}
	resp := &CostResponse{}
	resp.Body.Cost = pricing.Format(d)
	return resp, nil
}

func income(d decimal.Decimal, err error) (*IncomeResponse, error) {
	if err != nil {
		return nil, toHTTPError(err)
	}
	resp := &IncomeResponse{}
	resp.Body.Income = pricing.Format(d)
	return resp, nil
}

func (h *PricingHandler) HandleRegistrationProjectedCost(ctx context.Context, input *RegistrationPath) (*CostResponse, error) {
	return cost(h.engine.ProjectedCost(ctx, input.RegistrationID))
}

func (h *PricingHandler) HandleRegistrationActualCost(ctx context.Context, input *RegistrationPath) (*CostResponse, error) {
	return cost(h.engine.ActualCost(ctx, input.RegistrationID))
}

func (h *PricingHandler) HandleScoutProjectedCost(ctx context.Context, input *ScoutEventPath) (*CostResponse, error) {
	return cost(h.engine.ScoutProjectedCost(ctx, input.ScoutID, input.EventID))
}

func (h *PricingHandler) HandleScoutActualCost(ctx context.Context, input *ScoutEventPath) (*CostResponse, error) {
	return cost(h.engine.ScoutActualCost(ctx, input.ScoutID, input.EventID))
}

func (h *PricingHandler) HandleTroopProjectedCost(ctx context.Context, input *UserEventPath) (*CostResponse, error) {
	return cost(h.engine.TroopProjectedCost(ctx, input.UserID, input.EventID))
}

func (h *PricingHandler) HandleTroopActualCost(ctx context.Context, input *UserEventPath) (*CostResponse, error) {
	return cost(h.engine.TroopActualCost(ctx, input.UserID, input.EventID))
}

func (h *PricingHandler) HandleProjectedIncome(ctx context.Context, input *EventPath) (*IncomeResponse, error) {
	return income(h.engine.ProjectedIncome(ctx, input.EventID))
}

func (h *PricingHandler) HandleActualIncome(ctx context.Context, input *EventPath) (*IncomeResponse, error) {
	return income(h.engine.ActualIncome(ctx, input.EventID))
}
