package handlers

import (
	"context"
	"net/http"

	"github.com/gdg-garage/badge-camp-api/internal/enrollment"
	"github.com/gdg-garage/badge-camp-api/internal/models"
)

type RegistrationHandler struct {
	enrollment *enrollment.Service
}

func NewRegistrationHandler(svc *enrollment.Service) *RegistrationHandler {
	return &RegistrationHandler{enrollment: svc}
}

type ScoutEventPath struct {
	EventID uint `path:"eventID" minimum:"1"`
	ScoutID uint `path:"scoutID" minimum:"1"`
}

type RegistrationPath struct {
	RegistrationID uint `path:"registrationID" minimum:"1"`
}

type EnrollRequest struct {
	ScoutEventPath
	Body *struct {
		Notes string `json:"notes,omitempty" maxLength:"1000" doc:"Free-form notes, e.g. dietary needs"`
	} `required:"false"`
}

type RegistrationResponse struct {
	Status int
	Body   models.Registration
}

type ListRegistrationsResponse struct {
	Body []models.Registration
}

// HandleEnroll answers 201 for a new registration and 200 when the scout
// was already enrolled.
func (h *RegistrationHandler) HandleEnroll(ctx context.Context, input *EnrollRequest) (*RegistrationResponse, error) {
	notes := ""
	if input.Body != nil {
		notes = input.Body.Notes
	}
	reg, created, err := h.enrollment.Enroll(ctx, input.ScoutID, input.EventID, notes)
	if err != nil {
		return nil, toHTTPError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return &RegistrationResponse{Status: status, Body: *reg}, nil
}

func (h *RegistrationHandler) HandleGet(ctx context.Context, input *RegistrationPath) (*RegistrationResponse, error) {
	reg, err := h.enrollment.Get(ctx, input.RegistrationID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &RegistrationResponse{Status: http.StatusOK, Body: *reg}, nil
}

func (h *RegistrationHandler) HandleList(ctx context.Context, input *EventPath) (*ListRegistrationsResponse, error) {
	regs, err := h.enrollment.ListForEvent(ctx, input.EventID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ListRegistrationsResponse{Body: regs}, nil
}

func (h *RegistrationHandler) HandleUnenroll(ctx context.Context, input *RegistrationPath) (*struct{}, error) {
	if err := h.enrollment.Unenroll(ctx, input.RegistrationID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}
