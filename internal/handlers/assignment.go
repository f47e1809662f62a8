package handlers

import (
	"context"

	"github.com/gdg-garage/badge-camp-api/internal/assignment"
	"github.com/gdg-garage/badge-camp-api/internal/models"
)

type AssignmentHandler struct {
	manager *assignment.Manager
}

func NewAssignmentHandler(m *assignment.Manager) *AssignmentHandler {
	return &AssignmentHandler{manager: m}
}

type RegistrationOfferingPath struct {
	RegistrationID uint `path:"registrationID" minimum:"1"`
	OfferingID     uint `path:"offeringID" minimum:"1"`
}

type AssignmentItem struct {
	OfferingID uint  `json:"offering_id" minimum:"1"`
	Periods    []int `json:"periods,omitempty" doc:"Periods to occupy; empty records a provisional enrollment"`
}

type CreateAssignmentRequest struct {
	RegistrationPath
	Body AssignmentItem
}

type ReplaceAssignmentsRequest struct {
	RegistrationPath
	Body struct {
		Assignments []AssignmentItem `json:"assignments" doc:"The full new assignment set"`
	}
}

type UpdateAssignmentRequest struct {
	RegistrationOfferingPath
	Body struct {
		Periods     []int    `json:"periods"`
		Completions []string `json:"completions,omitempty" doc:"Completed requirements; omitted keeps the current list"`
	}
}

type AssignmentResponse struct {
	Body models.Assignment
}

type AssignmentsResponse struct {
	Body []models.Assignment
}

type AssignmentHistoryResponse struct {
	Body []models.AssignmentHistory
}

func (h *AssignmentHandler) HandleCreate(ctx context.Context, input *CreateAssignmentRequest) (*AssignmentResponse, error) {
	a, err := h.manager.Create(ctx, input.RegistrationID, input.Body.OfferingID, input.Body.Periods)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssignmentResponse{Body: *a}, nil
}

// HandleReplace swaps the registration's whole assignment set. Nothing
// changes when any item fails.
func (h *AssignmentHandler) HandleReplace(ctx context.Context, input *ReplaceAssignmentsRequest) (*AssignmentsResponse, error) {
	items := make([]assignment.Item, len(input.Body.Assignments))
	for i, a := range input.Body.Assignments {
		items[i] = assignment.Item{OfferingID: a.OfferingID, Periods: a.Periods}
	}
	out, err := h.manager.Replace(ctx, input.RegistrationID, items)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssignmentsResponse{Body: out}, nil
}

func (h *AssignmentHandler) HandleUpdate(ctx context.Context, input *UpdateAssignmentRequest) (*AssignmentResponse, error) {
	a, err := h.manager.Update(ctx, input.RegistrationID, input.OfferingID, input.Body.Periods, input.Body.Completions)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssignmentResponse{Body: *a}, nil
}

func (h *AssignmentHandler) HandleDelete(ctx context.Context, input *RegistrationOfferingPath) (*struct{}, error) {
	if err := h.manager.Delete(ctx, input.RegistrationID, input.OfferingID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}

func (h *AssignmentHandler) HandleList(ctx context.Context, input *RegistrationPath) (*AssignmentsResponse, error) {
	out, err := h.manager.List(ctx, input.RegistrationID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssignmentsResponse{Body: out}, nil
}

func (h *AssignmentHandler) HandleHistory(ctx context.Context, input *RegistrationPath) (*AssignmentHistoryResponse, error) {
	out, err := h.manager.History(ctx, input.RegistrationID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &AssignmentHistoryResponse{Body: out}, nil
}
