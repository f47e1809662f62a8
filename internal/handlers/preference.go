package handlers

import (
	"context"

	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/gdg-garage/badge-camp-api/internal/preference"
)

type PreferenceHandler struct {
	set *preference.Set
}

func NewPreferenceHandler(set *preference.Set) *PreferenceHandler {
	return &PreferenceHandler{set: set}
}

type PreferenceItem struct {
	OfferingID uint `json:"offering_id" minimum:"1"`
	Rank       int  `json:"rank" doc:"1 is the most wanted, 6 the least"`
}

type SetPreferenceRequest struct {
	RegistrationPath
	Body PreferenceItem
}

type ReplacePreferencesRequest struct {
	RegistrationPath
	Body struct {
		Preferences []PreferenceItem `json:"preferences"`
	}
}

type PreferenceResponse struct {
	Body models.Preference
}

type PreferencesResponse struct {
	Body []models.Preference
}

func (h *PreferenceHandler) HandleSet(ctx context.Context, input *SetPreferenceRequest) (*PreferenceResponse, error) {
	pref, err := h.set.Put(ctx, input.RegistrationID, input.Body.OfferingID, input.Body.Rank)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PreferenceResponse{Body: *pref}, nil
}

func (h *PreferenceHandler) HandleReplace(ctx context.Context, input *ReplacePreferencesRequest) (*PreferencesResponse, error) {
	items := make([]preference.Item, len(input.Body.Preferences))
	for i, p := range input.Body.Preferences {
		items[i] = preference.Item{OfferingID: p.OfferingID, Rank: p.Rank}
	}
	prefs, err := h.set.Replace(ctx, input.RegistrationID, items)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PreferencesResponse{Body: prefs}, nil
}

func (h *PreferenceHandler) HandleList(ctx context.Context, input *RegistrationPath) (*PreferencesResponse, error) {
	prefs, err := h.set.List(ctx, input.RegistrationID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &PreferencesResponse{Body: prefs}, nil
}

func (h *PreferenceHandler) HandleDelete(ctx context.Context, input *RegistrationOfferingPath) (*struct{}, error) {
	if err := h.set.Delete(ctx, input.RegistrationID, input.OfferingID); err != nil {
		return nil, toHTTPError(err)
	}
	return nil, nil
}
