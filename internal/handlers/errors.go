package handlers

import (
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/badge-camp-api/internal/apperr"
)

var unprocessable = []error{
	apperr.ErrInvalidRank,
	apperr.ErrInvalidPeriod,
	apperr.ErrInvalidDuration,
	apperr.ErrInvalidAgeRange,
	apperr.ErrIneligibleAge,
	apperr.ErrInvalidQuantity,
	apperr.ErrSizeNotAccepted,
}

// toHTTPError maps domain errors onto huma status errors. Unknown errors
// become 500s.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}

	var capacity *apperr.CapacityError
	var conflict *apperr.PeriodConflictError
	var field *apperr.FieldError

	switch {
	case errors.As(err, &capacity):
		return huma.Error409Conflict(err.Error(), &huma.ErrorDetail{
			Message:  fmt.Sprintf("period %d is full", capacity.Period),
			Location: "body.periods",
			Value:    capacity.Period,
		})
	case errors.As(err, &conflict):
		return huma.Error409Conflict(err.Error(), &huma.ErrorDetail{
			Message:  fmt.Sprintf("period %d is already taken by offering %d", conflict.Period, conflict.OfferingID),
			Location: "body.periods",
			Value:    conflict.Period,
		})
	case errors.Is(err, apperr.ErrAlreadyExists):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &field):
		return huma.Error422UnprocessableEntity(err.Error(), &huma.ErrorDetail{
			Message:  field.Reason,
			Location: "body." + field.Field,
		})
	case apperr.IsNotFound(err):
		return huma.Error404NotFound(err.Error())
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return huma.Error422UnprocessableEntity(err.Error())
		}
	}
	return huma.Error500InternalServerError("Internal error", err)
}
