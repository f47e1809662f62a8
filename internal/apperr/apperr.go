// Package apperr defines the error taxonomy shared by the enrollment core.
//
// Not-found errors are sentinels. Constraint violations are typed so callers
// can recover the offending period or field with errors.As; each typed error
// also matches its sentinel with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEvent        = errors.New("invalid event")
	ErrInvalidOffering     = errors.New("invalid offering")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrInvalidAssignment   = errors.New("invalid assignment")
	ErrInvalidScout        = errors.New("invalid scout")
	ErrInvalidUser         = errors.New("invalid user")
	ErrInvalidBadge        = errors.New("invalid badge")
	ErrInvalidPurchasable  = errors.New("invalid purchasable")
	ErrInvalidPurchase     = errors.New("invalid purchase")
	ErrInvalidPreference   = errors.New("invalid preference")

	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrPeriodConflict   = errors.New("period conflict")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidRank      = errors.New("invalid rank")
	ErrInvalidAgeRange  = errors.New("invalid age range")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrIneligibleAge    = errors.New("scout age outside purchasable range")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrSizeNotAccepted  = errors.New("size not accepted")
	ErrAlreadyExists    = errors.New("already exists")
)

// CapacityError reports the first period of an offering that has no free seat.
type CapacityError struct {
	OfferingID uint
	Period     int
	SizeLimit  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("offering %d period %d is full (limit %d)", e.OfferingID, e.Period, e.SizeLimit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// PeriodConflictError reports a period already occupied by another of the
// scout's assignments in the same event.
type PeriodConflictError struct {
	Period     int
	OfferingID uint
}

func (e *PeriodConflictError) Error() string {
	return fmt.Sprintf("period %d already assigned to offering %d", e.Period, e.OfferingID)
}

func (e *PeriodConflictError) Unwrap() error { return ErrPeriodConflict }

// FieldError ties a constraint violation to the request field that caused it.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Field is shorthand for constructing a FieldError.
func Field(err error, field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...), Err: err}
}

// IsNotFound reports whether err refers to a missing or malformed entity.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrInvalidEvent,
		ErrInvalidOffering,
		ErrInvalidRegistration,
		ErrInvalidAssignment,
		ErrInvalidScout,
		ErrInvalidUser,
		ErrInvalidBadge,
		ErrInvalidPurchasable,
		ErrInvalidPurchase,
		ErrInvalidPreference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
