package models

import "errors"

var (
	// ErrScheduleNotFuture rejects a schedule at or before the current
	// time. Nothing is written when this is returned.
	ErrScheduleNotFuture = errors.New("schedule must be in the future")

	// ErrInvalidSchedule rejects a schedule that does not parse as
	// "YYYY-MM-DD HH:MM".
	ErrInvalidSchedule = errors.New("schedule must be in format YYYY-MM-DD HH:MM")

	ErrAccountNotFound    = errors.New("account not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
)

// IsValidationError reports whether err is caller-correctable and should
// surface as an invalid_request rather than an internal error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrScheduleNotFuture) || errors.Is(err, ErrInvalidSchedule)
}
