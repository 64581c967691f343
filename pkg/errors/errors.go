package care_errors

import (
	"errors"
	"time"
)

// Common errors. Handlers map these to HTTP statuses at the boundary;
// everything below the boundary matches with errors.Is.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidState   = errors.New("invalid state")
	ErrAlreadyExists  = errors.New("already exists")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
