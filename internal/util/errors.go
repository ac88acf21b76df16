package util

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrAccountLocked       = errors.New("account is locked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotFound            = errors.New("resource not found")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("permission denied")
	ErrTooManyRequests     = errors.New("too many requests")

	ErrCredentialUnavailable = errors.New("credential unavailable")
	ErrDepartmentCodeUnknown = errors.New("department code unknown")
	ErrEmployeeIDExhausted   = errors.New("employee id sequence exhausted")
	ErrNotifierFailure       = errors.New("notification delivery failed")

	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrDepartmentNotFound = fmt.Errorf("%w: department not found", ErrNotFound)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrEmployeeIDTaken    = fmt.Errorf("%w: employee id already exists", ErrConflict)
	ErrIncorrectPassword  = fmt.Errorf("%w: current password is incorrect", ErrInvalidCredentials)
	ErrInvalidOTP         = fmt.Errorf("%w: invalid or expired OTP", ErrInvalidCredentials)
	ErrInvalidResetToken  = fmt.Errorf("%w: invalid or expired reset token", ErrInvalidCredentials)
	ErrMalformedID        = &ValidationError{Message: "enter a valid email address or employee ID"}
)

// ValidationError is a user-facing input error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LockedError reports how long a locked account stays locked.
type LockedError struct {
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is locked, try again in %d minute(s)", e.RemainingMinutes)
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }
