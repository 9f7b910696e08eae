package domain

import "errors"

var (
	ErrDuplicateEmail     = errors.New("duplicate email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPNotFound        = errors.New("otp not found")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPAlreadyConsumed = errors.New("otp already consumed")
	ErrOTPMismatch        = errors.New("otp mismatch")
	ErrOTPLocked          = errors.New("otp locked after too many attempts")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrResourceNotFound   = errors.New("resource not found")

	ErrUserNotFound    = errors.New("user not found")
	ErrNotPending      = errors.New("registration is not pending")
	ErrNotEmployee     = errors.New("user is not an employee")
	ErrVersionConflict = errors.New("version conflict")
)
