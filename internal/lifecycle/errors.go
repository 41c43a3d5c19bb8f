package lifecycle

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid transition for current status")
	ErrUnauthorized      = errors.New("actor is not allowed to perform this action")
	ErrVersionConflict   = errors.New("booking was modified concurrently")
	ErrOtpExpired        = errors.New("otp code has expired")
	ErrOtpMismatch       = errors.New("otp code does not match")
	ErrNotFound          = errors.New("booking not found")
	ErrRateLimited       = errors.New("too many transition attempts")
)
