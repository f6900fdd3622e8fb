package domain

import "errors"

// Expected failure modes of the auth flows. Handlers map these to HTTP
// status codes; anything else is treated as an internal fault.
var (
	ErrInvalidIdentifier = errors.New("identifier must be a valid email or phone number")
	ErrRateLimited       = errors.New("too many requests")

	// ErrInvalidOtp covers wrong, expired, used, and exhausted codes.
	// They are deliberately indistinguishable to the caller.
	ErrInvalidOtp = errors.New("invalid or expired code")

	ErrDispatchFailed = errors.New("could not send the sign-in code")
	ErrInternal       = errors.New("internal error")
)
