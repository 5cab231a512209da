package gateway

import "errors"

// Registration rejections. These are terminal for the attempt but leave the
// session browsing; the caller surfaces them once and may retry explicitly.
var (
	ErrAlreadyRegistered = errors.New("participant already registered")
	ErrCapacityExceeded  = errors.New("contest participant capacity exceeded")
	ErrContestNotOpen    = errors.New("contest registration is not open")
)

// Machine-readable codes the platform API uses for registration rejections.
const (
	codeAlreadyRegistered  = "already_registered"
	codeCapacityExceeded   = "capacity_exceeded"
	codeRegistrationClosed = "registration_closed"
)
