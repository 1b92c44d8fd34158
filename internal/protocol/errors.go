package protocol

import (
	"errors"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

const (
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeInvalid      = "invalid"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeEnded        = "ended"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

// ErrorFor classifies err for the client. Unknown errors become a generic
// internal error so storage details never leak.
func ErrorFor(err error) Error {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return Error{Message: "authentication error", Code: CodeUnauthorized}
	case errors.Is(err, domain.ErrForbidden):
		return Error{Message: err.Error(), Code: CodeForbidden}
	case errors.Is(err, domain.ErrInvalidInput):
		return Error{Message: err.Error(), Code: CodeInvalid}
	case errors.Is(err, domain.ErrNotFound):
		return Error{Message: err.Error(), Code: CodeNotFound}
	case errors.Is(err, domain.ErrMeetingEnded):
		return Error{Message: err.Error(), Code: CodeEnded}
	case errors.Is(err, domain.ErrConflict):
		return Error{Message: err.Error(), Code: CodeConflict}
	default:
		return Error{Message: "internal error", Code: CodeInternal}
	}
}
