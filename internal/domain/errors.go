package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication error")
	ErrForbidden       = errors.New("not authorized")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrMeetingEnded    = errors.New("meeting has ended")
)
