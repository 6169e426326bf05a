package lists

import "errors"

// Sentinel errors returned by Service. Handlers map them to HTTP statuses.
var (
	ErrInvalid   = errors.New("invalid request")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflicting unique value")
	ErrListFull  = errors.New("list has reached its row limit")
	ErrStorage   = errors.New("storage failure")
	ErrSchema    = errors.New("list schema is broken")
)
