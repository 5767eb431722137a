package errors

import (
	"errors"
)

// Policy errors. Returned to the caller, surfaced as a user-facing message,
// never retried.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyPending   = errors.New("challenge already pending")
	ErrAlreadyFederated = errors.New("chat already belongs to a federation")
	ErrAlreadyBanned    = errors.New("already banned")
	ErrNotBanned        = errors.New("not banned")
	ErrNoPrivileges     = errors.New("not enough rights")
	ErrInvalidInput     = errors.New("invalid input")
)
