package store

import "errors"

// Sentinel errors returned by store operations. Handlers map these to
// HTTP statuses with errors.Is; anything else is an opaque server error.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied collapses "resource absent" and "no access grant"
	// into one indistinguishable result, so callers cannot probe for the
	// existence of resources they were not assigned to.
	ErrAccessDenied = errors.New("not found or access denied")

	// ErrDuplicateEmail means the email is already registered within the
	// same company.
	ErrDuplicateEmail = errors.New("email already exists in company")

	// ErrInvalidRole means the role is outside the assignable vocabulary
	// for the attempted operation.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidStatus means the machine status is not a recognized value.
	ErrInvalidStatus = errors.New("invalid machine status")
)
