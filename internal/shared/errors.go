package shared

import "errors"

var (
	// ErrUnauthenticated indicates no identity is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAccountInactive indicates the identity exists but is disabled.
	ErrAccountInactive = errors.New("account inactive")
	// ErrForbidden indicates the identity lacks a required role or permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
