package models

import "errors"

// Business-rule failures. The HTTP layer maps these to status codes;
// anything else surfaces as a 500 with no internal detail.
var (
	ErrNotRegistered = errors.New("identity is not registered for the required role")
	ErrInvalidInput  = errors.New("missing or malformed input")
	ErrAlreadyExists = errors.New("record already exists")
	ErrNotFound      = errors.New("record not found")
)
