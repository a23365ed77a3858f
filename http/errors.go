package http

import "errors"

// ErrUnauthorized is returned when the bearer token is missing or wrong.
var ErrUnauthorized = errors.New("unauthorized")
