package controller

import "errors"

var (
	// ErrResourceUnavailable is returned when neither the cache nor the network can serve a request.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrNoShell is returned by Install when no shell assets are configured.
	ErrNoShell = errors.New("no shell assets configured")
)
