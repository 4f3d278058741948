package streamchart

import "errors"

// Common sentinel errors for the streamchart package. The engine itself
// recovers locally from unknown series and axis references (lazy create
// and default fallback), so errors surface only at the configuration and
// source boundaries.
var (
	// ErrHubClosed is returned when subscribing to a closed hub.
	ErrHubClosed = errors.New("hub is closed")

	// ErrInvalidConfig is returned for malformed chart configuration.
	ErrInvalidConfig = errors.New("invalid chart config")

	// ErrSourceClosed is returned when starting a source that has already
	// been closed.
	ErrSourceClosed = errors.New("source is closed")
)
