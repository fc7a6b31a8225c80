package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

// HTTP Handler Timeouts
const (
	// DefaultRequestTimeout is the default timeout for HTTP requests
	DefaultRequestTimeout = 30 * time.Second

	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Forecast Constants
// =============================================================================

const (
	// DefaultHorizon is the number of future steps predicted when the
	// request does not specify one
	DefaultHorizon = 24

	// MaxHorizon caps the horizon accepted from clients
	MaxHorizon = 1000

	// DefaultCleanupAge is the artifact age used by the cleanup endpoint
	// when the request does not specify one
	DefaultCleanupAge = 30 * 24 * time.Hour
)
