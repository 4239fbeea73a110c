package retroapi

import "errors"

// Client errors.
var (
	// ErrUnavailable is returned when the RetroAchievements API cannot be
	// reached: transport failure, timeout, non-2xx response, or an open
	// circuit breaker. Callers treat it uniformly and rely on the next
	// scheduled tick as the retry mechanism.
	ErrUnavailable = errors.New("achievement source unavailable")
)
