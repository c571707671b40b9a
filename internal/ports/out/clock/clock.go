package clock

import "time"

// Clock provides time to the application.
// Invite expiry checks, code fallbacks and record timestamps all read it, so tests can
// control time through a manual implementation.
type Clock interface {
	Now() time.Time
}
