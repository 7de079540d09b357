package admission

import "time"

// ClientKey identifies a caller, usually the first forwarded address.
type ClientKey string

// Window is the fixed rate window tracked per ClientKey.
// Count only grows while now < End; crossing End starts a new window.
type Window struct {
	Count int
	End   time.Time
}

// Expired reports whether the window has passed at now.
func (w Window) Expired(now time.Time) bool {
	return !now.Before(w.End)
}

// Decision is the outcome of a single CheckAndConsume call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetTime is when the caller's current window ends.
	ResetTime time.Time
}
