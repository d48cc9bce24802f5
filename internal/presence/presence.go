// Package presence infers online/offline state from heartbeat timestamps.
package presence

import "time"

const (
	// OnlineWindow is how recently a user must have been seen to count as
	// online. A user whose last heartbeat is older than this is offline.
	OnlineWindow = 2 * time.Minute

	// HeartbeatInterval is the cadence at which active clients are expected
	// to refresh their last-seen timestamp.
	HeartbeatInterval = 60 * time.Second
)

// IsOnline reports whether a user with the given last-seen timestamp is
// considered online right now. A zero timestamp means the user has never
// sent a heartbeat and is offline.
func IsOnline(lastSeen time.Time) bool {
	return IsOnlineAt(lastSeen, time.Now())
}

// IsOnlineAt is IsOnline evaluated against an explicit clock, for callers
// and tests that need a deterministic "now".
func IsOnlineAt(lastSeen, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) < OnlineWindow
}
