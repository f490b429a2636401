package transceiver

import (
	"time"

	"github.com/google/xdtk/internal/device"
)

// ExpiryPolicy decides whether a registered device has gone quiet.
// Stale devices are flagged, never removed.
type ExpiryPolicy interface {
	Stale(s device.State, now time.Time) bool
}

// NeverExpire is the default policy.
type NeverExpire struct{}

// Stale always returns false.
func (NeverExpire) Stale(device.State, time.Time) bool { return false }

// IdleTimeout marks a device stale once nothing has been heard from it for After.
type IdleTimeout struct {
	After time.Duration
}

// Stale reports whether s was last seen more than After before now.
func (p IdleTimeout) Stale(s device.State, now time.Time) bool {
	if p.After <= 0 || s.LastSeen.IsZero() {
		return false
	}
	return now.Sub(s.LastSeen) > p.After
}

// PolicyFor returns IdleTimeout for a positive duration and NeverExpire otherwise.
func PolicyFor(idle time.Duration) ExpiryPolicy {
	if idle > 0 {
		return IdleTimeout{After: idle}
	}
	return NeverExpire{}
}
