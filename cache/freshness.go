// Package cache decides when a cached provider record may be reused.
package cache

import (
	"time"

	"propsync/models"
)

// DefaultExpiry is how long a fetched raw record stays fresh.
const DefaultExpiry = 24 * time.Hour

// Gate applies the expiry window to cached raw records.
type Gate struct {
	Expiry time.Duration
	Now    func() time.Time
}

func NewGate(expiry time.Duration) *Gate {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Gate{Expiry: expiry, Now: time.Now}
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// IsFresh reports whether lastFetched lies within the expiry window.
// A zero time is never fresh.
func (g *Gate) IsFresh(lastFetched time.Time) bool {
	if lastFetched.IsZero() {
		return false
	}
	return g.now().Sub(lastFetched) < g.Expiry
}

// ShouldFetch reports whether the provider must be called instead of reusing cached.
func (g *Gate) ShouldFetch(cached *models.RawRecord, force bool) bool {
	if force || cached == nil || cached.Data == nil {
		return true
	}
	return !g.IsFresh(cached.LastFetched)
}
