package vault

import (
	"strings"
	"sync"
)

type venueKey struct {
	asset string
	venue string
}

func newVenueKey(asset, venue string) venueKey {
	return venueKey{
		asset: strings.ToUpper(strings.TrimSpace(asset)),
		venue: strings.TrimSpace(venue),
	}
}

// VenueRegistry maps (collateral, venue identifier) pairs to the adapters that
// move collateral in and out of external yield strategies.
type VenueRegistry struct {
	mu     sync.RWMutex
	venues map[venueKey]YieldVenue
}

// NewVenueRegistry constructs an empty registry.
func NewVenueRegistry() *VenueRegistry {
	return &VenueRegistry{venues: make(map[venueKey]YieldVenue)}
}

// Register binds a venue adapter to a collateral. Re-registering replaces the
// previous adapter.
func (r *VenueRegistry) Register(asset, venue string, adapter YieldVenue) {
	if r == nil || adapter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[newVenueKey(asset, venue)] = adapter
}

// Lookup resolves the adapter bound to the collateral/venue pair.
func (r *VenueRegistry) Lookup(asset, venue string) (YieldVenue, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.venues[newVenueKey(asset, venue)]
	return adapter, ok
}

// VenuesFor lists the venue identifiers registered for a collateral.
func (r *VenueRegistry) VenuesFor(asset string) []string {
	if r == nil {
		return nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for key := range r.venues {
		if key.asset == normalized {
			ids = append(ids, key.venue)
		}
	}
	return ids
}
