package zone

import (
	"github.com/tourguard/safety-band/internal/config"
	"github.com/tourguard/safety-band/internal/domain/tourist"
)

// Unresolved is returned when no configured zone contains the point.
const Unresolved = ""

// Resolver maps raw location samples to named zones. It holds only immutable
// data after construction and is safe for concurrent use.
type Resolver struct {
	// zones are the geofences in declared priority order.
	zones []zone
	// riskByName indexes zone risk labels for priority derivation.
	riskByName map[string]string
}

// zone is one compiled geofence.
type zone struct {
	// name is the zone identifier.
	name string
	// risk is the configured risk label.
	risk string
	// ring is the closed polygon boundary.
	ring []tourist.Coordinates
}

// NewResolver compiles the configured zone table into a resolver.
// Declaration order is the priority order used to break overlaps.
func NewResolver(zones []config.Zone) *Resolver {
	r := &Resolver{
		zones:      make([]zone, 0, len(zones)),
		riskByName: make(map[string]string, len(zones)),
	}

	for _, z := range zones {
		ring := make([]tourist.Coordinates, 0, len(z.Polygon))
		for _, v := range z.Polygon {
			ring = append(ring, tourist.Coordinates{Lat: v.Lat, Lon: v.Lon})
		}

		r.zones = append(r.zones, zone{
			name: z.Name,
			risk: z.Risk,
			ring: ring,
		})
		r.riskByName[z.Name] = z.Risk
	}

	return r
}

// Resolve returns the name of the first zone whose boundary contains the
// point, or Unresolved if none match.
func (r *Resolver) Resolve(c tourist.Coordinates) string {
	for _, z := range r.zones {
		if containsPoint(z.ring, c) {
			return z.name
		}
	}

	return Unresolved
}

// Risk returns the configured risk label of a zone,
// or the empty string for unknown or unresolved zones.
func (r *Resolver) Risk(name string) string {
	return r.riskByName[name]
}

// containsPoint reports whether the point lies inside the polygon ring,
// using the even-odd ray casting rule. Points exactly on an edge may resolve
// to either side; zone priority order keeps the outcome deterministic.
func containsPoint(ring []tourist.Coordinates, p tourist.Coordinates) bool {
	inside := false

	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]

		crosses := (a.Lat > p.Lat) != (b.Lat > p.Lat)
		if crosses && p.Lon < (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lon {
			inside = !inside
		}
	}

	return inside
}
