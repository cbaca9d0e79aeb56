package zone

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tourguard/safety-band/internal/config"
	"github.com/tourguard/safety-band/internal/domain/tourist"
)

// square returns a unit square polygon with the given south-west corner.
func square(lat, lon float64) []config.Vertex {
	return []config.Vertex{
		{Lat: lat, Lon: lon},
		{Lat: lat, Lon: lon + 1},
		{Lat: lat + 1, Lon: lon + 1},
		{Lat: lat + 1, Lon: lon},
	}
}

// TestResolve verifies containment, misses and the unresolved fallback.
func TestResolve(t *testing.T) {
	t.Parallel()

	r := NewResolver([]config.Zone{
		{Name: "Beach Area", Risk: "medium", Polygon: square(0, 0)},
		{Name: "Mountain Trail", Risk: "high", Polygon: square(10, 10)},
	})

	require.Equal(t, "Beach Area", r.Resolve(tourist.Coordinates{Lat: 0.5, Lon: 0.5}))
	require.Equal(t, "Mountain Trail", r.Resolve(tourist.Coordinates{Lat: 10.5, Lon: 10.5}))
	require.Equal(t, Unresolved, r.Resolve(tourist.Coordinates{Lat: 5, Lon: 5}))
}

// TestResolveOverlapPriority verifies that declaration order breaks overlaps.
func TestResolveOverlapPriority(t *testing.T) {
	t.Parallel()

	overlapping := []config.Zone{
		{Name: "Harbor View", Polygon: square(0, 0)},
		{Name: "Shopping District", Polygon: square(0, 0)},
	}

	r := NewResolver(overlapping)
	require.Equal(t, "Harbor View", r.Resolve(tourist.Coordinates{Lat: 0.5, Lon: 0.5}))

	// Reversing declaration order flips the winner.
	r = NewResolver([]config.Zone{overlapping[1], overlapping[0]})
	require.Equal(t, "Shopping District", r.Resolve(tourist.Coordinates{Lat: 0.5, Lon: 0.5}))
}

// TestRisk verifies risk lookups including the unknown-zone fallback.
func TestRisk(t *testing.T) {
	t.Parallel()

	r := NewResolver([]config.Zone{
		{Name: "Mountain Trail", Risk: "high", Polygon: square(0, 0)},
	})

	require.Equal(t, "high", r.Risk("Mountain Trail"))
	require.Empty(t, r.Risk("City Center"))
	require.Empty(t, r.Risk(Unresolved))
}

// TestResolveConcave verifies containment in a non-convex ring.
func TestResolveConcave(t *testing.T) {
	t.Parallel()

	// An L-shaped zone: the notch at the top-right is outside.
	lShape := []config.Vertex{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 2},
		{Lat: 1, Lon: 2},
		{Lat: 1, Lon: 1},
		{Lat: 2, Lon: 1},
		{Lat: 2, Lon: 0},
	}

	r := NewResolver([]config.Zone{{Name: "Old Town", Polygon: lShape}})

	require.Equal(t, "Old Town", r.Resolve(tourist.Coordinates{Lat: 0.5, Lon: 0.5}))
	require.Equal(t, "Old Town", r.Resolve(tourist.Coordinates{Lat: 1.5, Lon: 0.5}))
	require.Equal(t, Unresolved, r.Resolve(tourist.Coordinates{Lat: 1.5, Lon: 1.5}))
}
