// Package zone implements the zone resolver: a pure lookup from a raw
// location sample to a named geofence zone.
//
// Zones come from static configuration and are matched in declaration order,
// so overlapping zones resolve deterministically. The resolver has no mutable
// state and is safe to call concurrently from any number of callers.
package zone
