// Package registry implements the tourist session registry: registration,
// band bindings, location and exit events, and the session views consumed by
// dashboards.
//
// The registry owns Tourist, Session and band binding state exclusively.
// Button events are validated here and forwarded to the alert engine through
// the AlertSink interface. Mutations on one session are serialized per band
// so unrelated tourists never block each other.
package registry
