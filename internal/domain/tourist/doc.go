// Package tourist contains core domain types for visitor tracking.
//
// It defines Tourist (the identity record), Session (one visit with its band
// binding and zone state) and Coordinates, with Clone helpers to avoid leaking
// internal references.
package tourist
