// Package config defines server settings for the safety-band monitoring core
// and provides helpers to load, validate and save them in YAML format.
//
// The Config type carries the HTTP listen address, storage paths, SOS timing
// knobs and the geofence zone table used by the zone resolver.
package config
