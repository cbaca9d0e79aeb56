package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings for the safety-band monitoring server.
type Config struct {
	// ListenAddress is the HTTP listen address for the monitoring API.
	ListenAddress string `yaml:"listen_addr"`
	// IncidentDBPath is the path to the SQLite file storing incident records.
	IncidentDBPath string `yaml:"incident_db"`
	// SnapshotFile is the path to the JSON file storing registry state
	// for recovery across restarts.
	SnapshotFile string `yaml:"snapshot_file"`
	// QualifyingHold is the minimum button hold duration that triggers an SOS.
	QualifyingHold time.Duration `yaml:"qualifying_hold"`
	// AutoEscalateAfter moves a level 1 alert to level 2 after this duration
	// if it is still unresolved. Zero disables automatic escalation: alerts
	// never change urgency without an explicit hold or operator action.
	AutoEscalateAfter time.Duration `yaml:"auto_escalate_after"`
	// NotifyQueueSize is the capacity of the notification dispatch queue.
	NotifyQueueSize int `yaml:"notify_queue_size"`
	// Zones lists the named geofence zones, in priority order.
	Zones []Zone `yaml:"zones"`
}

// Zone describes one named geofence used for location aggregation and
// alert context. Zones are matched in the order they are declared.
type Zone struct {
	// Name is the zone identifier shown on dashboards, e.g. "Beach Area".
	Name string `yaml:"name"`
	// Risk labels the zone for alert priority derivation: low, medium or high.
	Risk string `yaml:"risk"`
	// Polygon is the zone boundary as a closed ring of vertices.
	Polygon []Vertex `yaml:"polygon"`
}

// Vertex is a single polygon corner in decimal degrees.
type Vertex struct {
	// Lat is the latitude in decimal degrees.
	Lat float64 `yaml:"lat"`
	// Lon is the longitude in decimal degrees.
	Lon float64 `yaml:"lon"`
}

const (
	// DefaultConfigFilename is the default filename for server settings.
	DefaultConfigFilename = "safety-band-settings.yaml"

	// DefaultIncidentDBFilename is the default SQLite file for incident records.
	DefaultIncidentDBFilename = "safety-band-incidents.db"

	// DefaultSnapshotFilename is the default filename for registry state JSON.
	DefaultSnapshotFilename = "safety-band-state.json"

	// DefaultQualifyingHold is the default button hold duration for an SOS.
	DefaultQualifyingHold = 5 * time.Second

	// DefaultNotifyQueueSize is the default notification queue capacity.
	DefaultNotifyQueueSize = 256

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// minPolygonVertices is the smallest ring that encloses an area.
	minPolygonVertices = 3
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the listen address is missing.
	errListenAddressRequired = errors.New("listen address must be provided")
	// errZoneNameRequired is returned when a zone entry has no name.
	errZoneNameRequired = errors.New("zone name must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	for i := range cfg.Zones {
		zone := &cfg.Zones[i]
		if zone.Name == "" {
			return errZoneNameRequired
		}

		if len(zone.Polygon) < minPolygonVertices {
			return fmt.Errorf("zone %q: polygon needs at least %d vertices", zone.Name, minPolygonVertices)
		}
	}

	// Set defaults for values not specified.
	if cfg.QualifyingHold <= 0 {
		cfg.QualifyingHold = DefaultQualifyingHold
	}

	if cfg.AutoEscalateAfter < 0 {
		cfg.AutoEscalateAfter = 0
	}

	if cfg.NotifyQueueSize <= 0 {
		cfg.NotifyQueueSize = DefaultNotifyQueueSize
	}

	if cfg.IncidentDBPath == "" {
		cfg.IncidentDBPath = DefaultIncidentDBFilename
	}

	if cfg.SnapshotFile == "" {
		cfg.SnapshotFile = DefaultSnapshotFilename
	}

	return nil
}
