package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testZones returns a minimal valid zone table.
func testZones() []Zone {
	return []Zone{
		{
			Name: "Beach Area",
			Risk: "medium",
			Polygon: []Vertex{
				{Lat: 0, Lon: 0},
				{Lat: 0, Lon: 1},
				{Lat: 1, Lon: 1},
			},
		},
	}
}

// TestValidate checks required fields, format validations and defaulting.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing listen address.
	err := Validate(new(Config))
	require.Error(t, err)

	// Bad listen address.
	err = Validate(&Config{ListenAddress: "bad:address"})
	require.Error(t, err)

	// Zone without a name.
	cfg := &Config{
		ListenAddress: "127.0.0.1:0",
		Zones:         []Zone{{Polygon: testZones()[0].Polygon}},
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Degenerate polygon.
	cfg = &Config{
		ListenAddress: "127.0.0.1:0",
		Zones: []Zone{{
			Name:    "Pier",
			Polygon: []Vertex{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}},
		}},
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Valid config gets defaults filled in.
	cfg = &Config{
		ListenAddress: "127.0.0.1:0",
		Zones:         testZones(),
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultQualifyingHold, cfg.QualifyingHold)
	require.Equal(t, DefaultNotifyQueueSize, cfg.NotifyQueueSize)
	require.Equal(t, DefaultIncidentDBFilename, cfg.IncidentDBPath)
	require.Equal(t, DefaultSnapshotFilename, cfg.SnapshotFile)
	require.Zero(t, cfg.AutoEscalateAfter)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		ListenAddress:     "127.0.0.1:8080",
		IncidentDBPath:    filepath.Join(dir, "incidents.db"),
		QualifyingHold:    3 * time.Second,
		AutoEscalateAfter: 2 * time.Minute,
		Zones:             testZones(),
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, loaded.ListenAddress)
	require.Equal(t, cfg.QualifyingHold, loaded.QualifyingHold)
	require.Equal(t, cfg.AutoEscalateAfter, loaded.AutoEscalateAfter)
	require.Len(t, loaded.Zones, 1)
	require.Equal(t, "Beach Area", loaded.Zones[0].Name)
}
