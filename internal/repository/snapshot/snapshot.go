package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tourguard/safety-band/internal/config"
	"github.com/tourguard/safety-band/internal/domain/tourist"
)

// State is the recoverable registry state: identity records, sessions and
// identifier allocation counters. Live alerts are deliberately absent; they
// are reconstructed from fresh band events after a restart.
type State struct {
	// Tourists are all identity records ever registered.
	Tourists []*tourist.Tourist `json:"tourists"`
	// Sessions are all sessions, active and exited.
	Sessions []*tourist.Session `json:"sessions"`
	// UVIDSeq maps year to the last issued UVID sequence number.
	UVIDSeq map[int]int `json:"uvid_seq"`
	// BandSeq is the highest band sequence number ever issued.
	BandSeq int `json:"band_seq"`
	// FreeBands are band IDs released by exits, available for rebinding.
	FreeBands []string `json:"free_bands"`
}

// Repository defines persistence operations for the registry state.
type Repository interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// ErrNotFound is returned when the snapshot file does not exist yet.
var ErrNotFound = errors.New("snapshot not found")

// FileRepository persists the registry state to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON snapshot file.
	path string
	// mu protects concurrent access to the snapshot file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var state State
	if err = json.Unmarshal(contents, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	return &state, nil
}

// Save writes the state to disk as JSON.
func (r *FileRepository) Save(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	return nil
}
