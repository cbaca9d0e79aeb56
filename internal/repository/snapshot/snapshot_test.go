package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tourguard/safety-band/internal/domain/tourist"
)

// TestLoadMissingFile verifies ErrNotFound for a fresh path.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestSaveLoadRoundtrip ensures the registry state is persisted and loaded back.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	state := &State{
		Tourists: []*tourist.Tourist{{
			UVID:         "UV-2024-001",
			Name:         "John Smith",
			Email:        "john@example.com",
			Phone:        "+1-555-0123",
			RegisteredAt: time.Unix(100, 0).UTC(),
		}},
		Sessions: []*tourist.Session{{
			UVID:      "UV-2024-001",
			BandID:    "SB-001",
			EntryTime: time.Unix(100, 0).UTC(),
			Zone:      "Beach Area",
			Status:    tourist.SessionActive,
		}},
		UVIDSeq:   map[int]int{2024: 1},
		BandSeq:   1,
		FreeBands: []string{"SB-002"},
	}

	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, state, loaded)
}
