package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAlertClone verifies that Clone returns a copy and handles nil safely.
func TestAlertClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Alert)(nil).Clone())

	a := &Alert{
		ID:        "SOS-2024-001",
		UVID:      "UV-2024-001",
		BandID:    "SB-001",
		Zone:      "Beach Area",
		Level:     Level1,
		Priority:  PriorityMedium,
		Status:    StatusOpen,
		CreatedAt: time.Unix(100, 0),
	}

	b := a.Clone()
	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}

// TestCanEscalate covers the legal and illegal escalation states.
func TestCanEscalate(t *testing.T) {
	t.Parallel()

	a := &Alert{Level: Level1, Status: StatusOpen}
	require.True(t, a.CanEscalate())

	a.Level = Level2
	require.False(t, a.CanEscalate())

	a.Level = Level1
	a.Status = StatusResolved
	require.False(t, a.CanEscalate())
	require.False(t, (*Alert)(nil).CanEscalate())
}

// TestDerivePriority verifies the level and zone-risk derivation rules.
func TestDerivePriority(t *testing.T) {
	t.Parallel()

	require.Equal(t, PriorityHigh, DerivePriority(Level2, "low"))
	require.Equal(t, PriorityHigh, DerivePriority(Level1, "high"))
	require.Equal(t, PriorityLow, DerivePriority(Level1, "low"))
	require.Equal(t, PriorityMedium, DerivePriority(Level1, ""))
	require.Equal(t, PriorityMedium, DerivePriority(Level1, "medium"))
}
