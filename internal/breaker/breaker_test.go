package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, resetTimeout time.Duration) (*Breaker, *time.Time) {
	b := New(threshold, resetTimeout)
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestClosedUntilThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow(), "closed breaker must admit calls")
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
	}

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "open breaker must short-circuit")
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures do not reach the threshold after the reset.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestHalfOpenProbeAfterResetTimeout(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.Allow())

	*now = now.Add(29 * time.Second)
	assert.False(t, b.Allow(), "timer has not elapsed yet")

	*now = now.Add(time.Second)
	require.True(t, b.Allow(), "first call after the timeout is the trial")
	assert.False(t, b.Allow(), "only one probe may be in flight")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestFailedProbeReopensAndRestartsTimer(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	b.RecordFailure()
	*now = now.Add(30 * time.Second)
	require.True(t, b.Allow())
	b.RecordFailure()

	require.Equal(t, StateOpen, b.State())
	*now = now.Add(29 * time.Second)
	assert.False(t, b.Allow(), "timer restarted at probe failure")
	*now = now.Add(time.Second)
	assert.True(t, b.Allow())
}

func TestDiscardReleasesProbeWithoutCounting(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)

	b.RecordFailure()
	*now = now.Add(30 * time.Second)
	require.True(t, b.Allow())

	b.Discard()
	snap := b.Snapshot()
	assert.Equal(t, "half-open", snap.State)
	assert.True(t, b.Allow(), "next call probes again after a discard")
}

func TestResetForcesClosed(t *testing.T) {
	b, _ := newTestBreaker(1, time.Hour)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
	assert.Nil(t, b.Snapshot().OpenedAt)
}

func TestSnapshotFields(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute)
	b.RecordFailure()

	snap := b.Snapshot()
	assert.Equal(t, "closed", snap.State)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
	assert.Nil(t, snap.OpenedAt)

	b.RecordFailure()
	snap = b.Snapshot()
	assert.Equal(t, "open", snap.State)
	require.NotNil(t, snap.OpenedAt)
	assert.Equal(t, *now, *snap.OpenedAt)
}

func TestGroupIsolatesServices(t *testing.T) {
	g := NewGroup(1, time.Hour)

	g.For("chat").RecordFailure()
	assert.Equal(t, StateOpen, g.For("chat").State())
	assert.Equal(t, StateClosed, g.For("budget").State())
	assert.True(t, g.For("budget").Allow())

	states := g.States()
	require.Len(t, states, 2)
	assert.Equal(t, "open", states["chat"].State)
	assert.Equal(t, "closed", states["budget"].State)
}

func TestGroupReset(t *testing.T) {
	g := NewGroup(1, time.Hour)
	assert.False(t, g.Reset("unknown"))

	g.For("chat").RecordFailure()
	require.True(t, g.Reset("chat"))
	assert.Equal(t, StateClosed, g.For("chat").State())
}

func TestGroupForReturnsSameInstance(t *testing.T) {
	g := NewGroup(3, time.Minute)
	assert.Same(t, g.For("chat"), g.For("chat"))
}
