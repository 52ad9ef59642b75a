package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	values map[string]string
}

func newFakeGate() *fakeGate {
	return &fakeGate{values: make(map[string]string)}
}

func (g *fakeGate) Exists(_ context.Context, key string) (bool, error) {
	_, ok := g.values[key]
	return ok, nil
}

func (g *fakeGate) SetWithTTL(_ context.Context, key, value string, _ time.Duration) error {
	g.values[key] = value
	return nil
}

func (g *fakeGate) Delete(_ context.Context, key string) error {
	delete(g.values, key)
	return nil
}

func TestReleaseConfirmKeyIsScopedToCallerAndEscrow(t *testing.T) {
	c := &Coordinator{}
	require.Equal(t, "release_confirm:buyer-1:escrow-1", c.releaseConfirmKey("buyer-1", "escrow-1"))
	require.NotEqual(t, c.releaseConfirmKey("buyer-1", "escrow-1"), c.releaseConfirmKey("buyer-2", "escrow-1"))
}

// TestRequestReleaseFirstTapOnlyArmsGate exercises request_release's
// double-tap behavior on the first call: it must arm the confirmation gate
// and return confirmed=false without touching the database, since a
// second call within the window is what actually performs the
// FUNDS_LOCKED -> RELEASE_REQUESTED transition.
func TestRequestReleaseFirstTapOnlyArmsGate(t *testing.T) {
	gate := newFakeGate()
	c := &Coordinator{Gate: gate}

	confirmed, autoPaid, err := c.RequestRelease(context.Background(), "escrow-1", "buyer-1")
	require.NoError(t, err)
	require.False(t, confirmed)
	require.False(t, autoPaid)

	exists, _ := gate.Exists(context.Background(), c.releaseConfirmKey("buyer-1", "escrow-1"))
	require.True(t, exists, "first tap should arm the release confirmation gate")
}
