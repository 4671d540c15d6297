package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/session"
)

func TestRegistryReusesSequencerPerScope(t *testing.T) {
	reg := NewRegistry(session.NewMemoryKV(), &fakeDirectory{},
		session.DefaultConfig(), Config{StoreLoadTimeout: time.Second})

	a := reg.Sequencer("till-1")
	b := reg.Sequencer("till-1")
	c := reg.Sequencer("till-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestRegistryInvalidateUnknownScopeIsNoop(t *testing.T) {
	reg := NewRegistry(session.NewMemoryKV(), &fakeDirectory{},
		session.DefaultConfig(), Config{StoreLoadTimeout: time.Second})
	reg.Invalidate("never-seen")
}

func TestSweepFiresExpiryHookAndInvalidates(t *testing.T) {
	dir := &fakeDirectory{stores: map[string]model.Store{"s-a": storeA("")}}
	reg := NewRegistry(session.NewMemoryKV(), dir,
		session.DefaultConfig(), Config{StoreLoadTimeout: time.Second})

	var expiredScopes []string
	reg.OnPinExpired = func(scope string) { expiredScopes = append(expiredScopes, scope) }

	seq := reg.Sequencer("till-1")
	sess := seq.Sessions()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sess.SetClock(func() time.Time { return now })

	ctx := context.Background()
	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-1", StoreID: "s-a", Role: model.RoleCashier, Name: "Dana",
	})
	require.NoError(t, err)

	first := seq.Ensure(ctx, nil)
	assert.Equal(t, model.AuthPin, first.AuthType)

	// The shift ends; the next sweep observes the expiry exactly once.
	now = now.Add(9 * time.Hour)
	reg.sweep(ctx)
	reg.sweep(ctx)

	assert.Equal(t, []string{"till-1"}, expiredScopes)

	// Expiry invalidated the cached resolution.
	after := seq.Ensure(ctx, nil)
	assert.Greater(t, after.Generation, first.Generation)
	assert.Equal(t, model.AuthNone, after.AuthType)
}

func TestRegistryWarningHook(t *testing.T) {
	dir := &fakeDirectory{stores: map[string]model.Store{"s-a": storeA("")}}
	reg := NewRegistry(session.NewMemoryKV(), dir,
		session.DefaultConfig(), Config{StoreLoadTimeout: time.Second})

	type warning struct {
		scope   string
		minutes int
	}
	var got []warning
	reg.OnPinWarning = func(scope string, minutesLeft int) {
		got = append(got, warning{scope, minutesLeft})
	}

	seq := reg.Sequencer("till-1")
	sess := seq.Sessions()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sess.SetClock(func() time.Time { return now })

	ctx := context.Background()
	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-1", StoreID: "s-a", Role: model.RoleCashier, Name: "Dana",
	})
	require.NoError(t, err)

	now = now.Add(8*time.Hour - 3*time.Minute)
	reg.sweep(ctx)
	reg.sweep(ctx)

	require.Len(t, got, 1)
	assert.Equal(t, "till-1", got[0].scope)
	assert.Equal(t, 3, got[0].minutes)
}
