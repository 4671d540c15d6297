package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefy/storefy/internal/model"
)

func testConfig() Config {
	return Config{
		PinTTL:           8 * time.Hour,
		WarningThreshold: 5 * time.Minute,
		CheckInterval:    45 * time.Second,
	}
}

func newTestStore(t *testing.T) (*Store, *MemoryKV, *time.Time) {
	t.Helper()
	kv := NewMemoryKV()
	s := NewStore(kv, "till-1", testConfig())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	return s, kv, &now
}

func cashierFields() model.PinSession {
	return model.PinSession{
		MemberID:  "m-1",
		UserID:    "u-1",
		StoreID:   "s-1",
		Role:      model.RoleCashier,
		Name:      "Dana",
		StoreName: "Main St",
	}
}

func TestCreateAndReadPinSession(t *testing.T) {
	s, _, now := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)
	assert.Equal(t, *now, created.LoginTime)
	assert.Equal(t, now.Add(8*time.Hour), created.ExpiresAt)

	got, err := s.PinSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m-1", got.MemberID)
	assert.Equal(t, model.RoleCashier, got.Role)
	assert.Equal(t, "Main St", got.StoreName)
}

func TestPinSessionAbsent(t *testing.T) {
	s, _, _ := newTestStore(t)
	got, err := s.PinSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCorruptPinRecordTreatedAsAbsentAndDeleted(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	for _, raw := range []string{
		"not json",
		`{"member_id":"","store_id":"s-1","expires_at":"2026-03-02T17:00:00Z","role":"cashier"}`,
		`{"member_id":"m-1","store_id":"s-1","role":"cashier"}`,
		`{"member_id":"m-1","store_id":"s-1","expires_at":"2026-03-02T17:00:00Z","role":"admin"}`,
	} {
		require.NoError(t, kv.Set(ctx, "device:till-1:pin_session", raw, 0))

		got, err := s.PinSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, got, "raw=%s", raw)

		_, err = kv.Get(ctx, "device:till-1:pin_session")
		assert.ErrorIs(t, err, ErrKeyMissing, "corrupt record must be removed")
	}
}

func TestExpiredPinSessionDeletedAndCallbackFiredOnce(t *testing.T) {
	s, kv, now := newTestStore(t)
	ctx := context.Background()

	fired := 0
	s.OnSessionExpired(func() { fired++ })

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)

	*now = now.Add(9 * time.Hour)

	got, err := s.PinSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, fired)

	_, err = kv.Get(ctx, "device:till-1:pin_session")
	assert.ErrorIs(t, err, ErrKeyMissing)

	// Further reads stay absent and the callback stays at one.
	got, err = s.PinSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, fired)
}

func TestRefreshExtendsExpiryFromNow(t *testing.T) {
	s, _, now := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)

	*now = now.Add(3 * time.Hour)
	refreshed, err := s.RefreshPinSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, *now, refreshed.LastActivity)
	assert.Equal(t, now.Add(8*time.Hour), refreshed.ExpiresAt)
}

func TestRefreshDoesNotResurrect(t *testing.T) {
	s, _, now := newTestStore(t)
	ctx := context.Background()

	// Absent: no-op, no error.
	got, err := s.RefreshPinSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Expired: also a no-op.
	_, err = s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)
	*now = now.Add(10 * time.Hour)
	got, err = s.RefreshPinSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClearPinSessionIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)

	require.NoError(t, s.ClearPinSession(ctx))
	require.NoError(t, s.ClearPinSession(ctx))

	got, err := s.PinSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreSelectionRoundTrip(t *testing.T) {
	s, _, now := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveStoreSelection(ctx, model.StoreSelection{StoreID: "s-1", UserID: "u-1"}))

	sel, err := s.StoreSelection(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "s-1", sel.StoreID)
	assert.Equal(t, "u-1", sel.UserID)
	assert.Equal(t, *now, sel.Timestamp)
	assert.False(t, sel.Legacy())
}

func TestLegacyBareStringSelectionDecoded(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	for _, raw := range []string{"s-legacy", `"s-legacy"`} {
		require.NoError(t, kv.Set(ctx, "device:till-1:storefy_selected_store", raw, 0))

		sel, err := s.StoreSelection(ctx)
		require.NoError(t, err)
		require.NotNil(t, sel, "raw=%s", raw)
		assert.Equal(t, "s-legacy", sel.StoreID)
		assert.True(t, sel.Legacy())
	}
}

func TestUnreadableSelectionDeleted(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "device:till-1:storefy_selected_store", `{"broken":`, 0))

	sel, err := s.StoreSelection(ctx)
	require.NoError(t, err)
	assert.Nil(t, sel)

	_, err = kv.Get(ctx, "device:till-1:storefy_selected_store")
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestSelectionSurvivesPinClear(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)
	require.NoError(t, s.SaveStoreSelection(ctx, model.StoreSelection{StoreID: "s-1", UserID: "u-1"}))

	require.NoError(t, s.ClearPinSession(ctx))

	sel, err := s.StoreSelection(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "s-1", sel.StoreID)
}

func TestWarningFiredOnceAndRearmedByRefresh(t *testing.T) {
	s, _, now := newTestStore(t)
	ctx := context.Background()

	var warnings []int
	s.OnSessionWarning(func(minutesLeft int) { warnings = append(warnings, minutesLeft) })

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)

	// Outside the threshold: silent.
	s.CheckExpiry(ctx)
	assert.Empty(t, warnings)

	// Inside the threshold: exactly one warning across repeated checks.
	*now = now.Add(8*time.Hour - 4*time.Minute)
	s.CheckExpiry(ctx)
	s.CheckExpiry(ctx)
	require.Len(t, warnings, 1)
	assert.Equal(t, 4, warnings[0])

	// Activity re-arms the warning for the extended session.
	_, err = s.RefreshPinSession(ctx)
	require.NoError(t, err)
	*now = now.Add(8*time.Hour - 2*time.Minute)
	s.CheckExpiry(ctx)
	require.Len(t, warnings, 2)
	assert.Equal(t, 2, warnings[1])
}

func TestCheckExpiryFiresExpiredAndDeletes(t *testing.T) {
	s, kv, now := newTestStore(t)
	ctx := context.Background()

	fired := 0
	s.OnSessionExpired(func() { fired++ })

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)

	*now = now.Add(9 * time.Hour)
	s.CheckExpiry(ctx)
	s.CheckExpiry(ctx)

	assert.Equal(t, 1, fired)
	_, err = kv.Get(ctx, "device:till-1:pin_session")
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestSnapshotReadsBothRecords(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreatePinSession(ctx, cashierFields())
	require.NoError(t, err)
	require.NoError(t, s.SaveStoreSelection(ctx, model.StoreSelection{StoreID: "s-1", UserID: "u-1"}))

	env, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, env.Pin)
	require.NotNil(t, env.Selection)
	assert.Equal(t, "m-1", env.Pin.MemberID)
	assert.Equal(t, "s-1", env.Selection.StoreID)
}
