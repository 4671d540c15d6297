package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/permission"
	"github.com/storefy/storefy/internal/session"
)

// fakeDirectory is an in-memory StoreDirectory with switchable failures.
type fakeDirectory struct {
	memberships map[string][]model.Store // userID -> stores with roles
	stores      map[string]model.Store   // id -> store, for GetStoreByID
	listErr     error
	getErr      error
}

func (d *fakeDirectory) ListStoresForIdentity(_ context.Context, userID string) ([]model.Store, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.memberships[userID], nil
}

func (d *fakeDirectory) GetStoreByID(_ context.Context, id string) (*model.Store, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	st, ok := d.stores[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func storeA(role model.Role) model.Store {
	return model.Store{ID: "s-a", OwnerUserID: "u-1", Name: "Main St", Slug: "main-st", Role: role}
}

func storeB(role model.Role) model.Store {
	return model.Store{ID: "s-b", OwnerUserID: "u-1", Name: "Harbour", Slug: "harbour", Role: role}
}

func newTestSequencer(dir *fakeDirectory) (*Sequencer, *session.Store) {
	sess := session.NewStore(session.NewMemoryKV(), "dev-1", session.DefaultConfig())
	seq := NewSequencer("dev-1", sess, dir, Config{StoreLoadTimeout: time.Second})
	return seq, sess
}

func ident1() *model.Identity { return &model.Identity{ID: "u-1", Email: "owner@example.com"} }

func TestUnauthenticatedResolvesToNone(t *testing.T) {
	seq, _ := newTestSequencer(&fakeDirectory{})

	var phases []Phase
	seq.OnPhase(func(p Phase) { phases = append(phases, p) })

	snap := seq.Ensure(context.Background(), nil)

	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, model.AuthNone, snap.AuthType)
	assert.Nil(t, snap.Store)
	assert.False(t, snap.PinInvalidated)
	assert.Equal(t, []Phase{
		PhaseCheckingAuth, PhaseCheckingPin, PhaseLoadingStores, PhaseRestoringState, PhaseReady,
	}, phases)
}

func TestReturningOwnerRestoresSelection(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	require.NoError(t, sess.SaveStoreSelection(ctx, model.StoreSelection{StoreID: "s-b", UserID: "u-1"}))

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	assert.Equal(t, model.AuthIdentity, snap.AuthType)
	require.NotNil(t, snap.Store)
	assert.Equal(t, "s-b", snap.Store.ID)
	assert.Equal(t, model.RoleOwner, snap.Role)
	assert.True(t, snap.Pages[permission.PageSettings])
	assert.Len(t, snap.StoreChoices, 2)
}

func TestSingleStoreAutoSelectedAndPersisted(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleManager)},
	}}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	require.NotNil(t, snap.Store)
	assert.Equal(t, "s-a", snap.Store.ID)
	assert.Equal(t, model.RoleManager, snap.Role)

	sel, err := sess.StoreSelection(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "s-a", sel.StoreID)
	assert.Equal(t, "u-1", sel.UserID)
}

func TestMultipleStoresNoneSelectedOffersChoices(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	seq, _ := newTestSequencer(dir)

	snap := seq.Ensure(context.Background(), ident1())

	require.True(t, snap.Ready())
	assert.Equal(t, model.AuthIdentity, snap.AuthType)
	assert.Nil(t, snap.Store, "no auto-select with more than one store")
	assert.Len(t, snap.StoreChoices, 2)
	assert.Empty(t, snap.Pages)
}

func TestOtherAccountsSelectionDiscarded(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	require.NoError(t, sess.SaveStoreSelection(ctx, model.StoreSelection{StoreID: "s-a", UserID: "someone-else"}))

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	assert.Nil(t, snap.Store, "foreign selection must not be adopted")

	sel, err := sess.StoreSelection(ctx)
	require.NoError(t, err)
	assert.Nil(t, sel, "foreign selection must be cleared, not reassigned")
}

func TestVanishedSelectionCleared(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	require.NoError(t, sess.SaveStoreSelection(ctx, model.StoreSelection{StoreID: "s-gone", UserID: "u-1"}))

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	assert.Nil(t, snap.Store)
	sel, err := sess.StoreSelection(ctx)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestLegacySelectionAdoptedAndUpgraded(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	kv := session.NewMemoryKV()
	sess := session.NewStore(kv, "dev-1", session.DefaultConfig())
	seq := NewSequencer("dev-1", sess, dir, Config{StoreLoadTimeout: time.Second})
	ctx := context.Background()

	// Record written by a release before selections carried an owner.
	require.NoError(t, kv.Set(ctx, "device:dev-1:storefy_selected_store", "s-a", 0))

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	require.NotNil(t, snap.Store)
	assert.Equal(t, "s-a", snap.Store.ID)

	sel, err := sess.StoreSelection(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.False(t, sel.Legacy(), "adopted record must be rewritten in the current format")
	assert.Equal(t, "u-1", sel.UserID)
}

func TestLegacySelectionForUnlistedStoreNotAdopted(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	kv := session.NewMemoryKV()
	sess := session.NewStore(kv, "dev-1", session.DefaultConfig())
	seq := NewSequencer("dev-1", sess, dir, Config{StoreLoadTimeout: time.Second})
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "device:dev-1:storefy_selected_store", "s-foreign", 0))

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	assert.Nil(t, snap.Store)
}

func TestPinSessionOutranksIdentity(t *testing.T) {
	dir := &fakeDirectory{
		memberships: map[string][]model.Store{"u-1": {storeA(model.RoleOwner)}},
		stores:      map[string]model.Store{"s-a": storeA("")},
	}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-9", UserID: "u-1", StoreID: "s-a",
		Role: model.RoleCashier, Name: "Dana", StoreName: "Main St",
	})
	require.NoError(t, err)

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	assert.Equal(t, model.AuthPin, snap.AuthType)
	require.NotNil(t, snap.Pin)
	assert.Equal(t, "m-9", snap.Pin.MemberID)
	assert.Equal(t, model.RoleCashier, snap.Role)
	assert.True(t, snap.Pages[permission.PagePOS])
	assert.False(t, snap.Pages[permission.PageReports], "cashier must not see reports")
}

func TestDeletedPinStoreDowngradesToIdentity(t *testing.T) {
	dir := &fakeDirectory{
		memberships: map[string][]model.Store{"u-1": {storeA(model.RoleOwner)}},
		stores:      map[string]model.Store{}, // the till's store is gone
	}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-9", UserID: "u-1", StoreID: "s-deleted",
		Role: model.RoleCashier, Name: "Dana",
	})
	require.NoError(t, err)

	snap := seq.Ensure(ctx, ident1())

	require.True(t, snap.Ready())
	assert.Equal(t, model.AuthIdentity, snap.AuthType)
	assert.True(t, snap.PinInvalidated)
	assert.Nil(t, snap.Pin)

	pin, err := sess.PinSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, pin, "the dead session must be cleared")
}

func TestDeletedPinStoreWithoutIdentityResolvesToNone(t *testing.T) {
	dir := &fakeDirectory{stores: map[string]model.Store{}}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-9", UserID: "u-1", StoreID: "s-deleted",
		Role: model.RoleCashier, Name: "Dana",
	})
	require.NoError(t, err)

	snap := seq.Ensure(ctx, nil)

	require.True(t, snap.Ready())
	assert.Equal(t, model.AuthNone, snap.AuthType)
	assert.True(t, snap.PinInvalidated)
}

func TestBackendFailureSettlesInErrorPhaseAndRetryRecovers(t *testing.T) {
	dir := &fakeDirectory{
		memberships: map[string][]model.Store{"u-1": {storeA(model.RoleOwner)}},
		listErr:     errors.New("db down"),
	}
	seq, _ := newTestSequencer(dir)
	ctx := context.Background()

	snap := seq.Ensure(ctx, ident1())
	assert.Equal(t, PhaseError, snap.Phase)
	var loadErr *StoreLoadError
	require.ErrorAs(t, snap.Err, &loadErr)

	// Settled error: no re-resolution until retried or invalidated.
	again := seq.Ensure(ctx, ident1())
	assert.Equal(t, snap.Generation, again.Generation)

	dir.listErr = nil
	recovered := seq.Retry(ctx, ident1())
	require.True(t, recovered.Ready())
	require.NotNil(t, recovered.Store)
	assert.Equal(t, "s-a", recovered.Store.ID)
}

func TestEnsureCachesUntilInvalidated(t *testing.T) {
	dir := &fakeDirectory{
		memberships: map[string][]model.Store{"u-1": {storeA(model.RoleOwner)}},
		stores:      map[string]model.Store{"s-a": storeA("")},
	}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	first := seq.Ensure(ctx, ident1())
	require.True(t, first.Ready())
	assert.Equal(t, model.AuthIdentity, first.AuthType)

	// A PIN login happened out-of-band; without Invalidate the cached
	// identity snapshot is still served.
	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-9", UserID: "u-1", StoreID: "s-a",
		Role: model.RoleCashier, Name: "Dana",
	})
	require.NoError(t, err)

	cached := seq.Ensure(ctx, ident1())
	assert.Equal(t, first.Generation, cached.Generation)
	assert.Equal(t, model.AuthIdentity, cached.AuthType)

	seq.Invalidate()
	fresh := seq.Ensure(ctx, ident1())
	assert.Greater(t, fresh.Generation, first.Generation)
	assert.Equal(t, model.AuthPin, fresh.AuthType)
}

func TestIdentityChangeForcesReResolution(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner)},
		"u-2": {storeB(model.RoleManager)},
	}}
	seq, _ := newTestSequencer(dir)
	ctx := context.Background()

	first := seq.Ensure(ctx, ident1())
	require.True(t, first.Ready())

	second := seq.Ensure(ctx, &model.Identity{ID: "u-2", Email: "m@example.com"})
	require.True(t, second.Ready())
	assert.Greater(t, second.Generation, first.Generation)
	require.NotNil(t, second.Store)
	assert.Equal(t, "s-b", second.Store.ID)
	assert.Equal(t, model.RoleManager, second.Role)
}

func TestSelectStore(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner), storeB(model.RoleOwner)},
	}}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	_, err := seq.SelectStore(ctx, nil, "s-a")
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = seq.SelectStore(ctx, ident1(), "s-foreign")
	assert.ErrorIs(t, err, ErrNotMember)

	st, err := seq.SelectStore(ctx, ident1(), "s-b")
	require.NoError(t, err)
	assert.Equal(t, "s-b", st.ID)

	sel, err := sess.StoreSelection(ctx)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "s-b", sel.StoreID)

	snap := seq.Ensure(ctx, ident1())
	require.True(t, snap.Ready())
	require.NotNil(t, snap.Store)
	assert.Equal(t, "s-b", snap.Store.ID)
}

func TestEndPinSessionFallsBackToIdentity(t *testing.T) {
	dir := &fakeDirectory{
		memberships: map[string][]model.Store{"u-1": {storeA(model.RoleOwner)}},
		stores:      map[string]model.Store{"s-a": storeA("")},
	}
	seq, sess := newTestSequencer(dir)
	ctx := context.Background()

	_, err := sess.CreatePinSession(ctx, model.PinSession{
		MemberID: "m-9", UserID: "u-1", StoreID: "s-a",
		Role: model.RoleCashier, Name: "Dana",
	})
	require.NoError(t, err)

	snap := seq.Ensure(ctx, ident1())
	assert.Equal(t, model.AuthPin, snap.AuthType)

	require.NoError(t, seq.EndPinSession(ctx))

	snap = seq.Ensure(ctx, ident1())
	require.True(t, snap.Ready())
	assert.Equal(t, model.AuthIdentity, snap.AuthType)
	require.NotNil(t, snap.Store)
	assert.Equal(t, model.RoleOwner, snap.Role)
}

func TestPhaseOrderForIdentityResolution(t *testing.T) {
	dir := &fakeDirectory{memberships: map[string][]model.Store{
		"u-1": {storeA(model.RoleOwner)},
	}}
	seq, _ := newTestSequencer(dir)

	var phases []Phase
	seq.OnPhase(func(p Phase) { phases = append(phases, p) })

	seq.Ensure(context.Background(), ident1())

	assert.Equal(t, []Phase{
		PhaseCheckingAuth, PhaseCheckingPin, PhaseLoadingStores, PhaseRestoringState, PhaseReady,
	}, phases)
}
