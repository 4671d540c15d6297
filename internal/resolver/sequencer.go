// Package resolver decides, for each device scope, which authentication
// state is current, which store is selected, and what the actor may see.
// Resolution runs through a strict phase machine; route guards only act on a
// ready snapshot, never on a partially resolved one.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/permission"
	"github.com/storefy/storefy/internal/session"
)

// Phase is the sequencer's position in the resolution pipeline. Phases run
// in declared order; no phase is skipped, though some complete instantly
// (loading-stores for a PIN session, whose store is fixed at login).
type Phase string

const (
	PhaseStarting       Phase = "starting"
	PhaseCheckingAuth   Phase = "checking-auth"
	PhaseCheckingPin    Phase = "checking-pin"
	PhaseLoadingStores  Phase = "loading-stores"
	PhaseRestoringState Phase = "restoring-state"
	PhaseReady          Phase = "ready"
	PhaseError          Phase = "error"
)

// StoreDirectory is the backend the resolver loads stores through.
// GetStoreByID returns (nil, nil) when the store does not exist; errors are
// reserved for the backend being unreachable.
type StoreDirectory interface {
	ListStoresForIdentity(ctx context.Context, userID string) ([]model.Store, error)
	GetStoreByID(ctx context.Context, id string) (*model.Store, error)
}

// Config carries resolver timing.
type Config struct {
	// StoreLoadTimeout bounds each backend call so a hung load surfaces as
	// an error instead of pinning the sequencer in loading-stores forever.
	StoreLoadTimeout time.Duration
}

// DefaultConfig returns the production timing.
func DefaultConfig() Config {
	return Config{StoreLoadTimeout: 20 * time.Second}
}

// Snapshot is the sequencer's externally visible state. Everything past
// Phase/Err is only meaningful when Phase is ready.
type Snapshot struct {
	Phase      Phase
	Err        error
	Generation uint64

	AuthType model.AuthType
	Identity *model.Identity
	Pin      *model.PinSession
	Store    *model.Store
	Role     model.Role
	Pages    map[permission.Page]bool

	// StoreChoices is populated for an identity session with no resolved
	// store, so the caller can render a store picker.
	StoreChoices []model.Store

	// PinInvalidated marks that a PIN session was cleared during this
	// resolution because its store no longer exists.
	PinInvalidated bool
}

// Ready reports whether guards may act on this snapshot.
func (s Snapshot) Ready() bool { return s.Phase == PhaseReady }

// Sequencer resolves one device scope. All state lives on the instance, so
// tests construct isolated sequencers with their own stores and directories.
type Sequencer struct {
	scope    string
	sessions *session.Store
	dir      StoreDirectory
	cfg      Config

	mu          sync.Mutex
	snap        Snapshot
	generation  uint64
	fingerprint string
	dirty       bool
	onPhase     func(Phase)
}

// NewSequencer builds a sequencer for one scope.
func NewSequencer(scope string, sessions *session.Store, dir StoreDirectory, cfg Config) *Sequencer {
	if cfg.StoreLoadTimeout <= 0 {
		cfg = DefaultConfig()
	}
	return &Sequencer{
		scope:    scope,
		sessions: sessions,
		dir:      dir,
		cfg:      cfg,
		snap:     Snapshot{Phase: PhaseStarting},
	}
}

// Sessions exposes the scope's session store (PIN refresh on activity,
// expiry checks).
func (q *Sequencer) Sessions() *session.Store { return q.sessions }

// OnPhase registers an observer for phase transitions. Tests only.
func (q *Sequencer) OnPhase(fn func(Phase)) {
	q.mu.Lock()
	q.onPhase = fn
	q.mu.Unlock()
}

// Snapshot returns the current state without resolving.
func (q *Sequencer) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snap
}

// Invalidate forces the next Ensure to re-resolve. Called when session
// state changed out-of-band: PIN login/logout, expiry, a broadcast from
// another gateway instance.
func (q *Sequencer) Invalidate() {
	q.mu.Lock()
	q.dirty = true
	q.mu.Unlock()
}

// Ensure returns a settled snapshot for the given identity, re-running the
// pipeline when the identity changed or the scope was invalidated. Identity
// verification has already settled by the time Ensure runs (the auth
// middleware is the gateway's equivalent of awaiting the auth service's own
// bootstrap), which is what keeps auth strictly ahead of store loading.
func (q *Sequencer) Ensure(ctx context.Context, ident *model.Identity) Snapshot {
	fp := fingerprintOf(ident)
	q.mu.Lock()
	settled := q.snap.Phase == PhaseReady || q.snap.Phase == PhaseError
	if settled && q.fingerprint == fp && !q.dirty {
		snap := q.snap
		q.mu.Unlock()
		return snap
	}
	// Full recompute: role and store are interdependent, so partial
	// patching of a ready snapshot is not allowed.
	q.generation++
	gen := q.generation
	q.fingerprint = fp
	q.dirty = false
	q.mu.Unlock()
	return q.resolve(ctx, ident, gen)
}

// Retry resets to starting and re-runs the pipeline. Idempotent, callable
// from the error phase, and the recovery path after a backend outage.
func (q *Sequencer) Retry(ctx context.Context, ident *model.Identity) Snapshot {
	q.mu.Lock()
	q.generation++
	gen := q.generation
	q.fingerprint = fingerprintOf(ident)
	q.dirty = false
	q.snap = Snapshot{Phase: PhaseStarting, Generation: gen}
	q.mu.Unlock()
	return q.resolve(ctx, ident, gen)
}

// SelectStore records an explicit store choice for the identity, after
// verifying membership against a fresh store list.
func (q *Sequencer) SelectStore(ctx context.Context, ident *model.Identity, storeID string) (*model.Store, error) {
	if ident == nil {
		return nil, ErrNoIdentity
	}
	stores, err := q.listStores(ctx, ident.ID)
	if err != nil {
		return nil, &StoreLoadError{Op: "list stores", Err: err}
	}
	st := findStore(stores, storeID)
	if st == nil {
		return nil, ErrNotMember
	}
	if err := q.sessions.SaveStoreSelection(ctx, model.StoreSelection{StoreID: st.ID, UserID: ident.ID}); err != nil {
		return nil, err
	}
	q.Invalidate()
	return st, nil
}

// EndPinSession clears the scope's PIN session and forces re-resolution.
func (q *Sequencer) EndPinSession(ctx context.Context) error {
	if err := q.sessions.ClearPinSession(ctx); err != nil {
		return err
	}
	q.Invalidate()
	return nil
}

func (q *Sequencer) resolve(ctx context.Context, ident *model.Identity, gen uint64) Snapshot {
	if !q.setPhase(gen, PhaseCheckingAuth) {
		return q.Snapshot()
	}
	if !q.setPhase(gen, PhaseCheckingPin) {
		return q.Snapshot()
	}

	pin, err := q.sessions.PinSession(ctx)
	if err != nil {
		return q.fail(gen, &StoreLoadError{Op: "read pin session", Err: err})
	}

	pinInvalidated := false
	if pin != nil {
		st, err := q.storeByID(ctx, pin.StoreID)
		if err != nil {
			// The till's store could not be loaded. This is an outage, not
			// an unselected state: surface it, do not show a store picker.
			return q.fail(gen, &StoreLoadError{Op: "load till store", Err: err})
		}
		if st == nil {
			// The store was deleted out from under the till. Drop the
			// session rather than keep routing to a store that is gone.
			_ = q.sessions.ClearPinSession(ctx)
			pinInvalidated = true
			pin = nil
		} else {
			if !q.setPhase(gen, PhaseLoadingStores) {
				return q.Snapshot()
			}
			if !q.setPhase(gen, PhaseRestoringState) {
				return q.Snapshot()
			}
			return q.commit(gen, Snapshot{
				Phase:    PhaseReady,
				AuthType: model.AuthPin,
				Identity: ident,
				Pin:      pin,
				Store:    st,
				Role:     pin.Role,
				Pages:    permission.Set(pin.Role),
			})
		}
	}

	if ident == nil {
		if !q.setPhase(gen, PhaseLoadingStores) {
			return q.Snapshot()
		}
		if !q.setPhase(gen, PhaseRestoringState) {
			return q.Snapshot()
		}
		return q.commit(gen, Snapshot{
			Phase:          PhaseReady,
			AuthType:       model.AuthNone,
			PinInvalidated: pinInvalidated,
		})
	}

	if !q.setPhase(gen, PhaseLoadingStores) {
		return q.Snapshot()
	}
	stores, err := q.listStores(ctx, ident.ID)
	if err != nil {
		return q.fail(gen, &StoreLoadError{Op: "list stores", Err: err})
	}

	if !q.setPhase(gen, PhaseRestoringState) {
		return q.Snapshot()
	}
	sel, err := q.sessions.StoreSelection(ctx)
	if err != nil {
		return q.fail(gen, &StoreLoadError{Op: "read store selection", Err: err})
	}

	var current *model.Store
	if sel != nil {
		switch {
		case !sel.Legacy() && sel.UserID != ident.ID:
			// Another account's selection. Discard, never reassign.
			_ = q.sessions.ClearStoreSelection(ctx)
		default:
			if st := findStore(stores, sel.StoreID); st != nil {
				current = st
				if sel.Legacy() {
					// Upgrade the bare-id record now that ownership is known.
					_ = q.sessions.SaveStoreSelection(ctx, model.StoreSelection{StoreID: st.ID, UserID: ident.ID})
				}
			} else {
				// The referenced store no longer exists for this identity.
				_ = q.sessions.ClearStoreSelection(ctx)
			}
		}
	}
	if current == nil && len(stores) == 1 {
		current = &stores[0]
		if err := q.sessions.SaveStoreSelection(ctx, model.StoreSelection{StoreID: current.ID, UserID: ident.ID}); err != nil {
			return q.fail(gen, &StoreLoadError{Op: "persist store selection", Err: err})
		}
	}

	snap := Snapshot{
		Phase:          PhaseReady,
		AuthType:       model.AuthIdentity,
		Identity:       ident,
		StoreChoices:   stores,
		PinInvalidated: pinInvalidated,
	}
	if current != nil {
		snap.Store = current
		snap.Role = current.Role
		// Permissions are recomputed in the same step as the role; a stale
		// set must never outlive a store switch.
		snap.Pages = permission.Set(current.Role)
	}
	return q.commit(gen, snap)
}

func (q *Sequencer) storeByID(ctx context.Context, id string) (*model.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.StoreLoadTimeout)
	defer cancel()
	return q.dir.GetStoreByID(ctx, id)
}

func (q *Sequencer) listStores(ctx context.Context, userID string) ([]model.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.StoreLoadTimeout)
	defer cancel()
	return q.dir.ListStoresForIdentity(ctx, userID)
}

// setPhase publishes an in-progress phase. Returns false when this
// resolution has been superseded, in which case the caller must abandon it.
func (q *Sequencer) setPhase(gen uint64, phase Phase) bool {
	q.mu.Lock()
	if gen != q.generation {
		q.mu.Unlock()
		return false
	}
	q.snap = Snapshot{Phase: phase, Generation: gen}
	fn := q.onPhase
	q.mu.Unlock()
	if fn != nil {
		fn(phase)
	}
	return true
}

// commit installs a settled snapshot unless a newer resolution started in
// the meantime; a stale result must never overwrite fresher state.
func (q *Sequencer) commit(gen uint64, snap Snapshot) Snapshot {
	q.mu.Lock()
	if gen != q.generation {
		latest := q.snap
		q.mu.Unlock()
		return latest
	}
	snap.Generation = gen
	q.snap = snap
	fn := q.onPhase
	q.mu.Unlock()
	if fn != nil {
		fn(snap.Phase)
	}
	return snap
}

func (q *Sequencer) fail(gen uint64, err error) Snapshot {
	return q.commit(gen, Snapshot{Phase: PhaseError, Err: err})
}

func findStore(stores []model.Store, id string) *model.Store {
	for i := range stores {
		if stores[i].ID == id {
			return &stores[i]
		}
	}
	return nil
}

func fingerprintOf(ident *model.Identity) string {
	if ident == nil {
		return ""
	}
	return ident.ID
}
