// Package session owns the durable per-device session state: the PIN session
// a cashier opened on a shared till and the store selection an owner or
// manager made in the app. Both records live behind a single read/write path
// so they can never be updated half-way independently of each other. All
// decode failures are treated as "record absent" and the corrupt record is
// deleted so it cannot fail again on the next read.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/storefy/storefy/internal/model"
)

// Persisted key names. The selection key keeps its historical name because
// records written by earlier releases must stay readable.
const (
	keyPinSession    = "pin_session"
	keySelectedStore = "storefy_selected_store"
)

// kvGrace keeps an expired PIN record readable long enough for the periodic
// check to observe the expiry and fire the callback before Redis drops it.
const kvGrace = time.Hour

// Config carries the session timing knobs. They are configuration, not
// constants, so tests can shrink them to milliseconds.
type Config struct {
	PinTTL           time.Duration // absolute PIN session lifetime, extended on activity
	WarningThreshold time.Duration // remaining time at which the warning fires
	CheckInterval    time.Duration // cadence of the periodic expiry check
}

// DefaultConfig matches a retail work shift: 8h sessions, a 5 minute
// warning, checked every 45 seconds (coarse on purpose, to tolerate
// backgrounded tabs and paused devices).
func DefaultConfig() Config {
	return Config{
		PinTTL:           8 * time.Hour,
		WarningThreshold: 5 * time.Minute,
		CheckInterval:    45 * time.Second,
	}
}

// Envelope is the one value object view over everything persisted for a
// scope. Version counts the record format, not the content.
type Envelope struct {
	Version   int
	Pin       *model.PinSession
	Selection *model.StoreSelection
}

// Store reads and writes the session records of a single device scope.
// It is safe for concurrent use.
type Store struct {
	kv    KV
	scope string
	cfg   Config
	clock func() time.Time

	mu           sync.Mutex
	warned       bool
	expiredFired bool
	onWarning    func(minutesLeft int)
	onExpired    func()
}

// NewStore binds a Store to one device scope.
func NewStore(kv KV, scope string, cfg Config) *Store {
	if cfg.PinTTL <= 0 {
		cfg = DefaultConfig()
	}
	return &Store{kv: kv, scope: scope, cfg: cfg, clock: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(clock func() time.Time) { s.clock = clock }

// OnSessionWarning registers the callback fired once when remaining session
// time first crosses the warning threshold.
func (s *Store) OnSessionWarning(fn func(minutesLeft int)) {
	s.mu.Lock()
	s.onWarning = fn
	s.mu.Unlock()
}

// OnSessionExpired registers the callback fired exactly once at expiry.
func (s *Store) OnSessionExpired(fn func()) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

func (s *Store) key(name string) string {
	return "device:" + s.scope + ":" + name
}

// PinSession returns the current PIN session, or nil when there is none.
// Malformed and expired records are deleted as a side effect and reported as
// absent; neither is an error the caller should ever see.
func (s *Store) PinSession(ctx context.Context) (*model.PinSession, error) {
	raw, err := s.kv.Get(ctx, s.key(keyPinSession))
	if errors.Is(err, ErrKeyMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pin, ok := decodePin(raw)
	if !ok {
		// Corrupt record: drop it so it cannot fail repeatedly.
		_ = s.kv.Del(ctx, s.key(keyPinSession))
		return nil, nil
	}
	if pin.Expired(s.clock()) {
		s.fireExpired()
		if err := s.kv.Del(ctx, s.key(keyPinSession)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return pin, nil
}

// CreatePinSession writes a new PIN session. Timestamps and expiry are
// computed here; callers supply the member/store fields only.
func (s *Store) CreatePinSession(ctx context.Context, fields model.PinSession) (*model.PinSession, error) {
	now := s.clock().UTC()
	fields.LoginTime = now
	fields.LastActivity = now
	fields.ExpiresAt = now.Add(s.cfg.PinTTL)

	if err := s.writePin(ctx, &fields); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.warned = false
	s.expiredFired = false
	s.mu.Unlock()
	return &fields, nil
}

// RefreshPinSession bumps last-activity and extends the expiry by the full
// TTL from now. Refreshing an absent or already-expired session is a no-op,
// never a resurrection.
func (s *Store) RefreshPinSession(ctx context.Context) (*model.PinSession, error) {
	pin, err := s.PinSession(ctx)
	if err != nil || pin == nil {
		return nil, err
	}
	now := s.clock().UTC()
	pin.LastActivity = now
	pin.ExpiresAt = now.Add(s.cfg.PinTTL)
	if err := s.writePin(ctx, pin); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.warned = false
	s.mu.Unlock()
	return pin, nil
}

// ClearPinSession deletes the PIN session. Idempotent.
func (s *Store) ClearPinSession(ctx context.Context) error {
	return s.kv.Del(ctx, s.key(keyPinSession))
}

func (s *Store) writePin(ctx context.Context, pin *model.PinSession) error {
	b, err := json.Marshal(pin)
	if err != nil {
		return err
	}
	ttl := pin.ExpiresAt.Sub(s.clock()) + kvGrace
	return s.kv.Set(ctx, s.key(keyPinSession), string(b), ttl)
}

// StoreSelection returns the persisted store choice, or nil when none is
// recorded. The legacy bare-string form (just a store id) is decoded into a
// selection with an empty owner, which the resolver only adopts after
// re-validating against the identity's own store list.
func (s *Store) StoreSelection(ctx context.Context) (*model.StoreSelection, error) {
	raw, err := s.kv.Get(ctx, s.key(keySelectedStore))
	if errors.Is(err, ErrKeyMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sel model.StoreSelection
	if err := json.Unmarshal([]byte(raw), &sel); err == nil && sel.StoreID != "" {
		return &sel, nil
	}
	// Legacy: a bare store id, possibly quoted.
	id := strings.Trim(strings.TrimSpace(raw), `"`)
	if id != "" && !strings.ContainsAny(id, "{}[]") {
		return &model.StoreSelection{StoreID: id}, nil
	}
	_ = s.kv.Del(ctx, s.key(keySelectedStore))
	return nil, nil
}

// SaveStoreSelection persists a selection in the current format, stamping it
// with now. Saving a legacy record upgrades it in place.
func (s *Store) SaveStoreSelection(ctx context.Context, sel model.StoreSelection) error {
	sel.Timestamp = s.clock().UTC()
	b, err := json.Marshal(&sel)
	if err != nil {
		return err
	}
	// No TTL: the selection deliberately survives sign-out so the same
	// identity resumes the same store next time.
	return s.kv.Set(ctx, s.key(keySelectedStore), string(b), 0)
}

// ClearStoreSelection deletes the selection. Idempotent.
func (s *Store) ClearStoreSelection(ctx context.Context) error {
	return s.kv.Del(ctx, s.key(keySelectedStore))
}

// Snapshot reads both records through the one read path.
func (s *Store) Snapshot(ctx context.Context) (Envelope, error) {
	pin, err := s.PinSession(ctx)
	if err != nil {
		return Envelope{}, err
	}
	sel, err := s.StoreSelection(ctx)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: 2, Pin: pin, Selection: sel}, nil
}

// CheckExpiry is the periodic check behind the warning/expiry callbacks. It
// is driven on a coarse interval rather than a precise timer so a paused
// device just observes the expiry late instead of missing it.
func (s *Store) CheckExpiry(ctx context.Context) {
	raw, err := s.kv.Get(ctx, s.key(keyPinSession))
	if err != nil {
		return
	}
	pin, ok := decodePin(raw)
	if !ok {
		_ = s.kv.Del(ctx, s.key(keyPinSession))
		return
	}
	now := s.clock()
	if pin.Expired(now) {
		s.fireExpired()
		_ = s.kv.Del(ctx, s.key(keyPinSession))
		return
	}
	if remaining := pin.Remaining(now); remaining <= s.cfg.WarningThreshold {
		s.fireWarning(remaining)
	}
}

func (s *Store) fireWarning(remaining time.Duration) {
	s.mu.Lock()
	fn := s.onWarning
	already := s.warned
	s.warned = true
	s.mu.Unlock()
	if fn != nil && !already {
		fn(int(math.Ceil(remaining.Minutes())))
	}
}

func (s *Store) fireExpired() {
	s.mu.Lock()
	fn := s.onExpired
	already := s.expiredFired
	s.expiredFired = true
	s.mu.Unlock()
	if fn != nil && !already {
		fn()
	}
}

// decodePin parses and sanity-checks a persisted PIN record. A record
// missing its identifying fields or expiry is as good as corrupt.
func decodePin(raw string) (*model.PinSession, bool) {
	var pin model.PinSession
	if err := json.Unmarshal([]byte(raw), &pin); err != nil {
		return nil, false
	}
	if pin.MemberID == "" || pin.StoreID == "" || pin.ExpiresAt.IsZero() {
		return nil, false
	}
	if !pin.Role.Valid() {
		return nil, false
	}
	return &pin, true
}
