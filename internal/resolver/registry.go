package resolver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/storefy/storefy/internal/session"
)

// Registry owns one sequencer per device scope and drives the periodic PIN
// expiry check across all of them. It is the explicit state container the
// rest of the application is handed; nothing here is package-level state, so
// tests build throwaway registries.
type Registry struct {
	kv   session.KV
	dir  StoreDirectory
	scfg session.Config
	rcfg Config

	mu      sync.Mutex
	entries map[string]*Sequencer

	// Hooks observing PIN lifecycle events, used to broadcast invalidations
	// to other gateway instances. Both may be nil.
	OnPinExpired func(scope string)
	OnPinWarning func(scope string, minutesLeft int)
}

// NewRegistry builds a registry over the shared KV and store directory.
func NewRegistry(kv session.KV, dir StoreDirectory, scfg session.Config, rcfg Config) *Registry {
	return &Registry{
		kv:      kv,
		dir:     dir,
		scfg:    scfg,
		rcfg:    rcfg,
		entries: map[string]*Sequencer{},
	}
}

// Sequencer returns the sequencer for a scope, creating it on first use and
// wiring the session expiry callbacks.
func (r *Registry) Sequencer(scope string) *Sequencer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq, ok := r.entries[scope]; ok {
		return seq
	}
	store := session.NewStore(r.kv, scope, r.scfg)
	seq := NewSequencer(scope, store, r.dir, r.rcfg)
	store.OnSessionWarning(func(minutesLeft int) {
		log.Printf("session: scope=%s pin session expires in %dm", scope, minutesLeft)
		if r.OnPinWarning != nil {
			r.OnPinWarning(scope, minutesLeft)
		}
	})
	store.OnSessionExpired(func() {
		// Shift change, not an application error.
		log.Printf("session: scope=%s pin session expired", scope)
		seq.Invalidate()
		if r.OnPinExpired != nil {
			r.OnPinExpired(scope)
		}
	})
	r.entries[scope] = seq
	return seq
}

// Invalidate marks a scope dirty, typically on a session.changed broadcast
// from another instance. Unknown scopes are ignored.
func (r *Registry) Invalidate(scope string) {
	r.mu.Lock()
	seq, ok := r.entries[scope]
	r.mu.Unlock()
	if ok {
		seq.Invalidate()
	}
}

// Run drives the periodic expiry/warning check until ctx is cancelled. The
// interval is coarse by design; a precise timer buys nothing when devices
// sleep and tabs get backgrounded.
func (r *Registry) Run(ctx context.Context) {
	interval := r.scfg.CheckInterval
	if interval <= 0 {
		interval = session.DefaultConfig().CheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Registry) sweep(ctx context.Context) {
	r.mu.Lock()
	seqs := make([]*Sequencer, 0, len(r.entries))
	for _, seq := range r.entries {
		seqs = append(seqs, seq)
	}
	r.mu.Unlock()
	for _, seq := range seqs {
		seq.Sessions().CheckExpiry(ctx)
	}
}
