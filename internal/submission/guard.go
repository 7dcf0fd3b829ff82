// Package submission makes document saves idempotent. Each draft has a key; the guard decides whether a
// save creates the document or updates the one a previous save already created, and rejects a save while
// another one for the same key is still in flight.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/lock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// ErrSubmissionInFlight is returned by Begin while another save of the same draft is running.
var ErrSubmissionInFlight = shared.Conflict("penyimpanan sedang diproses, tunggu hingga selesai")

// State is the retained outcome of previous saves.
type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in_flight"
	StateCreated  State = "created"
	StateUnknown  State = "unknown"
)

// Entry is the persisted guard state for one key.
type Entry struct {
	State      State  `json:"state"`
	DocumentID string `json:"document_id,omitempty"`
}

// Store persists entries. Missing keys read as Idle.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, entry Entry) error
}

// Operation tells the caller which ERP call to make.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// Decision is the result of Begin.
type Decision struct {
	Op         Operation
	DocumentID string
	// Reconcile is set after an unknown outcome: the caller must look the document up by its draft key and
	// switch to update if it exists.
	Reconcile bool
}

// Guard coordinates saves per draft key.
type Guard struct {
	store  Store
	locker lock.Locker
	ttl    time.Duration

	mu       sync.Mutex
	inflight map[string]inflight
}

type inflight struct {
	handle lock.Handle
	prior  Entry
}

// NewGuard builds a guard. The ttl bounds both the in-flight marker and retained entries.
func NewGuard(store Store, locker lock.Locker, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Guard{store: store, locker: locker, ttl: ttl, inflight: make(map[string]inflight)}
}

// NewMemoryGuard builds a guard with in-process state.
func NewMemoryGuard(ttl time.Duration) *Guard {
	return NewGuard(NewMemoryStore(ttl), lock.NewMemory(), ttl)
}

// Begin marks the key in flight and returns what the save must do.
func (g *Guard) Begin(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{}, shared.Invalid("draft_key", "kunci draf wajib diisi")
	}
	h, err := g.locker.TryObtain(ctx, shared.SubmissionKey(key)+":inflight", g.ttl)
	if errors.Is(err, lock.ErrNotObtained) {
		return Decision{}, ErrSubmissionInFlight
	}
	if err != nil {
		return Decision{}, fmt.Errorf("submission: begin: %w", err)
	}
	entry, err := g.store.Get(ctx, key)
	if err != nil {
		_ = h.Release(ctx)
		return Decision{}, fmt.Errorf("submission: read state: %w", err)
	}

	g.mu.Lock()
	g.inflight[key] = inflight{handle: h, prior: entry}
	g.mu.Unlock()

	switch entry.State {
	case StateCreated:
		return Decision{Op: OpUpdate, DocumentID: entry.DocumentID}, nil
	case StateUnknown:
		return Decision{Op: OpCreate, Reconcile: true}, nil
	default:
		return Decision{Op: OpCreate}, nil
	}
}

// Succeed records the document id and clears the in-flight marker.
func (g *Guard) Succeed(ctx context.Context, key, documentID string) error {
	return g.finish(ctx, key, Entry{State: StateCreated, DocumentID: documentID})
}

// Fail clears the in-flight marker. A transient failure of a create leaves the outcome unknown; any other
// failure keeps the state held before Begin.
func (g *Guard) Fail(ctx context.Context, key string, cause error) error {
	g.mu.Lock()
	prior := g.inflight[key].prior
	g.mu.Unlock()

	next := prior
	if prior.State != StateCreated && errors.Is(cause, shared.ErrTransient) {
		next = Entry{State: StateUnknown}
	}
	return g.finish(ctx, key, next)
}

// Peek reports the current state without side effects.
func (g *Guard) Peek(ctx context.Context, key string) (Entry, error) {
	g.mu.Lock()
	_, busy := g.inflight[key]
	g.mu.Unlock()
	if busy {
		return Entry{State: StateInFlight}, nil
	}
	entry, err := g.store.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if entry.State == "" {
		entry.State = StateIdle
	}
	return entry, nil
}

// finish records the outcome even when the request context has ended, otherwise a timed-out create would
// read as idle on retry.
func (g *Guard) finish(ctx context.Context, key string, entry Entry) error {
	ctx = context.WithoutCancel(ctx)
	g.mu.Lock()
	f, ok := g.inflight[key]
	delete(g.inflight, key)
	g.mu.Unlock()

	var putErr error
	if entry.State == StateIdle || entry.State == "" {
		putErr = g.store.Put(ctx, key, Entry{State: StateIdle})
	} else {
		putErr = g.store.Put(ctx, key, entry)
	}
	if ok {
		if err := f.handle.Release(ctx); err != nil && putErr == nil {
			putErr = err
		}
	}
	if putErr != nil {
		return fmt.Errorf("submission: finish: %w", putErr)
	}
	return nil
}
