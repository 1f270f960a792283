// Package deck holds the local mirror of the user's decks and the engine that
// reconciles card mutations against the remote deck service.
package deck

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/storage"
)

// ErrUnknownDeck is returned when a deck id is not registered locally.
var ErrUnknownDeck = errors.New("unknown deck")

// Backend is the deck persistence side of the remote client.
type Backend interface {
	ListDecks(ctx context.Context) ([]remote.Deck, error)
	CreateDeck(ctx context.Context, req remote.CreateDeckRequest) (*remote.Deck, error)
	DeleteDeck(ctx context.Context, deckID string) error
}

// Cache persists authoritative snapshots between runs. storage.SnapshotStore implements it.
type Cache interface {
	ReplaceAll(ctx context.Context, decks []storage.Snapshot) error
	Put(ctx context.Context, snap storage.Snapshot) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]storage.Snapshot, error)
	SaveFocus(ctx context.Context, deckID string) error
	LoadFocus(ctx context.Context) (string, error)
}

type entry struct {
	deck       remote.Deck
	validation *remote.ValidationResult
	gen        uint64 // bumped on every local write of this deck
}

// Registry maps deck ids to their latest authoritative snapshot and tracks
// which deck, if any, is active. Safe for concurrent use.
type Registry struct {
	backend Backend
	cache   Cache // may be nil

	mu      sync.RWMutex
	order   []string // newest first
	entries map[string]*entry
	active  string
	stale   bool
	gen     uint64
}

// NewRegistry creates an empty registry. cache may be nil.
func NewRegistry(backend Backend, cache Cache) *Registry {
	return &Registry{
		backend: backend,
		cache:   cache,
		entries: make(map[string]*entry),
	}
}

// List returns every deck, newest first.
func (r *Registry) List() []remote.Deck {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]remote.Deck, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].deck.Clone())
	}
	return out
}

// Len returns the number of registered decks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Get returns the deck with id.
func (r *Registry) Get(id string) (remote.Deck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return remote.Deck{}, false
	}
	return e.deck.Clone(), true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Validation returns the last validation attached to deck id, if any.
func (r *Registry) Validation(id string) *remote.ValidationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || e.validation == nil {
		return nil
	}
	v := e.validation.Clone()
	return &v
}

// ActiveID returns the focused deck id, or "".
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Active returns the focused deck.
func (r *Registry) Active() (remote.Deck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return remote.Deck{}, false
	}
	return r.entries[r.active].deck.Clone(), true
}

// Stale reports whether the registry was last filled from the snapshot cache.
func (r *Registry) Stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stale
}

// Select focuses deck id.
func (r *Registry) Select(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("select deck %s: %w", id, ErrUnknownDeck)
	}
	r.active = id
	r.mu.Unlock()

	r.persistFocus(ctx, id)
	return nil
}

// ClearFocus drops the active deck reference.
func (r *Registry) ClearFocus(ctx context.Context) {
	r.mu.Lock()
	r.active = ""
	r.mu.Unlock()

	r.persistFocus(ctx, "")
}

// Create creates a deck remotely, registers it in front of every other deck
// and focuses it. Blank names are rejected before any request.
func (r *Registry) Create(ctx context.Context, name string, commander *remote.Commander) (remote.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return remote.Deck{}, apperror.Invalid("name", "must not be empty")
	}

	created, err := r.backend.CreateDeck(ctx, remote.CreateDeckRequest{Name: name, Commander: commander})
	if err != nil {
		return remote.Deck{}, fmt.Errorf("create deck %q: %w", name, err)
	}
	d := created.Clone()

	r.mu.Lock()
	if _, exists := r.entries[d.ID]; exists {
		r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == d.ID })
	}
	r.gen++
	r.entries[d.ID] = &entry{deck: d, gen: r.gen}
	r.order = append([]string{d.ID}, r.order...)
	r.active = d.ID
	r.mu.Unlock()

	log.Printf("[Registry] Created deck %s (%s)", d.Name, d.ID)
	r.persist(ctx, func(c Cache) error { return c.Put(ctx, storage.Snapshot{Deck: d}) })
	r.persistFocus(ctx, d.ID)

	return d.Clone(), nil
}

// Delete deletes deck id remotely and, once that succeeded, locally.
// Focus is cleared if it pointed at the deleted deck.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.backend.DeleteDeck(ctx, id); err != nil {
		return fmt.Errorf("delete deck %s: %w", id, err)
	}

	r.mu.Lock()
	delete(r.entries, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	clearedFocus := r.active == id
	if clearedFocus {
		r.active = ""
	}
	r.mu.Unlock()

	log.Printf("[Registry] Deleted deck %s", id)
	r.persist(ctx, func(c Cache) error { return c.Delete(ctx, id) })
	if clearedFocus {
		r.persistFocus(ctx, "")
	}
	return nil
}

// Replace swaps in the authoritative snapshot and validation for id as one
// unit. It refuses snapshots for decks that are no longer registered, so a
// late response cannot resurrect a deleted deck.
func (r *Registry) Replace(ctx context.Context, id string, d remote.Deck, validation remote.ValidationResult) bool {
	if d.ID != id {
		log.Printf("[Registry] Refusing snapshot for %s: response describes deck %s", id, d.ID)
		return false
	}

	snap := d.Clone()
	v := validation.Clone()

	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		r.gen++
		*e = entry{deck: snap, validation: &v, gen: r.gen}
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.persist(ctx, func(c Cache) error { return c.Put(ctx, storage.Snapshot{Deck: snap, Validation: &v}) })
	return true
}

// Refresh reloads every deck from the service. Focus survives if the active
// deck still exists. A deck written locally while the list was in flight keeps
// its newer snapshot, and one deleted meanwhile stays deleted. When the
// service is unreachable and a cache is configured, the cached snapshots are
// used and the registry is marked stale; the remote error is still returned.
func (r *Registry) Refresh(ctx context.Context) error {
	seen := r.generations()

	decks, err := r.backend.ListDecks(ctx)
	if err != nil {
		if restored := r.restore(ctx, seen); restored {
			log.Printf("[Registry] Service unavailable, using cached snapshots: %v", err)
		}
		return fmt.Errorf("refresh decks: %w", err)
	}

	incoming := make([]storage.Snapshot, 0, len(decks))
	for _, d := range decks {
		incoming = append(incoming, storage.Snapshot{Deck: d.Clone()})
	}

	r.mu.Lock()
	r.rebuildLocked(incoming, seen, true)
	r.stale = false
	snaps := r.snapshotsLocked()
	r.mu.Unlock()

	r.persist(ctx, func(c Cache) error { return c.ReplaceAll(ctx, snaps) })
	return nil
}

// generations records the write generation of every registered deck.
func (r *Registry) generations() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]uint64, len(r.entries))
	for id, e := range r.entries {
		seen[id] = e.gen
	}
	return seen
}

// rebuildLocked replaces the registry with incoming, which was read while the
// registry looked like seen. Entries written since then win over incoming.
// With listed set, a verdict is carried over only to the snapshot it judged.
func (r *Registry) rebuildLocked(incoming []storage.Snapshot, seen map[string]uint64, listed bool) {
	previous := r.entries
	r.entries = make(map[string]*entry, len(incoming))
	order := make([]string, 0, len(incoming))

	for _, snap := range incoming {
		id := snap.Deck.ID
		if _, dup := r.entries[id]; dup {
			continue
		}
		old, had := previous[id]
		gen, known := seen[id]
		switch {
		case known && !had:
			// Deleted while the list was in flight.
			continue
		case had && (!known || old.gen != gen):
			r.entries[id] = old
		default:
			r.gen++
			e := &entry{deck: snap.Deck, validation: snap.Validation, gen: r.gen}
			// A list carries no verdict; keep ours if it judged this very snapshot.
			if listed && had && sameSnapshot(old.deck, snap.Deck) {
				e.validation = old.validation
			}
			r.entries[id] = e
		}
		order = append(order, id)
	}

	// Decks created while the list was in flight go in front.
	var created []string
	for _, id := range r.order {
		if _, known := seen[id]; known {
			continue
		}
		if _, ok := r.entries[id]; ok {
			continue
		}
		r.entries[id] = previous[id]
		created = append(created, id)
	}
	r.order = append(created, order...)

	if _, ok := r.entries[r.active]; !ok {
		r.active = ""
	}
}

func sameSnapshot(a, b remote.Deck) bool {
	return a.UpdatedAt == b.UpdatedAt && a.TotalCards == b.TotalCards
}

// restore fills the registry from the cache, including the saved focus.
func (r *Registry) restore(ctx context.Context, seen map[string]uint64) bool {
	if r.cache == nil {
		return false
	}

	snaps, err := r.cache.LoadAll(ctx)
	if err != nil {
		log.Printf("[Registry] Failed to load cached snapshots: %v", err)
		return false
	}
	focus, err := r.cache.LoadFocus(ctx)
	if err != nil {
		log.Printf("[Registry] Failed to load cached focus: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rebuildLocked(snaps, seen, false)
	if r.active == "" {
		if _, ok := r.entries[focus]; ok {
			r.active = focus
		}
	}
	r.stale = true
	return true
}

func (r *Registry) snapshotsLocked() []storage.Snapshot {
	snaps := make([]storage.Snapshot, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		snaps = append(snaps, storage.Snapshot{Deck: e.deck.Clone(), Validation: e.validation})
	}
	return snaps
}

// persist writes through to the cache. Cache failures never fail the caller.
func (r *Registry) persist(ctx context.Context, fn func(Cache) error) {
	if r.cache == nil {
		return
	}
	if err := fn(r.cache); err != nil {
		log.Printf("[Registry] Snapshot cache write failed: %v", err)
	}
}

func (r *Registry) persistFocus(ctx context.Context, id string) {
	r.persist(ctx, func(c Cache) error { return c.SaveFocus(ctx, id) })
}
