// Package catalog holds the card search session: the current query, its
// settled results and the busy flag, with stale responses suppressed.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

// ErrSuperseded is returned to a search whose response arrived after a newer query was issued.
var ErrSuperseded = errors.New("search superseded by a newer query")

// DefaultLimit is used when the session is built with a non-positive limit.
const DefaultLimit = 20

// Searcher is the catalog side of the remote client.
type Searcher interface {
	SearchCards(ctx context.Context, query string, limit int) (*remote.SearchResult, error)
}

// Session tracks one user's catalog search. Safe for concurrent use.
type Session struct {
	searcher Searcher
	limit    int

	mu       sync.RWMutex
	issued   uint64 // ticket of the newest issued query
	inflight int
	query    string
	results  []remote.Card
	lastErr  error
}

// NewSession creates a search session returning at most limit cards per query.
func NewSession(searcher Searcher, limit int) *Session {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Session{searcher: searcher, limit: limit}
}

// Search issues query and, if it is still the newest query when the response
// arrives, replaces the result set. The returned sequence iterates over the
// cards settled by this call.
//
// A blank query is rejected without a request or any state change. On failure
// the result set is cleared and the error is recorded and returned; the session
// stays usable.
func (s *Session) Search(ctx context.Context, query string) (iter.Seq[remote.Card], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Invalid("query", "must not be empty")
	}

	s.mu.Lock()
	s.issued++
	ticket := s.issued
	s.inflight++
	s.query = query
	s.mu.Unlock()

	result, err := s.searcher.SearchCards(ctx, query, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	if ticket != s.issued {
		log.Printf("[Catalog] Discarding response for %q: superseded by %q", query, s.query)
		return nil, ErrSuperseded
	}

	if err != nil {
		s.results = nil
		s.lastErr = err
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	s.results = slices.Clone(result.Cards)
	s.lastErr = nil
	return slices.Values(slices.Clone(s.results)), nil
}

// Query returns the most recently issued query.
func (s *Session) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Results returns a copy of the current result set.
func (s *Session) Results() []remote.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.results)
}

// Find returns the card with id from the current results.
func (s *Session) Find(id string) (remote.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.results {
		if c.ID == id {
			return c, true
		}
	}
	return remote.Card{}, false
}

// Busy reports whether any search request is in flight.
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// LastError returns the error of the newest settled search, if it failed.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
