// Package session is the single entry point for user intents. It owns the
// busy flags, the last error and the commander chosen for the next deck, and
// routes every intent to the catalog, the deck registry or the engine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/catalog"
	"github.com/ramonehamilton/mtg-commander/internal/deck"
	"github.com/ramonehamilton/mtg-commander/internal/events"
	"github.com/ramonehamilton/mtg-commander/internal/metrics"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/view"
)

// ErrBusy is returned when a single-call concern already has a call in flight.
var ErrBusy = errors.New("operation already in progress")

// Concerns with independent busy flags.
const (
	ConcernSearch    = metrics.ConcernSearch
	ConcernMutation  = metrics.ConcernMutation
	ConcernDecks     = metrics.ConcernDecks
	ConcernRecommend = metrics.ConcernRecommend
	ConcernSimulate  = metrics.ConcernSimulate
)

// Concerns lists every concern in display order.
var Concerns = []string{ConcernSearch, ConcernMutation, ConcernDecks, ConcernRecommend, ConcernSimulate}

// Remote is everything the session needs from the remote services.
// *remote.Client implements it.
type Remote interface {
	deck.Backend
	deck.Mutator
	catalog.Searcher
	RecommendCommanders(ctx context.Context, colors string, playstyle remote.Playstyle) (*remote.Recommendation, error)
	CreateGame(ctx context.Context, players []string) (*remote.Game, error)
	RequestAIDecision(ctx context.Context, gameID, playerID string) (json.RawMessage, error)
}

// Options configures a Session. Every field is optional.
type Options struct {
	SearchLimit int
	Cache       deck.Cache
	Dispatcher  *events.EventDispatcher
	Metrics     *metrics.SessionMetrics
}

// Session coordinates one user's deck building. Safe for concurrent use.
type Session struct {
	remote     Remote
	catalog    *catalog.Session
	registry   *deck.Registry
	engine     *deck.Engine
	dispatcher *events.EventDispatcher
	metrics    *metrics.SessionMetrics

	mu             sync.RWMutex
	busy           map[string]int
	commander      *remote.Commander
	recommendation *remote.Recommendation
	game           *remote.Game
	decision       json.RawMessage
	lastErr        *apperror.AppError
}

// New creates a session talking to r.
func New(r Remote, opts Options) *Session {
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.NewEventDispatcher()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSessionMetrics()
	}

	registry := deck.NewRegistry(r, opts.Cache)
	return &Session{
		remote:     r,
		catalog:    catalog.NewSession(r, opts.SearchLimit),
		registry:   registry,
		engine:     deck.NewEngine(r, registry),
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		busy:       make(map[string]int, len(Concerns)),
	}
}

// Events returns the dispatcher state changes are published on.
func (s *Session) Events() *events.EventDispatcher {
	return s.dispatcher
}

// Metrics returns the call metrics collector.
func (s *Session) Metrics() *metrics.SessionMetrics {
	return s.metrics
}

// Search runs a catalog query. A blank query is rejected without a request.
// A failed search clears the results and is recorded as the last error; a
// search overtaken by a newer one returns no cards and changes nothing.
func (s *Session) Search(ctx context.Context, query string) ([]remote.Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Invalid("query", "must not be empty")
	}

	s.begin(ConcernSearch)
	done := s.metrics.Track(ConcernSearch)
	seq, err := s.catalog.Search(ctx, query)
	s.end(ConcernSearch)

	if errors.Is(err, catalog.ErrSuperseded) {
		done(nil)
		s.metrics.SupersededSearches.Add(1)
		return nil, nil
	}
	done(err)
	if err != nil {
		s.fail("search", err)
		s.dispatch(events.SearchSettled, events.SearchSettledEvent{Query: query, Failed: true})
		return nil, nil
	}

	cards := slices.Collect(seq)
	if cards == nil {
		cards = []remote.Card{}
	}
	s.settled("search")
	s.dispatch(events.SearchSettled, events.SearchSettledEvent{Query: query, Results: len(cards)})
	return cards, nil
}

// SelectCommander picks a card from the current search results as the
// commander for the next created deck. An empty id clears the choice.
func (s *Session) SelectCommander(cardID string) (*remote.Commander, error) {
	if strings.TrimSpace(cardID) == "" {
		s.mu.Lock()
		s.commander = nil
		s.mu.Unlock()
		return nil, nil
	}

	card, ok := s.catalog.Find(cardID)
	if !ok {
		return nil, apperror.Invalid("commander", "card "+cardID+" is not in the current search results")
	}

	cmd := remote.CommanderFromCard(card)
	s.mu.Lock()
	s.commander = cmd
	s.mu.Unlock()

	log.Printf("[Session] Commander selected: %s", cmd.Name)
	c := *cmd
	return &c, nil
}

// CreateDeck creates a deck named name, using the selected commander if any,
// and focuses it. Blank names are rejected without a request.
func (s *Session) CreateDeck(ctx context.Context, name string) (*remote.Deck, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.Invalid("name", "must not be empty")
	}
	if !s.tryBegin(ConcernDecks) {
		log.Printf("[Session] Create deck %q rejected: %v", name, ErrBusy)
		return nil, ErrBusy
	}
	defer s.end(ConcernDecks)

	s.mu.RLock()
	cmd := s.commander
	s.mu.RUnlock()

	done := s.metrics.Track(ConcernDecks)
	d, err := s.registry.Create(ctx, name, cmd)
	done(err)
	if err != nil {
		if apperror.IsValidation(err) {
			return nil, err
		}
		s.fail("create deck", err)
		return nil, nil
	}

	s.mu.Lock()
	if s.commander == cmd {
		s.commander = nil
	}
	s.mu.Unlock()

	s.settled("create deck")
	s.dispatch(events.DeckCreated, events.DeckUpdatedEvent{Deck: d})
	s.dispatch(events.FocusChanged, events.FocusChangedEvent{DeckID: d.ID})
	return &d, nil
}

// DeleteDeck deletes deck id. The local copy goes only once the service
// confirmed, and focus is cleared if it pointed at the deck.
func (s *Session) DeleteDeck(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.Invalid("deck id", "must not be empty")
	}
	if !s.tryBegin(ConcernDecks) {
		log.Printf("[Session] Delete deck %s rejected: %v", id, ErrBusy)
		return ErrBusy
	}
	defer s.end(ConcernDecks)

	wasActive := s.registry.ActiveID() == id

	done := s.metrics.Track(ConcernDecks)
	err := s.registry.Delete(ctx, id)
	done(err)
	if err != nil {
		s.fail("delete deck", err)
		return nil
	}

	s.settled("delete deck")
	s.dispatch(events.DeckDeleted, events.DeckDeletedEvent{DeckID: id})
	if wasActive {
		s.dispatch(events.FocusChanged, events.FocusChangedEvent{DeckID: ""})
	}
	return nil
}

// SelectDeck focuses deck id; an empty id clears the focus.
func (s *Session) SelectDeck(ctx context.Context, id string) error {
	if id == "" {
		s.registry.ClearFocus(ctx)
		s.dispatch(events.FocusChanged, events.FocusChangedEvent{})
		return nil
	}
	if err := s.registry.Select(ctx, id); err != nil {
		return err
	}
	s.dispatch(events.FocusChanged, events.FocusChangedEvent{DeckID: id})
	return nil
}

// RefreshDecks reloads the deck list. When the service is down the cached
// snapshots are shown instead and the failure is recorded.
func (s *Session) RefreshDecks(ctx context.Context) error {
	if !s.tryBegin(ConcernDecks) {
		log.Printf("[Session] Refresh rejected: %v", ErrBusy)
		return ErrBusy
	}
	defer s.end(ConcernDecks)

	before := s.registry.ActiveID()

	done := s.metrics.Track(ConcernDecks)
	err := s.registry.Refresh(ctx)
	done(err)

	stale := s.registry.Stale()
	if err != nil {
		if stale {
			s.metrics.CacheFallbacks.Add(1)
		}
		s.fail("refresh decks", err)
	} else {
		s.settled("refresh decks")
	}

	if err == nil || stale {
		s.dispatch(events.DecksRefreshed, events.DecksRefreshedEvent{Count: s.registry.Len(), Stale: stale})
	}
	if after := s.registry.ActiveID(); after != before {
		s.dispatch(events.FocusChanged, events.FocusChangedEvent{DeckID: after})
	}
	return nil
}

// AddCard adds quantity copies of cardID to deckID, or to the active deck
// when deckID is empty. With no deck to target it does nothing.
func (s *Session) AddCard(ctx context.Context, cardID, deckID string, quantity int) (*deck.Result, error) {
	return s.mutate(ctx, "add card", cardID, deckID, quantity, s.engine.AddCard)
}

// RemoveCard removes quantity copies of cardID; targeting is as for AddCard.
// Whatever the service reports, including its messages, is returned as is.
func (s *Session) RemoveCard(ctx context.Context, cardID, deckID string, quantity int) (*deck.Result, error) {
	return s.mutate(ctx, "remove card", cardID, deckID, quantity, s.engine.RemoveCard)
}

type mutation func(ctx context.Context, cardID, deckID string, quantity int) (*deck.Result, error)

func (s *Session) mutate(ctx context.Context, op, cardID, deckID string, quantity int, fn mutation) (*deck.Result, error) {
	if strings.TrimSpace(cardID) == "" {
		return nil, apperror.Invalid("card id", "must not be empty")
	}

	s.begin(ConcernMutation)
	defer s.end(ConcernMutation)

	done := s.metrics.Track(ConcernMutation)
	res, err := fn(ctx, cardID, deckID, quantity)
	done(err)
	if err != nil {
		// Bad targets belong to the caller, not to the session's error state.
		if errors.Is(err, deck.ErrUnknownDeck) || apperror.IsValidation(err) {
			log.Printf("[Session] %s %s rejected: %v", op, cardID, err)
			return nil, err
		}
		s.fail(op, err)
		return nil, nil
	}
	if res == nil {
		log.Printf("[Session] %s %s skipped: %v", op, cardID, apperror.ErrNoActiveDeck)
		return nil, nil
	}

	s.settled(op)
	v := res.Validation.Clone()
	s.dispatch(events.DeckUpdated, events.DeckUpdatedEvent{Deck: res.Deck.Clone(), Validation: &v})
	return res, nil
}

// RecommendCommanders asks for commander suggestions. An unknown playstyle is
// rejected without a request.
func (s *Session) RecommendCommanders(ctx context.Context, colors string, playstyle remote.Playstyle) (*remote.Recommendation, error) {
	if !playstyle.Valid() {
		return nil, apperror.Invalid("playstyle", "must be one of aggressive, control, combo, tribal")
	}
	if !s.tryBegin(ConcernRecommend) {
		log.Printf("[Session] Recommendation rejected: %v", ErrBusy)
		return nil, ErrBusy
	}
	defer s.end(ConcernRecommend)

	done := s.metrics.Track(ConcernRecommend)
	rec, err := s.remote.RecommendCommanders(ctx, colors, playstyle)
	done(err)
	if err != nil {
		if apperror.IsValidation(err) {
			return nil, err
		}
		s.fail("recommend commanders", err)
		return nil, nil
	}

	s.mu.Lock()
	s.recommendation = rec
	s.mu.Unlock()
	s.settled("recommend commanders")

	r := *rec
	return &r, nil
}

// CreateGame starts a four player game simulation.
func (s *Session) CreateGame(ctx context.Context, players []string) (*remote.Game, error) {
	if len(players) != remote.PlayersPerGame {
		return nil, apperror.Invalid("players", "a Commander game needs exactly 4 players")
	}
	if !s.tryBegin(ConcernSimulate) {
		log.Printf("[Session] Create game rejected: %v", ErrBusy)
		return nil, ErrBusy
	}
	defer s.end(ConcernSimulate)

	done := s.metrics.Track(ConcernSimulate)
	game, err := s.remote.CreateGame(ctx, players)
	done(err)
	if err != nil {
		if apperror.IsValidation(err) {
			return nil, err
		}
		s.fail("create game", err)
		return nil, nil
	}

	s.mu.Lock()
	s.game = game
	s.decision = nil
	s.mu.Unlock()
	s.settled("create game")

	log.Printf("[Session] Game %s created", game.ID)
	return cloneGame(game), nil
}

// RequestAIDecision asks the simulator what playerID would do. An empty
// gameID means the game created last.
func (s *Session) RequestAIDecision(ctx context.Context, gameID, playerID string) (json.RawMessage, error) {
	if gameID == "" {
		s.mu.RLock()
		if s.game != nil {
			gameID = s.game.ID
		}
		s.mu.RUnlock()
	}
	if gameID == "" {
		return nil, apperror.Invalid("game", "no game in progress")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, apperror.Invalid("player id", "must not be empty")
	}
	if !s.tryBegin(ConcernSimulate) {
		log.Printf("[Session] AI decision rejected: %v", ErrBusy)
		return nil, ErrBusy
	}
	defer s.end(ConcernSimulate)

	done := s.metrics.Track(ConcernSimulate)
	decision, err := s.remote.RequestAIDecision(ctx, gameID, playerID)
	done(err)
	if err != nil {
		if apperror.IsValidation(err) {
			return nil, err
		}
		s.fail("AI decision", err)
		return nil, nil
	}

	s.mu.Lock()
	s.decision = slices.Clone(decision)
	s.mu.Unlock()
	s.settled("AI decision")

	return slices.Clone(decision), nil
}

// ClearError drops the recorded error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// LastError returns the most recent failure that has not been superseded by
// a success of the same operation.
func (s *Session) LastError() *apperror.AppError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr == nil {
		return nil
	}
	e := *s.lastErr
	return &e
}

// Busy reports whether concern has a call in flight.
func (s *Session) Busy(concern string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy[concern] > 0
}

// fail records err as the last error; it is never returned to the caller.
func (s *Session) fail(op string, err error) {
	appErr := apperror.Wrap(op, err)
	log.Printf("[Session] %s", appErr.Message)

	s.mu.Lock()
	s.lastErr = appErr
	s.mu.Unlock()

	s.dispatch(events.SessionError, events.SessionErrorEvent{Op: op, Message: appErr.Message})
}

// settled clears the last error if it came from the same operation.
func (s *Session) settled(op string) {
	s.mu.Lock()
	if s.lastErr != nil && s.lastErr.Op == op {
		s.lastErr = nil
	}
	s.mu.Unlock()
}

func (s *Session) begin(concern string) {
	s.mu.Lock()
	s.busy[concern]++
	flipped := s.busy[concern] == 1
	s.mu.Unlock()

	if flipped {
		s.dispatch(events.BusyChanged, events.BusyChangedEvent{Concern: concern, Busy: true})
	}
}

func (s *Session) tryBegin(concern string) bool {
	s.mu.Lock()
	if s.busy[concern] > 0 {
		s.mu.Unlock()
		return false
	}
	s.busy[concern] = 1
	s.mu.Unlock()

	s.dispatch(events.BusyChanged, events.BusyChangedEvent{Concern: concern, Busy: true})
	return true
}

func (s *Session) end(concern string) {
	s.mu.Lock()
	s.busy[concern]--
	flipped := s.busy[concern] <= 0
	if flipped {
		delete(s.busy, concern)
	}
	s.mu.Unlock()

	if flipped {
		s.dispatch(events.BusyChanged, events.BusyChangedEvent{Concern: concern, Busy: false})
	}
}

func (s *Session) dispatch(eventType string, data any) {
	s.dispatcher.Dispatch(events.Event{Type: eventType, Data: data})
}

func cloneGame(g *remote.Game) *remote.Game {
	out := *g
	out.Players = slices.Clone(g.Players)
	if g.LifeTotals != nil {
		out.LifeTotals = make(map[string]int, len(g.LifeTotals))
		for k, v := range g.LifeTotals {
			out.LifeTotals[k] = v
		}
	}
	return &out
}

// Decks returns every known deck, newest first.
func (s *Session) Decks() []remote.Deck {
	return s.registry.List()
}

// Has reports whether deck id is known.
func (s *Session) Has(id string) bool {
	return s.registry.Has(id)
}

// Deck returns the latest snapshot of deck id.
func (s *Session) Deck(id string) (remote.Deck, bool) {
	return s.registry.Get(id)
}

// DeckView summarizes deck id.
func (s *Session) DeckView(id string) (*view.DeckView, bool) {
	d, ok := s.registry.Get(id)
	if !ok {
		return nil, false
	}
	v := view.Summarize(&d, s.registry.Validation(d.ID))
	return &v, true
}

// Results returns the current search results.
func (s *Session) Results() []remote.Card {
	return s.catalog.Results()
}

// ActiveView summarizes the focused deck; nil when nothing is focused.
func (s *Session) ActiveView() *view.DeckView {
	d, ok := s.registry.Active()
	if !ok {
		return nil
	}
	v := view.Summarize(&d, s.registry.Validation(d.ID))
	return &v
}
