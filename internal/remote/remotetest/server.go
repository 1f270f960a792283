// Package remotetest provides an in-memory stand-in for the deck, catalog,
// recommendation and game services, for use in tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

// Route names used by Fail, Hook and Count.
const (
	RouteListDecks  = "list-decks"
	RouteCreateDeck = "create-deck"
	RouteDeleteDeck = "delete-deck"
	RouteAddCard    = "add-card"
	RouteRemoveCard = "remove-card"
	RouteSearch     = "search"
	RouteRecommend  = "recommend"
	RouteCreateGame = "create-game"
	RouteAIDecision = "ai-decision"
)

// DeckSize is the card count the stand-in considers legal.
const DeckSize = 100

type failure struct {
	status int
	times  int
}

// Server is a stateful fake backend.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	cards    map[string]remote.Card
	decks    []*remote.Deck // newest first
	games    map[string]*remote.Game
	failures map[string]*failure
	hooks    map[string]func(*http.Request)
	counts   map[string]int
	filter   func(*remote.MutationResult)
}

// NewServer starts a fake backend. It is closed by t.Cleanup when t is non-nil.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		cards:    make(map[string]remote.Card),
		games:    make(map[string]*remote.Game),
		failures: make(map[string]*failure),
		hooks:    make(map[string]func(*http.Request)),
		counts:   make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	if t != nil {
		t.Cleanup(s.Close)
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/decks", s.wrap(RouteListDecks, s.handleListDecks))
		r.Post("/decks", s.wrap(RouteCreateDeck, s.handleCreateDeck))
		r.Delete("/decks/{deckID}", s.wrap(RouteDeleteDeck, s.handleDeleteDeck))
		r.Put("/decks/{deckID}/add-card", s.wrap(RouteAddCard, s.handleAddCard))
		r.Delete("/decks/{deckID}/remove-card/{cardID}", s.wrap(RouteRemoveCard, s.handleRemoveCard))
		r.Get("/cards/search", s.wrap(RouteSearch, s.handleSearch))
		r.Get("/commanders/recommend", s.wrap(RouteRecommend, s.handleRecommend))
		r.Post("/games", s.wrap(RouteCreateGame, s.handleCreateGame))
		r.Get("/games/{gameID}/ai-decision", s.wrap(RouteAIDecision, s.handleAIDecision))
	})
	return r
}

// wrap counts the call, runs any hook, then applies injected failures.
func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[route]++
		hook := s.hooks[route]
		s.mu.Unlock()

		if hook != nil {
			hook(r)
		}

		s.mu.Lock()
		f := s.failures[route]
		if f != nil && f.times != 0 {
			if f.times > 0 {
				f.times--
			}
			status := f.status
			s.mu.Unlock()
			writeJSON(w, status, map[string]string{"detail": fmt.Sprintf("injected failure on %s", route)})
			return
		}
		s.mu.Unlock()

		h(w, r)
	}
}

// AddCards seeds the catalog.
func (s *Server) AddCards(cards ...remote.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cards {
		s.cards[c.ID] = c
	}
}

// SeedDeck stores deck as the newest deck, recomputing its totals.
func (s *Server) SeedDeck(deck remote.Deck) remote.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := deck.Clone()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	s.recompute(&d)
	s.decks = append([]*remote.Deck{&d}, s.decks...)
	return d.Clone()
}

// Deck returns the stored deck with id.
func (s *Server) Deck(id string) (remote.Deck, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.find(id); d != nil {
		return d.Clone(), true
	}
	return remote.Deck{}, false
}

// Fail makes the next times calls to route answer status. times < 0 fails forever.
func (s *Server) Fail(route string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{status: status, times: times}
}

// Hook runs fn at the start of every call to route, before any state is read.
func (s *Server) Hook(route string, fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[route] = fn
}

// FilterMutations lets a test rewrite add/remove responses, e.g. to model
// server-side rules the client does not know about.
func (s *Server) FilterMutations(fn func(*remote.MutationResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = fn
}

// Count returns how many requests route has received.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

func (s *Server) find(id string) *remote.Deck {
	for _, d := range s.decks {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *Server) recompute(d *remote.Deck) {
	total, usd, aud, foilUSD, foilAUD := 0, 0.0, 0.0, 0.0, 0.0
	for i := range d.Cards {
		e := &d.Cards[i]
		total += e.Quantity
		if c, ok := s.cards[e.CardID]; ok {
			e.Name, e.TypeLine, e.ImageURI = c.Name, c.TypeLine, c.ImageURL("normal")
			e.PriceAUD = c.Prices[remote.PriceUSDAUD]
			usd += float64(e.Quantity) * c.Prices[remote.PriceUSD]
			aud += float64(e.Quantity) * c.Prices[remote.PriceUSDAUD]
			foilUSD += float64(e.Quantity) * c.Prices[remote.PriceUSDFoil]
			foilAUD += float64(e.Quantity) * c.Prices[remote.PriceUSDFoilAUD]
		}
	}
	if d.Commander != nil {
		total++
		usd += d.Commander.PriceUSD
		aud += d.Commander.PriceAUD
	}
	d.TotalCards = total
	d.TotalPriceUSD = round2(usd)
	d.TotalPriceAUD = round2(aud)
	d.FoilPriceUSD = round2(foilUSD)
	d.FoilPriceAUD = round2(foilAUD)
	if d.PowerLevel == 0 {
		d.PowerLevel = 1
	}
	d.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

func (s *Server) validate(d *remote.Deck) remote.ValidationResult {
	v := remote.ValidationResult{Valid: true, Errors: []string{}}
	if d.TotalCards != DeckSize {
		v.Valid = false
		v.Errors = append(v.Errors, fmt.Sprintf("Deck has %d cards; Commander decks require exactly %d", d.TotalCards, DeckSize))
	}
	return v
}

func (s *Server) mutationResponse(d *remote.Deck, v remote.ValidationResult) remote.MutationResult {
	res := remote.MutationResult{Deck: d.Clone(), Validation: v}
	if s.filter != nil {
		s.filter(&res)
	}
	return res
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]remote.Deck, 0, len(s.decks))
	for _, d := range s.decks {
		out = append(out, d.Clone())
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req remote.CreateDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "name is required"})
		return
	}

	s.mu.Lock()
	now := time.Now().UTC().Format(time.RFC3339)
	d := &remote.Deck{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Commander: req.Commander,
		Cards:     []remote.DeckCardEntry{},
		CreatedAt: now,
	}
	if d.Commander != nil && d.Commander.ID == "" {
		d.Commander.ID = uuid.New().String()
	}
	s.recompute(d)
	s.decks = append([]*remote.Deck{d}, s.decks...)
	out := d.Clone()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deckID")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.decks {
		if d.ID == id {
			s.decks = append(s.decks[:i], s.decks[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Deck not found"})
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	cardID := r.URL.Query().Get("card_id")
	qty := quantity(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.find(deckID)
	if d == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Deck not found"})
		return
	}
	if _, ok := s.cards[cardID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Card not found"})
		return
	}

	added := false
	for i := range d.Cards {
		if d.Cards[i].CardID == cardID {
			d.Cards[i].Quantity += qty
			added = true
			break
		}
	}
	if !added {
		d.Cards = append(d.Cards, remote.DeckCardEntry{CardID: cardID, Quantity: qty})
	}
	s.recompute(d)

	writeJSON(w, http.StatusOK, s.mutationResponse(d, s.validate(d)))
}

func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	cardID := chi.URLParam(r, "cardID")
	qty := quantity(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.find(deckID)
	if d == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Deck not found"})
		return
	}

	for i := range d.Cards {
		if d.Cards[i].CardID != cardID {
			continue
		}
		d.Cards[i].Quantity -= qty
		if d.Cards[i].Quantity <= 0 {
			d.Cards = append(d.Cards[:i], d.Cards[i+1:]...)
		}
		s.recompute(d)
		writeJSON(w, http.StatusOK, s.mutationResponse(d, s.validate(d)))
		return
	}

	v := s.validate(d)
	v.Valid = false
	v.Errors = append([]string{fmt.Sprintf("Card %s is not in this deck", cardID)}, v.Errors...)
	writeJSON(w, http.StatusOK, s.mutationResponse(d, v))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	var cards []remote.Card
	for _, c := range s.cards {
		if strings.Contains(strings.ToLower(c.Name), q) {
			cards = append(cards, c)
		}
	}
	s.mu.Unlock()

	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	if len(cards) > limit {
		cards = cards[:limit]
	}

	// Prices go out as strings, like the upstream catalog.
	out := make([]map[string]interface{}, 0, len(cards))
	for _, c := range cards {
		prices := make(map[string]interface{}, len(c.Prices))
		for k, v := range c.Prices {
			prices[k] = strconv.FormatFloat(v, 'f', 2, 64)
		}
		out = append(out, map[string]interface{}{
			"id":             c.ID,
			"name":           c.Name,
			"mana_cost":      c.ManaCost,
			"cmc":            c.CMC,
			"type_line":      c.TypeLine,
			"oracle_text":    c.OracleText,
			"color_identity": c.ColorIdentity,
			"image_uris":     c.ImageURIs,
			"rarity":         c.Rarity,
			"prices":         prices,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": out, "total": len(out)})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	colors := r.URL.Query().Get("colors")
	playstyle := r.URL.Query().Get("playstyle")
	writeJSON(w, http.StatusOK, remote.Recommendation{
		Recommendations: fmt.Sprintf("Consider these commanders for %s %s decks.", colors, playstyle),
		Colors:          colors,
		Playstyle:       playstyle,
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var players []string
	if err := json.NewDecoder(r.Body).Decode(&players); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	if len(players) != remote.PlayersPerGame {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Commander requires exactly 4 players"})
		return
	}

	life := make(map[string]int, len(players))
	for _, p := range players {
		life[p] = 40
	}
	g := &remote.Game{
		ID:         uuid.New().String(),
		Players:    players,
		Phase:      "upkeep",
		LifeTotals: life,
		TurnCount:  1,
	}

	s.mu.Lock()
	s.games[g.ID] = g
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleAIDecision(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	player := r.URL.Query().Get("player_id")

	s.mu.Lock()
	_, ok := s.games[gameID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Game not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_id":   player,
		"action_type": "pass",
		"reasoning":   "Holding up interaction.",
	})
}

func quantity(r *http.Request) int {
	q, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || q < 1 {
		return 1
	}
	return q
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
