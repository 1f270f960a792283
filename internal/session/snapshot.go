package session

import (
	"encoding/json"
	"slices"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/view"
)

// Snapshot is a read-only copy of the session state for presentation.
type Snapshot struct {
	ActiveDeckID   string                 `json:"activeDeckId"`
	Active         *view.DeckView         `json:"active,omitempty"`
	Decks          []remote.Deck          `json:"decks"`
	Stale          bool                   `json:"stale"`
	Query          string                 `json:"query"`
	Results        []remote.Card          `json:"results"`
	Commander      *remote.Commander      `json:"commander,omitempty"`
	Recommendation *remote.Recommendation `json:"recommendation,omitempty"`
	Game           *remote.Game           `json:"game,omitempty"`
	Decision       json.RawMessage        `json:"decision,omitempty"`
	Busy           map[string]bool        `json:"busy"`
	LastError      *apperror.AppError     `json:"lastError,omitempty"`
}

// Snapshot copies the current state. Nothing in it aliases session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ActiveDeckID: s.registry.ActiveID(),
		Active:       s.ActiveView(),
		Decks:        s.registry.List(),
		Stale:        s.registry.Stale(),
		Query:        s.catalog.Query(),
		Results:      s.catalog.Results(),
		Busy:         make(map[string]bool, len(Concerns)),
	}
	if snap.Results == nil {
		snap.Results = []remote.Card{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range Concerns {
		snap.Busy[c] = s.busy[c] > 0
	}
	if s.commander != nil {
		c := *s.commander
		c.ColorIdentity = slices.Clone(s.commander.ColorIdentity)
		snap.Commander = &c
	}
	if s.recommendation != nil {
		r := *s.recommendation
		snap.Recommendation = &r
	}
	if s.game != nil {
		snap.Game = cloneGame(s.game)
	}
	snap.Decision = slices.Clone(s.decision)
	if s.lastErr != nil {
		e := *s.lastErr
		snap.LastError = &e
	}
	return snap
}
