package events

import "github.com/ramonehamilton/mtg-commander/internal/remote"

// Event types.
const (
	DeckUpdated    = "deck:updated"
	DeckCreated    = "deck:created"
	DeckDeleted    = "deck:deleted"
	DecksRefreshed = "decks:refreshed"
	FocusChanged   = "focus:changed"
	SearchSettled  = "search:settled"
	BusyChanged    = "busy:changed"
	SessionError   = "session:error"
)

// DeckUpdatedEvent is the payload for deck:updated and deck:created.
type DeckUpdatedEvent struct {
	Deck       remote.Deck              `json:"deck"`
	Validation *remote.ValidationResult `json:"validation,omitempty"`
}

// DeckDeletedEvent is the payload for deck:deleted.
type DeckDeletedEvent struct {
	DeckID string `json:"deckId"`
}

// DecksRefreshedEvent is the payload for decks:refreshed.
type DecksRefreshedEvent struct {
	Count int  `json:"count"`
	Stale bool `json:"stale"` // Served from the snapshot cache
}

// FocusChangedEvent is the payload for focus:changed. Empty DeckID means no focus.
type FocusChangedEvent struct {
	DeckID string `json:"deckId"`
}

// SearchSettledEvent is the payload for search:settled.
type SearchSettledEvent struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
	Failed  bool   `json:"failed"`
}

// BusyChangedEvent is the payload for busy:changed.
type BusyChangedEvent struct {
	Concern string `json:"concern"`
	Busy    bool   `json:"busy"`
}

// SessionErrorEvent is the payload for session:error.
type SessionErrorEvent struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}
