package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/mtg-commander/internal/api/response"
	"github.com/ramonehamilton/mtg-commander/internal/export"
	"github.com/ramonehamilton/mtg-commander/internal/session"
)

// DeckHandler handles deck and card mutation requests.
type DeckHandler struct {
	session *session.Session
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(s *session.Session) *DeckHandler {
	return &DeckHandler{session: s}
}

// GetDecks returns all decks, newest first.
func (h *DeckHandler) GetDecks(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.session.Decks())
}

// GetDeck returns the display view of a single deck.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	v, ok := h.session.DeckView(deckID)
	if !ok {
		response.NotFound(w, errors.New("deck not found"))
		return
	}
	response.Success(w, v)
}

// ExportDeck writes a deck as a decklist. The format query parameter picks
// arena (default), text, json or csv.
func (h *DeckHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	format, err := export.ParseDeckFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	d, ok := h.session.Deck(deckID)
	if !ok {
		response.NotFound(w, errors.New("deck not found"))
		return
	}

	filename := export.GenerateFilename(d.ID, format.Extension(), time.Now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteDeck(w, d, format); err != nil {
		// Headers are gone by now; all we can do is log.
		log.Printf("[API] Export of deck %s failed: %v", deckID, err)
	}
}

// CreateDeckRequest represents a request to create a deck.
type CreateDeckRequest struct {
	Name string `json:"name"`
}

// CreateDeck creates a deck with the selected commander and focuses it.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req CreateDeckRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, err := h.session.CreateDeck(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if d == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Created(w, d)
}

// DeleteDeck deletes a deck.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	if err := h.session.DeleteDeck(r.Context(), deckID); err != nil {
		writeError(w, err)
		return
	}
	if h.session.Has(deckID) {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.NoContent(w)
}

// RefreshDecks reloads the deck list from the service.
func (h *DeckHandler) RefreshDecks(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RefreshDecks(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	snap := h.session.Snapshot()
	if snap.LastError != nil && snap.LastError.Op == "refresh decks" {
		response.JSON(w, http.StatusOK, response.IntentResponse{Data: snap.Decks, LastError: snap.LastError})
		return
	}
	response.Success(w, snap.Decks)
}

// SelectDeck focuses a deck.
func (h *DeckHandler) SelectDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	if err := h.session.SelectDeck(r.Context(), deckID); err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, h.session.ActiveView())
}

// ClearFocus drops the active deck.
func (h *DeckHandler) ClearFocus(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SelectDeck(r.Context(), ""); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// CardRequest names a card and how many copies to add.
type CardRequest struct {
	CardID   string `json:"card_id"`
	Quantity int    `json:"quantity"`
}

// AddCard adds copies of a card to the deck in the path.
func (h *DeckHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	h.addCard(w, r, chi.URLParam(r, "deckID"))
}

// AddCardToActive adds copies of a card to the focused deck.
func (h *DeckHandler) AddCardToActive(w http.ResponseWriter, r *http.Request) {
	h.addCard(w, r, "")
}

func (h *DeckHandler) addCard(w http.ResponseWriter, r *http.Request, deckID string) {
	var req CardRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.session.AddCard(r.Context(), req.CardID, deckID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Success(w, res)
}

// RemoveCard removes copies of a card from the deck in the path.
func (h *DeckHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	h.removeCard(w, r, chi.URLParam(r, "deckID"))
}

// RemoveCardFromActive removes copies of a card from the focused deck.
func (h *DeckHandler) RemoveCardFromActive(w http.ResponseWriter, r *http.Request) {
	h.removeCard(w, r, "")
}

func (h *DeckHandler) removeCard(w http.ResponseWriter, r *http.Request, deckID string) {
	cardID := chi.URLParam(r, "cardID")

	res, err := h.session.RemoveCard(r.Context(), cardID, deckID, quantityParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Success(w, res)
}
