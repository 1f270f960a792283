package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/mtg-commander/internal/api/response"
	"github.com/ramonehamilton/mtg-commander/internal/session"
)

// GameHandler handles game simulation requests.
type GameHandler struct {
	session *session.Session
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(s *session.Session) *GameHandler {
	return &GameHandler{session: s}
}

// CreateGameRequest lists the four players in seat order.
type CreateGameRequest struct {
	Players []string `json:"players"`
}

// CreateGame starts a simulation.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	game, err := h.session.CreateGame(r.Context(), req.Players)
	if err != nil {
		writeError(w, err)
		return
	}
	if game == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Created(w, game)
}

// GetAIDecision relays the simulator's decision for a player untouched.
func (h *GameHandler) GetAIDecision(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	playerID := r.URL.Query().Get("player_id")

	decision, err := h.session.RequestAIDecision(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if decision == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Success(w, json.RawMessage(decision))
}
