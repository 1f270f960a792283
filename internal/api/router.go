package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/mtg-commander/internal/api/handlers"
	"github.com/ramonehamilton/mtg-commander/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	// WebSocket endpoint (no JSON content-type requirement)
	s.router.Get("/ws", s.wsHub.ServeWs)

	s.router.Route("/api/v1", func(r chi.Router) {
		systemHandler := handlers.NewSystemHandler(s.session)
		r.Get("/state", systemHandler.GetState)
		r.Delete("/error", systemHandler.ClearError)
		r.Get("/metrics", systemHandler.GetMetrics)
		r.Get("/version", systemHandler.GetVersion)

		deckHandler := handlers.NewDeckHandler(s.session)
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", deckHandler.GetDecks)
			r.Post("/", deckHandler.CreateDeck)
			r.Post("/refresh", deckHandler.RefreshDecks)
			r.Get("/{deckID}", deckHandler.GetDeck)
			r.Delete("/{deckID}", deckHandler.DeleteDeck)
			r.Get("/{deckID}/export", deckHandler.ExportDeck)
			r.Post("/{deckID}/select", deckHandler.SelectDeck)
			r.Post("/{deckID}/cards", deckHandler.AddCard)
			r.Delete("/{deckID}/cards/{cardID}", deckHandler.RemoveCard)
		})
		r.Route("/active", func(r chi.Router) {
			r.Delete("/", deckHandler.ClearFocus)
			r.Post("/cards", deckHandler.AddCardToActive)
			r.Delete("/cards/{cardID}", deckHandler.RemoveCardFromActive)
		})

		catalogHandler := handlers.NewCatalogHandler(s.session)
		r.Post("/search", catalogHandler.Search)
		r.Get("/search/results", catalogHandler.GetResults)
		r.Post("/commander", catalogHandler.SelectCommander)
		r.Get("/commanders/recommend", catalogHandler.Recommend)

		gameHandler := handlers.NewGameHandler(s.session)
		r.Post("/games", gameHandler.CreateGame)
		r.Get("/games/{gameID}/ai-decision", gameHandler.GetAIDecision)
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "mtg-commander-bridge",
	})
}
