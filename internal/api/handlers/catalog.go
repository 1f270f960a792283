package handlers

import (
	"net/http"

	"github.com/ramonehamilton/mtg-commander/internal/api/response"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/session"
	"github.com/ramonehamilton/mtg-commander/internal/view"
)

// CatalogHandler handles search, commander and recommendation requests.
type CatalogHandler struct {
	session *session.Session
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(s *session.Session) *CatalogHandler {
	return &CatalogHandler{session: s}
}

// SearchRequest represents a catalog query.
type SearchRequest struct {
	Query string `json:"query"`
}

// CardRow is a search result with its display prices.
type CardRow struct {
	remote.Card
	Price view.PricePair `json:"price"`
}

func rows(cards []remote.Card) []CardRow {
	out := make([]CardRow, 0, len(cards))
	for _, c := range cards {
		out = append(out, CardRow{Card: c, Price: view.CardPrice(c)})
	}
	return out
}

// Search runs a catalog query. A superseded or failed search answers with no
// rows; the failure, if any, is in lastError.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cards, err := h.session.Search(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	if cards == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Success(w, rows(cards))
}

// GetResults returns the current result set.
func (h *CatalogHandler) GetResults(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, rows(h.session.Results()))
}

// SelectCommanderRequest picks a commander from the current results.
type SelectCommanderRequest struct {
	CardID string `json:"card_id"`
}

// SelectCommander sets the commander for the next created deck.
func (h *CatalogHandler) SelectCommander(w http.ResponseWriter, r *http.Request) {
	var req SelectCommanderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd, err := h.session.SelectCommander(req.CardID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, cmd)
}

// Recommend asks for commander suggestions.
func (h *CatalogHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	colors := r.URL.Query().Get("colors")
	playstyle := remote.Playstyle(r.URL.Query().Get("playstyle"))

	rec, err := h.session.RecommendCommanders(r.Context(), colors, playstyle)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		response.Unsettled(w, h.session.LastError())
		return
	}
	response.Success(w, rec)
}
