package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
)

// SearchCards performs a full-text search against the catalog.
func (c *Client) SearchCards(ctx context.Context, query string, limit int) (*SearchResult, error) {
	const op = "search cards"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Invalid("query", "must not be empty")
	}

	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result SearchResult
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/cards/search", query: params}, &result); err != nil {
		return nil, err
	}

	for _, card := range result.Cards {
		if card.ID == "" {
			return nil, malformed(op, "card %q without id", card.Name)
		}
	}
	return &result, nil
}

// RecommendCommanders asks for commander suggestions by colors and playstyle.
func (c *Client) RecommendCommanders(ctx context.Context, colors string, playstyle Playstyle) (*Recommendation, error) {
	if !playstyle.Valid() {
		return nil, apperror.Invalid("playstyle", "must be one of aggressive, control, combo, tribal")
	}

	params := url.Values{}
	params.Set("colors", strings.TrimSpace(colors))
	params.Set("playstyle", string(playstyle))

	var rec Recommendation
	err := c.do(ctx, request{
		op:     "recommend commanders",
		method: http.MethodGet,
		path:   "/api/commanders/recommend",
		query:  params,
	}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateGame starts a game for exactly four players, in seat order.
func (c *Client) CreateGame(ctx context.Context, players []string) (*Game, error) {
	const op = "create game"

	if len(players) != PlayersPerGame {
		return nil, apperror.Invalid("players", "commander requires exactly 4 players")
	}
	for _, p := range players {
		if strings.TrimSpace(p) == "" {
			return nil, apperror.Invalid("players", "player id must not be empty")
		}
	}

	var game Game
	if err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/api/games", body: players}, &game); err != nil {
		return nil, err
	}
	if game.ID == "" {
		return nil, malformed(op, "game without id")
	}
	return &game, nil
}

// RequestAIDecision fetches the AI's next action for playerID. The payload is opaque.
func (c *Client) RequestAIDecision(ctx context.Context, gameID, playerID string) (json.RawMessage, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, apperror.Invalid("game id", "must not be empty")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, apperror.Invalid("player id", "must not be empty")
	}

	params := url.Values{}
	params.Set("player_id", playerID)

	var decision json.RawMessage
	err := c.do(ctx, request{
		op:     "request ai decision",
		method: http.MethodGet,
		path:   "/api/games/" + url.PathEscape(gameID) + "/ai-decision",
		query:  params,
	}, &decision)
	if err != nil {
		return nil, err
	}
	return decision, nil
}
