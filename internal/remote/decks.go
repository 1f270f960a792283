package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
)

// ListDecks retrieves every stored deck, newest first.
func (c *Client) ListDecks(ctx context.Context) ([]Deck, error) {
	const op = "list decks"

	var decks []Deck
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/decks"}, &decks); err != nil {
		return nil, err
	}

	for i := range decks {
		if err := checkDeck(op, &decks[i]); err != nil {
			return nil, err
		}
	}
	return decks, nil
}

// CreateDeck creates a deck named name (trimmed).
func (c *Client) CreateDeck(ctx context.Context, req CreateDeckRequest) (*Deck, error) {
	const op = "create deck"

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperror.Invalid("name", "must not be empty")
	}

	var deck Deck
	if err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/api/decks", body: req}, &deck); err != nil {
		return nil, err
	}
	if err := checkDeck(op, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

// DeleteDeck deletes deckID.
func (c *Client) DeleteDeck(ctx context.Context, deckID string) error {
	if strings.TrimSpace(deckID) == "" {
		return apperror.Invalid("deck id", "must not be empty")
	}

	return c.do(ctx, request{
		op:     "delete deck",
		method: http.MethodDelete,
		path:   "/api/decks/" + url.PathEscape(deckID),
	}, nil)
}

// AddCard asks the service to add quantity copies of cardID to deckID.
func (c *Client) AddCard(ctx context.Context, deckID, cardID string, quantity int) (*MutationResult, error) {
	const op = "add card"

	if err := checkIDs(deckID, cardID); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("card_id", cardID)
	query.Set("quantity", strconv.Itoa(normalizeQuantity(quantity)))

	var result MutationResult
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodPut,
		path:   "/api/decks/" + url.PathEscape(deckID) + "/add-card",
		query:  query,
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := checkDeck(op, &result.Deck); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveCard asks the service to remove quantity copies of cardID from deckID.
// Removing more than the deck holds is resolved by the service.
func (c *Client) RemoveCard(ctx context.Context, deckID, cardID string, quantity int) (*MutationResult, error) {
	const op = "remove card"

	if err := checkIDs(deckID, cardID); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("quantity", strconv.Itoa(normalizeQuantity(quantity)))

	var result MutationResult
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodDelete,
		path:   "/api/decks/" + url.PathEscape(deckID) + "/remove-card/" + url.PathEscape(cardID),
		query:  query,
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := checkDeck(op, &result.Deck); err != nil {
		return nil, err
	}
	return &result, nil
}

func normalizeQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func checkIDs(deckID, cardID string) error {
	if strings.TrimSpace(deckID) == "" {
		return apperror.Invalid("deck id", "must not be empty")
	}
	if strings.TrimSpace(cardID) == "" {
		return apperror.Invalid("card id", "must not be empty")
	}
	return nil
}

func checkDeck(op string, d *Deck) error {
	if d.ID == "" {
		return malformed(op, "deck without id")
	}
	for _, e := range d.Cards {
		if e.CardID == "" {
			return malformed(op, "deck %s has an entry without card id", d.ID)
		}
	}
	return nil
}
