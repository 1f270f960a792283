package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Price keys as reported by the catalog service. The *_aud keys are converted
// server-side; the client never converts currencies itself.
const (
	PriceUSD        = "usd"
	PriceUSDFoil    = "usd_foil"
	PriceUSDEtched  = "usd_etched"
	PriceEUR        = "eur"
	PriceUSDAUD     = "usd_aud"
	PriceUSDFoilAUD = "usd_foil_aud"
)

// Prices maps a currency key to a decimal amount.
// The service sends amounts as strings, numbers or null; nulls and blanks are dropped.
type Prices map[string]float64

// UnmarshalJSON accepts string, number and null amounts.
func (p *Prices) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode prices: %w", err)
	}

	out := make(Prices, len(raw))
	for key, value := range raw {
		if amount, ok := parseAmount(value); ok {
			out[key] = amount
		}
	}
	*p = out
	return nil
}

func parseAmount(value json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(value, &f); err == nil {
		return f, true
	}

	var s *string
	if err := json.Unmarshal(value, &s); err != nil || s == nil {
		return 0, false
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Quote returns the amount for key, if quoted.
func (p Prices) Quote(key string) (float64, bool) {
	v, ok := p[key]
	return v, ok
}

// Card represents a catalog card as returned by search.
type Card struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ManaCost      string            `json:"mana_cost,omitempty"`
	CMC           float64           `json:"cmc"`
	TypeLine      string            `json:"type_line"`
	OracleText    string            `json:"oracle_text,omitempty"`
	Power         string            `json:"power,omitempty"`
	Toughness     string            `json:"toughness,omitempty"`
	Colors        []string          `json:"colors,omitempty"`
	ColorIdentity []string          `json:"color_identity,omitempty"`
	ImageURIs     map[string]string `json:"image_uris,omitempty"`
	Prices        Prices            `json:"prices,omitempty"`
	SetName       string            `json:"set_name,omitempty"`
	Rarity        string            `json:"rarity,omitempty"`
	Legalities    map[string]string `json:"legalities,omitempty"`
}

// ImageURL returns the image for size, falling back to "normal".
func (c Card) ImageURL(size string) string {
	if uri, ok := c.ImageURIs[size]; ok {
		return uri
	}
	return c.ImageURIs["normal"]
}

// SearchResult is the response of a catalog search.
type SearchResult struct {
	Cards []Card `json:"cards"`
	Total int    `json:"total"`
}

// Commander is the deck's color-identity anchor as stored by the service.
type Commander struct {
	ID            string   `json:"id,omitempty"`
	CardID        string   `json:"card_id"`
	Name          string   `json:"name"`
	ColorIdentity []string `json:"color_identity"`
	ImageURI      string   `json:"image_uri,omitempty"`
	PowerLevel    int      `json:"power_level,omitempty"`
	Synergies     []string `json:"synergies,omitempty"`
	PriceUSD      float64  `json:"price_usd,omitempty"`
	PriceAUD      float64  `json:"price_aud,omitempty"`
}

// CommanderFromCard builds the commander payload sent on deck creation.
func CommanderFromCard(c Card) *Commander {
	cmd := &Commander{
		CardID:        c.ID,
		Name:          c.Name,
		ColorIdentity: append([]string{}, c.ColorIdentity...),
		ImageURI:      c.ImageURL("normal"),
	}
	cmd.PriceUSD, _ = c.Prices.Quote(PriceUSD)
	cmd.PriceAUD, _ = c.Prices.Quote(PriceUSDAUD)
	return cmd
}

// DeckCardEntry is one card line in a deck.
type DeckCardEntry struct {
	CardID   string  `json:"card_id"`
	Name     string  `json:"name,omitempty"`
	TypeLine string  `json:"type_line,omitempty"`
	ImageURI string  `json:"image_uri,omitempty"`
	PriceAUD float64 `json:"price_aud,omitempty"`
	Quantity int     `json:"quantity"`
}

// Deck is the authoritative deck snapshot.
// Totals, prices and power level are computed by the service.
type Deck struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Commander     *Commander      `json:"commander,omitempty"`
	Cards         []DeckCardEntry `json:"cards"`
	TotalCards    int             `json:"total_cards"`
	PowerLevel    int             `json:"power_level"`
	TotalPriceUSD float64         `json:"total_price_usd"`
	TotalPriceAUD float64         `json:"total_price_aud"`
	FoilPriceUSD  float64         `json:"foil_price_usd"`
	FoilPriceAUD  float64         `json:"foil_price_aud"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// Entry returns the entry for cardID.
func (d Deck) Entry(cardID string) (DeckCardEntry, bool) {
	for _, e := range d.Cards {
		if e.CardID == cardID {
			return e, true
		}
	}
	return DeckCardEntry{}, false
}

// Quantity returns how many copies of cardID the deck holds.
func (d Deck) Quantity(cardID string) int {
	e, _ := d.Entry(cardID)
	return e.Quantity
}

// Clone returns a deep copy so callers cannot alias registry state.
func (d Deck) Clone() Deck {
	out := d
	out.Cards = append([]DeckCardEntry(nil), d.Cards...)
	if d.Commander != nil {
		c := *d.Commander
		c.ColorIdentity = append([]string(nil), d.Commander.ColorIdentity...)
		c.Synergies = append([]string(nil), d.Commander.Synergies...)
		out.Commander = &c
	}
	return out
}

// ValidationResult is the service's legality verdict for a deck.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Clone returns a copy with its own error slice.
func (v ValidationResult) Clone() ValidationResult {
	return ValidationResult{Valid: v.Valid, Errors: append([]string(nil), v.Errors...)}
}

// MutationResult is the response to add-card and remove-card.
type MutationResult struct {
	Deck       Deck             `json:"deck"`
	Validation ValidationResult `json:"validation"`
}

// CreateDeckRequest is the body of a deck creation.
type CreateDeckRequest struct {
	Name      string     `json:"name"`
	Commander *Commander `json:"commander,omitempty"`
}

// Playstyle filters commander recommendations.
type Playstyle string

const (
	PlaystyleAny        Playstyle = ""
	PlaystyleAggressive Playstyle = "aggressive"
	PlaystyleControl    Playstyle = "control"
	PlaystyleCombo      Playstyle = "combo"
	PlaystyleTribal     Playstyle = "tribal"
)

// Valid reports whether p is one of the known playstyles or empty.
func (p Playstyle) Valid() bool {
	switch p {
	case PlaystyleAny, PlaystyleAggressive, PlaystyleControl, PlaystyleCombo, PlaystyleTribal:
		return true
	}
	return false
}

// Recommendation is the free-text commander recommendation.
type Recommendation struct {
	Recommendations string `json:"recommendations"`
	Colors          string `json:"colors"`
	Playstyle       string `json:"playstyle"`
}

// PlayersPerGame is the fixed Commander pod size.
const PlayersPerGame = 4

// Game is the descriptor returned when a game is created.
// The controller treats everything except ID as informational.
type Game struct {
	ID          string         `json:"id"`
	Players     []string       `json:"players"`
	CurrentTurn int            `json:"current_turn"`
	Phase       string         `json:"phase"`
	LifeTotals  map[string]int `json:"life_totals,omitempty"`
	TurnCount   int            `json:"turn_count"`
	GameOver    bool           `json:"game_over"`
	Winner      *string        `json:"winner,omitempty"`
}
