// Package view turns deck snapshots into display-ready values. Nothing here
// performs I/O; every figure comes from the last authoritative snapshot.
package view

import (
	"fmt"
	"math"

	"github.com/ramonehamilton/mtg-commander/internal/archetype"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

// DeckSize is the number of cards a legal Commander deck holds, commander included.
const DeckSize = 100

// NoQuote is shown for catalog cards the service has no price for.
const NoQuote = "N/A"

// PricePair is a USD amount next to the service's pre-converted AUD amount.
type PricePair struct {
	USD string `json:"usd"`
	AUD string `json:"aud"`
}

// Tier is a named power bracket.
type Tier struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
}

// BannerState is the legality indicator shown above a deck.
type BannerState string

const (
	BannerUnknown BannerState = "unknown"
	BannerLegal   BannerState = "legal"
	BannerIllegal BannerState = "illegal"
)

// BannerView is the legality indicator plus the service's messages, in order.
type BannerView struct {
	State    BannerState `json:"state"`
	Messages []string    `json:"messages"`
}

// DeckView is everything the deck panel renders.
type DeckView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Commander  string     `json:"commander,omitempty"`
	Identity   string     `json:"identity,omitempty"` // e.g. "Jund (BRG)"
	TotalCards int        `json:"total_cards"`
	Slots      string     `json:"slots"`
	Remaining  int        `json:"remaining"`
	Price      PricePair  `json:"price"`
	FoilPrice  PricePair  `json:"foil_price"`
	Tier       Tier       `json:"tier"`
	Banner     BannerView `json:"banner"`
}

var tiers = [...]string{
	1: "Exhibition",
	2: "Core",
	3: "Upgraded",
	4: "Optimized",
	5: "cEDH",
}

// Summarize builds the view for d. A nil deck gives the empty view.
func Summarize(d *remote.Deck, validation *remote.ValidationResult) DeckView {
	v := DeckView{
		Slots:     SlotCount(d),
		Remaining: DeckSize,
		Price:     PricePair{USD: FormatUSD(0), AUD: FormatAUD(0)},
		FoilPrice: PricePair{USD: FormatUSD(0), AUD: FormatAUD(0)},
		Tier:      BracketTier(0),
		Banner:    Banner(validation),
	}
	if d == nil {
		return v
	}

	v.ID = d.ID
	v.Name = d.Name
	if d.Commander != nil {
		v.Commander = d.Commander.Name
		id := archetype.Describe(d.Commander.ColorIdentity)
		v.Identity = fmt.Sprintf("%s (%s)", id.Name, id.Colors)
	}
	v.TotalCards = d.TotalCards
	v.Remaining = DeckSize - d.TotalCards
	v.Price = PricePair{USD: FormatUSD(d.TotalPriceUSD), AUD: FormatAUD(d.TotalPriceAUD)}
	v.FoilPrice = PricePair{USD: FormatUSD(d.FoilPriceUSD), AUD: FormatAUD(d.FoilPriceAUD)}
	v.Tier = BracketTier(d.PowerLevel)
	return v
}

// FormatUSD renders amount as "$12.34".
func FormatUSD(amount float64) string {
	return formatMoney("$", amount)
}

// FormatAUD renders amount as "A$12.34".
func FormatAUD(amount float64) string {
	return formatMoney("A$", amount)
}

func formatMoney(symbol string, amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	if amount < 0 {
		return fmt.Sprintf("-%s%.2f", symbol, -amount)
	}
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

// SlotCount renders the deck's fill level as "N/100".
func SlotCount(d *remote.Deck) string {
	if d == nil {
		return fmt.Sprintf("0/%d", DeckSize)
	}
	return fmt.Sprintf("%d/%d", d.TotalCards, DeckSize)
}

// BracketTier maps a power bracket to its tier. Anything outside 1-5 is
// shown as tier 1.
func BracketTier(level int) Tier {
	if level < 1 || level >= len(tiers) {
		level = 1
	}
	return Tier{Level: level, Name: tiers[level]}
}

// Banner derives the legality banner. Without a verdict the state is unknown.
func Banner(v *remote.ValidationResult) BannerView {
	if v == nil {
		return BannerView{State: BannerUnknown, Messages: []string{}}
	}
	msgs := append([]string{}, v.Errors...)
	if v.Valid {
		return BannerView{State: BannerLegal, Messages: msgs}
	}
	return BannerView{State: BannerIllegal, Messages: msgs}
}

// CardPrice picks the regular quotes for a search result row, falling back
// to foil when a card only sells foil.
func CardPrice(c remote.Card) PricePair {
	return PricePair{
		USD: quote(c.Prices, FormatUSD, remote.PriceUSD, remote.PriceUSDFoil, remote.PriceUSDEtched),
		AUD: quote(c.Prices, FormatAUD, remote.PriceUSDAUD, remote.PriceUSDFoilAUD),
	}
}

func quote(p remote.Prices, format func(float64) string, keys ...string) string {
	for _, k := range keys {
		if v, ok := p.Quote(k); ok {
			return format(v)
		}
	}
	return NoQuote
}
