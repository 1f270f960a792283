package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/ramonehamilton/mtg-commander/internal/archetype"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/view"
)

// DeckFormat is a decklist output format.
type DeckFormat string

const (
	// DeckFormatArena is the import format of most deck builders:
	// a Commander section followed by "<qty> <name>" lines.
	DeckFormatArena DeckFormat = "arena"
	// DeckFormatText is a human readable summary.
	DeckFormatText DeckFormat = "text"
	// DeckFormatJSON is the full deck as JSON.
	DeckFormatJSON DeckFormat = "json"
	// DeckFormatCSV is one row per card.
	DeckFormatCSV DeckFormat = "csv"
)

// ParseDeckFormat maps a user supplied name to a DeckFormat. Empty means arena.
func ParseDeckFormat(s string) (DeckFormat, error) {
	switch f := DeckFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return DeckFormatArena, nil
	case DeckFormatArena, DeckFormatText, DeckFormatJSON, DeckFormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported deck format: %s", s)
	}
}

// Extension returns the file extension for f.
func (f DeckFormat) Extension() string {
	switch f {
	case DeckFormatJSON:
		return "json"
	case DeckFormatCSV:
		return "csv"
	default:
		return "txt"
	}
}

// ContentType returns the MIME type for f.
func (f DeckFormat) ContentType() string {
	switch f {
	case DeckFormatJSON:
		return "application/json"
	case DeckFormatCSV:
		return "text/csv"
	default:
		return "text/plain; charset=utf-8"
	}
}

// DeckExportRow represents a deck card for CSV export.
type DeckExportRow struct {
	DeckID   string  `csv:"deck_id" json:"deck_id"`
	DeckName string  `csv:"deck_name" json:"deck_name"`
	Section  string  `csv:"section" json:"section"`
	Quantity int     `csv:"quantity" json:"quantity"`
	CardID   string  `csv:"card_id" json:"card_id"`
	CardName string  `csv:"card_name" json:"card_name"`
	TypeLine string  `csv:"type_line" json:"type_line"`
	PriceAUD float64 `csv:"price_aud" json:"price_aud"`
}

// DeckJSON represents a complete deck in JSON format.
type DeckJSON struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Commander     string         `json:"commander,omitempty"`
	ColorIdentity string         `json:"color_identity,omitempty"`
	Cards         []DeckCardJSON `json:"cards"`
	TotalCards    int            `json:"total_cards"`
	Slots         string         `json:"slots"`
	Price         view.PricePair `json:"price"`
	Tier          view.Tier      `json:"tier"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

// DeckCardJSON represents a card in JSON deck format.
type DeckCardJSON struct {
	Quantity int    `json:"quantity"`
	CardID   string `json:"card_id"`
	CardName string `json:"card_name"`
	TypeLine string `json:"type_line,omitempty"`
}

// WriteDeck writes d to w in format.
func WriteDeck(w io.Writer, d remote.Deck, format DeckFormat) error {
	switch format {
	case DeckFormatArena:
		return writeArena(w, d)
	case DeckFormatText:
		return writeText(w, d)
	case DeckFormatJSON:
		return ExportToWriter(w, FormatJSON, deckJSON(d), true)
	case DeckFormatCSV:
		rows := deckRows(d)
		if len(rows) == 0 {
			return fmt.Errorf("deck %s has no cards to export", d.ID)
		}
		return ExportToWriter(w, FormatCSV, rows, false)
	default:
		return fmt.Errorf("unsupported deck format: %s", format)
	}
}

// WriteDeckFile writes d to path in format.
func WriteDeckFile(path string, d remote.Deck, format DeckFormat, overwrite bool) error {
	exporter := NewExporter(Options{FilePath: path, Overwrite: overwrite})
	return exporter.Write(func(w io.Writer) error { return WriteDeck(w, d, format) })
}

func writeArena(w io.Writer, d remote.Deck) error {
	var content strings.Builder

	if d.Commander != nil {
		content.WriteString("Commander\n")
		content.WriteString(fmt.Sprintf("1 %s\n\n", d.Commander.Name))
	}

	content.WriteString("Deck\n")
	for _, card := range d.Cards {
		content.WriteString(fmt.Sprintf("%d %s\n", card.Quantity, cardName(card)))
	}

	_, err := io.WriteString(w, content.String())
	return err
}

func writeText(w io.Writer, d remote.Deck) error {
	var content strings.Builder
	summary := view.Summarize(&d, nil)

	content.WriteString(fmt.Sprintf("=== %s ===\n", d.Name))
	if d.Commander != nil {
		content.WriteString(fmt.Sprintf("Commander: %s\n", d.Commander.Name))
		content.WriteString(fmt.Sprintf("Colors: %s\n", summary.Identity))
	}
	content.WriteString(fmt.Sprintf("Cards: %s\n", summary.Slots))
	content.WriteString(fmt.Sprintf("Price: %s / %s\n", summary.Price.USD, summary.Price.AUD))
	content.WriteString(fmt.Sprintf("Tier: %d (%s)\n", summary.Tier.Level, summary.Tier.Name))
	content.WriteString("\n")

	for _, card := range d.Cards {
		line := fmt.Sprintf("  %d %s", card.Quantity, cardName(card))
		if card.TypeLine != "" {
			line += fmt.Sprintf(" (%s)", card.TypeLine)
		}
		content.WriteString(line + "\n")
	}

	_, err := io.WriteString(w, content.String())
	return err
}

func deckJSON(d remote.Deck) DeckJSON {
	summary := view.Summarize(&d, nil)
	out := DeckJSON{
		ID:         d.ID,
		Name:       d.Name,
		Commander:  summary.Commander,
		Cards:      make([]DeckCardJSON, 0, len(d.Cards)),
		TotalCards: d.TotalCards,
		Slots:      summary.Slots,
		Price:      summary.Price,
		Tier:       summary.Tier,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.Commander != nil {
		out.ColorIdentity = archetype.Normalize(d.Commander.ColorIdentity)
	}
	for _, card := range d.Cards {
		out.Cards = append(out.Cards, DeckCardJSON{
			Quantity: card.Quantity,
			CardID:   card.CardID,
			CardName: cardName(card),
			TypeLine: card.TypeLine,
		})
	}
	return out
}

func deckRows(d remote.Deck) []DeckExportRow {
	var rows []DeckExportRow
	if d.Commander != nil {
		rows = append(rows, DeckExportRow{
			DeckID:   d.ID,
			DeckName: d.Name,
			Section:  "commander",
			Quantity: 1,
			CardID:   d.Commander.CardID,
			CardName: d.Commander.Name,
			PriceAUD: d.Commander.PriceAUD,
		})
	}
	for _, card := range d.Cards {
		rows = append(rows, DeckExportRow{
			DeckID:   d.ID,
			DeckName: d.Name,
			Section:  "deck",
			Quantity: card.Quantity,
			CardID:   card.CardID,
			CardName: cardName(card),
			TypeLine: card.TypeLine,
			PriceAUD: card.PriceAUD,
		})
	}
	return rows
}

// cardName falls back to the id for entries the service sent without a name.
func cardName(card remote.DeckCardEntry) string {
	if card.Name != "" {
		return card.Name
	}
	return "Card#" + card.CardID
}
