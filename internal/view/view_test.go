package view

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

func TestSummarize_NilDeck(t *testing.T) {
	v := Summarize(nil, nil)

	assert.Equal(t, "0/100", v.Slots)
	assert.Equal(t, "$0.00", v.Price.USD)
	assert.Equal(t, "A$0.00", v.Price.AUD)
	assert.Equal(t, 100, v.Remaining)
	assert.Equal(t, Tier{Level: 1, Name: "Exhibition"}, v.Tier)
	assert.Equal(t, BannerUnknown, v.Banner.State)
}

func TestSummarize_Deck(t *testing.T) {
	d := &remote.Deck{
		ID:            "d1",
		Name:          "Omnath Lands",
		Commander:     &remote.Commander{Name: "Omnath, Locus of Creation", ColorIdentity: []string{"G", "U", "R", "W"}},
		TotalCards:    99,
		PowerLevel:    4,
		TotalPriceUSD: 412.5,
		TotalPriceAUD: 633.149,
		FoilPriceUSD:  1200,
		FoilPriceAUD:  1842,
	}
	v := Summarize(d, &remote.ValidationResult{Valid: false, Errors: []string{"Deck has 99 cards"}})

	assert.Equal(t, "d1", v.ID)
	assert.Equal(t, "Omnath, Locus of Creation", v.Commander)
	assert.Equal(t, "Ink-Treader (WURG)", v.Identity)
	assert.Equal(t, "99/100", v.Slots)
	assert.Equal(t, 1, v.Remaining)
	assert.Equal(t, PricePair{USD: "$412.50", AUD: "A$633.15"}, v.Price)
	assert.Equal(t, PricePair{USD: "$1200.00", AUD: "A$1842.00"}, v.FoilPrice)
	assert.Equal(t, Tier{Level: 4, Name: "Optimized"}, v.Tier)
	assert.Equal(t, BannerIllegal, v.Banner.State)
	assert.Equal(t, []string{"Deck has 99 cards"}, v.Banner.Messages)
}

func TestSummarize_OverfullDeck(t *testing.T) {
	v := Summarize(&remote.Deck{TotalCards: 103}, nil)
	assert.Equal(t, "103/100", v.Slots)
	assert.Equal(t, -3, v.Remaining)
}

func TestBracketTier(t *testing.T) {
	tests := []struct {
		level int
		want  Tier
	}{
		{1, Tier{1, "Exhibition"}},
		{2, Tier{2, "Core"}},
		{3, Tier{3, "Upgraded"}},
		{4, Tier{4, "Optimized"}},
		{5, Tier{5, "cEDH"}},
		{0, Tier{1, "Exhibition"}},
		{-2, Tier{1, "Exhibition"}},
		{6, Tier{1, "Exhibition"}},
		{42, Tier{1, "Exhibition"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BracketTier(tt.level), "level %d", tt.level)
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", FormatUSD(0))
	assert.Equal(t, "$1.50", FormatUSD(1.5))
	assert.Equal(t, "$0.01", FormatUSD(0.005))
	assert.Equal(t, "-$2.25", FormatUSD(-2.25))
	assert.Equal(t, "A$2.30", FormatAUD(2.3))
	assert.Equal(t, "A$0.00", FormatAUD(math.NaN()))
}

func TestBanner(t *testing.T) {
	t.Run("unknown", func(t *testing.T) {
		b := Banner(nil)
		assert.Equal(t, BannerUnknown, b.State)
		assert.Empty(t, b.Messages)
	})

	t.Run("legal", func(t *testing.T) {
		b := Banner(&remote.ValidationResult{Valid: true})
		assert.Equal(t, BannerLegal, b.State)
		assert.Empty(t, b.Messages)
	})

	t.Run("illegal keeps order", func(t *testing.T) {
		errs := []string{"Card lightning-bolt is not in this deck", "Deck has 12 cards"}
		b := Banner(&remote.ValidationResult{Valid: false, Errors: errs})
		assert.Equal(t, BannerIllegal, b.State)
		assert.Equal(t, errs, b.Messages)

		b.Messages[0] = "changed"
		assert.Equal(t, "Card lightning-bolt is not in this deck", errs[0])
	})
}

func TestCardPrice(t *testing.T) {
	c := remote.Card{Prices: remote.Prices{remote.PriceUSD: 1.5, remote.PriceUSDAUD: 2.3}}
	assert.Equal(t, PricePair{USD: "$1.50", AUD: "A$2.30"}, CardPrice(c))

	foilOnly := remote.Card{Prices: remote.Prices{remote.PriceUSDFoil: 8, remote.PriceUSDFoilAUD: 12.4}}
	assert.Equal(t, PricePair{USD: "$8.00", AUD: "A$12.40"}, CardPrice(foilOnly))

	assert.Equal(t, PricePair{USD: NoQuote, AUD: NoQuote}, CardPrice(remote.Card{}))
}
