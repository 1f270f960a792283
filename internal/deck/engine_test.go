package deck

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/remote/remotetest"
)

var testCards = []remote.Card{
	{ID: "forest", Name: "Forest", TypeLine: "Basic Land — Forest"},
	{ID: "sol-ring", Name: "Sol Ring", TypeLine: "Artifact", Prices: remote.Prices{remote.PriceUSD: 1.5, remote.PriceUSDAUD: 2.3}},
	{ID: "arcane-signet", Name: "Arcane Signet", TypeLine: "Artifact"},
	{ID: "card-123", Name: "Cultivate", TypeLine: "Sorcery"},
	{ID: "lightning-bolt", Name: "Lightning Bolt", TypeLine: "Instant"},
}

type fixture struct {
	server   *remotetest.Server
	registry *Registry
	engine   *Engine
}

func newFixture(t *testing.T, decks ...remote.Deck) *fixture {
	t.Helper()

	server := remotetest.NewServer(t)
	server.AddCards(testCards...)
	for i := len(decks) - 1; i >= 0; i-- {
		server.SeedDeck(decks[i])
	}

	client := testClient(server.URL)
	reg := NewRegistry(client, nil)
	require.NoError(t, reg.Refresh(context.Background()))

	return &fixture{server: server, registry: reg, engine: NewEngine(client, reg)}
}

func ninetyNine() remote.Deck {
	return remote.Deck{
		ID:        "d1",
		Name:      "Omnath Lands",
		Commander: &remote.Commander{CardID: "omnath", Name: "Omnath, Locus of Creation"},
		Cards:     []remote.DeckCardEntry{{CardID: "forest", Quantity: 98}},
	}
}

// blockCard makes add-card requests for cardID wait until the returned
// release func is called. Every add-card arrival is reported on the channel.
func blockCard(f *fixture, cardID string) (<-chan string, func()) {
	arrived := make(chan string, 16)
	gate := make(chan struct{})
	f.server.Hook(remotetest.RouteAddCard, func(r *http.Request) {
		id := r.URL.Query().Get("card_id")
		arrived <- id
		if id == cardID {
			<-gate
		}
	})
	var once sync.Once
	return arrived, func() { once.Do(func() { close(gate) }) }
}

func TestEngine_AddCompletesDeck(t *testing.T) {
	f := newFixture(t, ninetyNine())
	ctx := context.Background()
	require.NoError(t, f.registry.Select(ctx, "d1"))

	before, _ := f.registry.Get("d1")
	assert.Equal(t, 99, before.TotalCards)

	res, err := f.engine.AddCard(ctx, "card-123", "", 1)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, 100, res.Deck.TotalCards)
	assert.True(t, res.Validation.Valid)
	assert.Empty(t, res.Validation.Errors)

	d, _ := f.registry.Get("d1")
	assert.Equal(t, 100, d.TotalCards)
	assert.Equal(t, 1, d.Quantity("card-123"))
	require.NotNil(t, f.registry.Validation("d1"))
	assert.True(t, f.registry.Validation("d1").Valid)
}

func TestEngine_AddThenRemoveRestoresCount(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"})
	ctx := context.Background()
	require.NoError(t, f.registry.Select(ctx, "d1"))

	before, _ := f.registry.Get("d1")

	_, err := f.engine.AddCard(ctx, "sol-ring", "", 1)
	require.NoError(t, err)
	mid, _ := f.registry.Get("d1")
	assert.Equal(t, before.TotalCards+1, mid.TotalCards)
	assert.InDelta(t, 1.5, mid.TotalPriceUSD, 0.001)

	_, err = f.engine.RemoveCard(ctx, "sol-ring", "", 1)
	require.NoError(t, err)
	after, _ := f.registry.Get("d1")
	assert.Equal(t, before.TotalCards, after.TotalCards)
	assert.Equal(t, 0, after.Quantity("sol-ring"))
}

func TestEngine_UsesServerTotals(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"})
	f.server.FilterMutations(func(res *remote.MutationResult) {
		res.Deck.TotalCards = 42
		res.Validation = remote.ValidationResult{Valid: false, Errors: []string{"server says no"}}
	})

	res, err := f.engine.AddCard(context.Background(), "forest", "d1", 3)
	require.NoError(t, err)

	assert.Equal(t, 42, res.Deck.TotalCards)
	d, _ := f.registry.Get("d1")
	assert.Equal(t, 42, d.TotalCards)
	assert.Equal(t, []string{"server says no"}, f.registry.Validation("d1").Errors)
}

func TestEngine_NoTargetIsNoop(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"})

	res, err := f.engine.AddCard(context.Background(), "sol-ring", "", 1)
	assert.NoError(t, err)
	assert.Nil(t, res)

	res, err = f.engine.RemoveCard(context.Background(), "sol-ring", "", 1)
	assert.NoError(t, err)
	assert.Nil(t, res)

	assert.Equal(t, 0, f.server.Count(remotetest.RouteAddCard))
	assert.Equal(t, 0, f.server.Count(remotetest.RouteRemoveCard))
}

func TestEngine_UnknownExplicitDeck(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.AddCard(context.Background(), "sol-ring", "nope", 1)
	assert.True(t, errors.Is(err, ErrUnknownDeck))
	assert.Equal(t, 0, f.server.Count(remotetest.RouteAddCard))
}

func TestEngine_QuantityBelowOneBecomesOne(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"})

	res, err := f.engine.AddCard(context.Background(), "forest", "d1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deck.Quantity("forest"))

	res, err = f.engine.AddCard(context.Background(), "forest", "d1", -4)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deck.Quantity("forest"))
}

func TestEngine_RemoveMissingCardSurfacesServerMessage(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko", Cards: []remote.DeckCardEntry{{CardID: "forest", Quantity: 10}}})

	res, err := f.engine.RemoveCard(context.Background(), "lightning-bolt", "d1", 1)
	require.NoError(t, err)

	assert.False(t, res.Validation.Valid)
	require.NotEmpty(t, res.Validation.Errors)
	assert.Equal(t, "Card lightning-bolt is not in this deck", res.Validation.Errors[0])
	assert.Equal(t, 10, res.Deck.TotalCards)
}

func TestEngine_FailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko", Cards: []remote.DeckCardEntry{{CardID: "forest", Quantity: 10}}})
	ctx := context.Background()
	require.NoError(t, f.registry.Select(ctx, "d1"))
	before, _ := f.registry.Get("d1")

	f.server.Fail(remotetest.RouteAddCard, http.StatusInternalServerError, 1)
	res, err := f.engine.AddCard(ctx, "sol-ring", "", 1)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, remote.IsRemote(err))

	after, _ := f.registry.Get("d1")
	assert.Equal(t, before, after)
	assert.Nil(t, f.registry.Validation("d1"))
	assert.Equal(t, 1, f.server.Count(remotetest.RouteAddCard))
}

func TestEngine_SameDeckMutationsRunInIssueOrder(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"})
	arrived, release := blockCard(f, "sol-ring")
	defer release()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.engine.AddCard(ctx, "sol-ring", "d1", 1)
	}()
	require.Equal(t, "sol-ring", <-arrived)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.engine.AddCard(ctx, "arcane-signet", "d1", 1)
	}()
	require.Eventually(t, func() bool { return f.engine.Pending("d1") == 2 }, time.Second, time.Millisecond)

	select {
	case id := <-arrived:
		t.Fatalf("%s reached the service while an earlier mutation was in flight", id)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "arcane-signet", <-arrived)

	// The second response already includes the first mutation.
	assert.Equal(t, 1, results[1].Deck.Quantity("sol-ring"))
	assert.Equal(t, 2, results[1].Deck.TotalCards)

	local, _ := f.registry.Get("d1")
	stored, _ := f.server.Deck("d1")
	assert.Equal(t, stored.Cards, local.Cards)
	assert.Equal(t, stored.TotalCards, local.TotalCards)
	assert.Equal(t, 0, f.engine.Pending("d1"))
}

func TestEngine_DifferentDecksDoNotWait(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"}, remote.Deck{ID: "d2", Name: "Atraxa"})
	arrived, release := blockCard(f, "sol-ring")
	defer release()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.AddCard(ctx, "sol-ring", "d1", 1)
		done <- err
	}()
	require.Equal(t, "sol-ring", <-arrived)

	res, err := f.engine.AddCard(ctx, "arcane-signet", "d2", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deck.TotalCards)

	release()
	require.NoError(t, <-done)
}

func TestEngine_CancelledWaiterKeepsQueueOrder(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "d1", Name: "Krenko"})
	arrived, release := blockCard(f, "sol-ring")
	defer release()

	first := make(chan error, 1)
	go func() {
		_, err := f.engine.AddCard(context.Background(), "sol-ring", "d1", 1)
		first <- err
	}()
	require.Equal(t, "sol-ring", <-arrived)

	cctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := f.engine.AddCard(cctx, "lightning-bolt", "d1", 1)
		second <- err
	}()
	require.Eventually(t, func() bool { return f.engine.Pending("d1") == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-second, context.Canceled)

	third := make(chan error, 1)
	go func() {
		_, err := f.engine.AddCard(context.Background(), "arcane-signet", "d1", 1)
		third <- err
	}()

	select {
	case id := <-arrived:
		t.Fatalf("%s jumped the queue", id)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, <-first)
	require.NoError(t, <-third)
	assert.Equal(t, "arcane-signet", <-arrived)
	assert.Equal(t, 2, f.server.Count(remotetest.RouteAddCard))

	d, _ := f.registry.Get("d1")
	assert.Equal(t, 0, d.Quantity("lightning-bolt"))
	assert.Equal(t, 2, d.TotalCards)
}
