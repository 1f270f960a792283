package deck

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/remote/remotetest"
	"github.com/ramonehamilton/mtg-commander/internal/storage"
)

func testClient(baseURL string) *remote.Client {
	cfg := remote.DefaultClientConfig(baseURL)
	cfg.RetryBaseDelay = time.Millisecond
	cfg.MaxRetryDelay = 5 * time.Millisecond
	cfg.RateInterval = 0
	return remote.NewClient(cfg)
}

func testCache(t *testing.T, path string) *storage.SnapshotStore {
	t.Helper()

	db, err := storage.Open(storage.DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewSnapshotStore(db)
}

func ids(decks []remote.Deck) []string {
	out := make([]string, 0, len(decks))
	for _, d := range decks {
		out = append(out, d.ID)
	}
	return out
}

func TestRegistry_CreateTrimsAndFocuses(t *testing.T) {
	server := remotetest.NewServer(t)
	older := server.SeedDeck(remote.Deck{ID: "older", Name: "Krenko"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))

	d, err := reg.Create(ctx, "  Atraxa Superfriends  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "Atraxa Superfriends", d.Name)
	assert.Equal(t, d.ID, reg.ActiveID())
	assert.Equal(t, []string{d.ID, older.ID}, ids(reg.List()))

	stored, ok := server.Deck(d.ID)
	require.True(t, ok)
	assert.Equal(t, "Atraxa Superfriends", stored.Name)
}

func TestRegistry_CreateWithCommander(t *testing.T) {
	server := remotetest.NewServer(t)
	reg := NewRegistry(testClient(server.URL), nil)

	cmd := &remote.Commander{CardID: "atraxa", Name: "Atraxa, Praetors' Voice", ColorIdentity: []string{"W", "U", "B", "G"}}
	d, err := reg.Create(context.Background(), "Atraxa", cmd)
	require.NoError(t, err)

	require.NotNil(t, d.Commander)
	assert.Equal(t, "atraxa", d.Commander.CardID)
	assert.Equal(t, 1, d.TotalCards)
}

func TestRegistry_CreateBlankNameMakesNoRequest(t *testing.T) {
	server := remotetest.NewServer(t)
	reg := NewRegistry(testClient(server.URL), nil)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := reg.Create(context.Background(), name, nil)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
	}

	assert.Equal(t, 0, server.Count(remotetest.RouteCreateDeck))
	assert.Empty(t, reg.List())
	assert.Empty(t, reg.ActiveID())
}

func TestRegistry_DeleteActiveClearsFocus(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	server.SeedDeck(remote.Deck{ID: "b", Name: "B"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))
	require.NoError(t, reg.Select(ctx, "a"))

	require.NoError(t, reg.Delete(ctx, "a"))

	assert.Empty(t, reg.ActiveID())
	assert.Equal(t, []string{"b"}, ids(reg.List()))
	_, ok := server.Deck("a")
	assert.False(t, ok)
}

func TestRegistry_DeleteOtherKeepsFocus(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	server.SeedDeck(remote.Deck{ID: "b", Name: "B"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))
	require.NoError(t, reg.Select(ctx, "a"))

	require.NoError(t, reg.Delete(ctx, "b"))

	assert.Equal(t, "a", reg.ActiveID())
	assert.Equal(t, []string{"a"}, ids(reg.List()))
}

func TestRegistry_DeleteFailureKeepsDeck(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))
	require.NoError(t, reg.Select(ctx, "a"))

	server.Fail(remotetest.RouteDeleteDeck, http.StatusInternalServerError, 1)
	err := reg.Delete(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode(err))

	assert.Equal(t, "a", reg.ActiveID())
	assert.True(t, reg.Has("a"))
}

func TestRegistry_SelectUnknown(t *testing.T) {
	reg := NewRegistry(nil, nil)

	err := reg.Select(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrUnknownDeck))
	assert.Empty(t, reg.ActiveID())
	_, ok := reg.Active()
	assert.False(t, ok)
}

func TestRegistry_RefreshKeepsExistingFocus(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	server.SeedDeck(remote.Deck{ID: "b", Name: "B"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))
	require.NoError(t, reg.Select(ctx, "b"))

	require.NoError(t, reg.Refresh(ctx))
	assert.Equal(t, "b", reg.ActiveID())
	assert.Equal(t, []string{"b", "a"}, ids(reg.List()))

	// Deleted elsewhere: focus goes with it.
	require.NoError(t, testClient(server.URL).DeleteDeck(ctx, "b"))
	require.NoError(t, reg.Refresh(ctx))
	assert.Empty(t, reg.ActiveID())
	assert.Equal(t, []string{"a"}, ids(reg.List()))
}

func TestRegistry_ReplaceRefusesUnregisteredDeck(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))

	ok := reg.Replace(ctx, "gone", remote.Deck{ID: "gone"}, remote.ValidationResult{Valid: true})
	assert.False(t, ok)
	assert.False(t, reg.Has("gone"))

	ok = reg.Replace(ctx, "a", remote.Deck{ID: "other"}, remote.ValidationResult{Valid: true})
	assert.False(t, ok)

	ok = reg.Replace(ctx, "a", remote.Deck{ID: "a", Name: "A", TotalCards: 7}, remote.ValidationResult{Errors: []string{"too small"}})
	require.True(t, ok)
	d, _ := reg.Get("a")
	assert.Equal(t, 7, d.TotalCards)
	require.NotNil(t, reg.Validation("a"))
	assert.Equal(t, []string{"too small"}, reg.Validation("a").Errors)
}

func TestRegistry_ReturnedDecksDoNotAlias(t *testing.T) {
	server := remotetest.NewServer(t)
	server.AddCards(remote.Card{ID: "forest", Name: "Forest"})
	server.SeedDeck(remote.Deck{ID: "a", Name: "A", Cards: []remote.DeckCardEntry{{CardID: "forest", Quantity: 3}}})
	reg := NewRegistry(testClient(server.URL), nil)
	require.NoError(t, reg.Refresh(context.Background()))

	d, _ := reg.Get("a")
	d.Cards[0].Quantity = 99

	again, _ := reg.Get("a")
	assert.Equal(t, 3, again.Quantity("forest"))
}

func TestRegistry_FallsBackToCacheWhenServiceDown(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	server.SeedDeck(remote.Deck{ID: "b", Name: "B"})
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first := NewRegistry(testClient(server.URL), testCache(t, path))
	require.NoError(t, first.Refresh(ctx))
	require.NoError(t, first.Select(ctx, "a"))
	assert.False(t, first.Stale())

	server.Fail(remotetest.RouteListDecks, http.StatusServiceUnavailable, -1)

	second := NewRegistry(testClient(server.URL), testCache(t, path))
	err := second.Refresh(ctx)
	require.Error(t, err)

	assert.True(t, second.Stale())
	assert.Equal(t, []string{"b", "a"}, ids(second.List()))
	assert.Equal(t, "a", second.ActiveID())
}

func TestRegistry_RefreshFailureWithoutCache(t *testing.T) {
	server := remotetest.NewServer(t)
	server.SeedDeck(remote.Deck{ID: "a", Name: "A"})
	reg := NewRegistry(testClient(server.URL), nil)
	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))

	server.Fail(remotetest.RouteListDecks, http.StatusInternalServerError, -1)
	require.Error(t, reg.Refresh(ctx))

	// The previous snapshots stay in place.
	assert.Equal(t, []string{"a"}, ids(reg.List()))
	assert.False(t, reg.Stale())
}

func TestRegistry_WritesThroughToCache(t *testing.T) {
	server := remotetest.NewServer(t)
	cache := testCache(t, filepath.Join(t.TempDir(), "cache.db"))
	reg := NewRegistry(testClient(server.URL), cache)
	ctx := context.Background()

	d, err := reg.Create(ctx, "Krenko", nil)
	require.NoError(t, err)

	snaps, err := cache.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, d.ID, snaps[0].Deck.ID)

	focus, err := cache.LoadFocus(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.ID, focus)

	require.NoError(t, reg.Delete(ctx, d.ID))
	snaps, err = cache.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	focus, err = cache.LoadFocus(ctx)
	require.NoError(t, err)
	assert.Empty(t, focus)
}
