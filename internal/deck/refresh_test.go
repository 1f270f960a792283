package deck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

// heldList returns the service's deck list as read when the call arrived, but
// only after release is closed. listed is closed once the list has been read.
type heldList struct {
	Backend
	listed  chan struct{}
	release chan struct{}
}

func holdList(inner Backend) *heldList {
	return &heldList{Backend: inner, listed: make(chan struct{}), release: make(chan struct{})}
}

func (h *heldList) ListDecks(ctx context.Context) ([]remote.Deck, error) {
	decks, err := h.Backend.ListDecks(ctx)
	close(h.listed)
	<-h.release
	return decks, err
}

// startRefresh runs reg.Refresh in the background and returns once the list
// has been read. The returned func releases the list and waits for Refresh.
func startRefresh(t *testing.T, reg *Registry, held *heldList) func() {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- reg.Refresh(context.Background()) }()
	<-held.listed

	return func() {
		close(held.release)
		require.NoError(t, <-done)
	}
}

func TestRegistry_RefreshKeepsMutationAppliedMidList(t *testing.T) {
	f := newFixture(t, ninetyNine())
	ctx := context.Background()
	require.NoError(t, f.registry.Select(ctx, "d1"))

	held := holdList(f.registry.backend)
	f.registry.backend = held
	finish := startRefresh(t, f.registry, held)

	// The list already holds the 99-card deck when this lands.
	res, err := f.engine.AddCard(ctx, "card-123", "d1", 1)
	require.NoError(t, err)
	require.Equal(t, 100, res.Deck.TotalCards)

	finish()

	d, ok := f.registry.Get("d1")
	require.True(t, ok)
	assert.Equal(t, 100, d.TotalCards)
	assert.Equal(t, 1, d.Quantity("card-123"))
	v := f.registry.Validation("d1")
	require.NotNil(t, v)
	assert.True(t, v.Valid)
	assert.Equal(t, "d1", f.registry.ActiveID())
}

func TestRegistry_RefreshDoesNotResurrectDeckDeletedMidList(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "a", Name: "A"}, remote.Deck{ID: "b", Name: "B"})
	ctx := context.Background()
	require.NoError(t, f.registry.Select(ctx, "a"))

	held := holdList(f.registry.backend)
	f.registry.backend = held
	finish := startRefresh(t, f.registry, held)

	require.NoError(t, f.registry.Delete(ctx, "a"))
	finish()

	assert.False(t, f.registry.Has("a"))
	assert.Equal(t, []string{"b"}, ids(f.registry.List()))
	assert.Empty(t, f.registry.ActiveID())
}

func TestRegistry_RefreshKeepsDeckCreatedMidList(t *testing.T) {
	f := newFixture(t, remote.Deck{ID: "a", Name: "A"})
	ctx := context.Background()

	held := holdList(f.registry.backend)
	f.registry.backend = held
	finish := startRefresh(t, f.registry, held)

	created, err := f.registry.Create(ctx, "Krenko", nil)
	require.NoError(t, err)
	finish()

	assert.Equal(t, []string{created.ID, "a"}, ids(f.registry.List()))
	assert.Equal(t, created.ID, f.registry.ActiveID())
}

func TestRegistry_RefreshVerdictFollowsSnapshot(t *testing.T) {
	f := newFixture(t, ninetyNine())
	ctx := context.Background()

	_, err := f.engine.AddCard(ctx, "card-123", "d1", 1)
	require.NoError(t, err)

	// Same snapshot listed again: the verdict still describes it.
	require.NoError(t, f.registry.Refresh(ctx))
	v := f.registry.Validation("d1")
	require.NotNil(t, v)
	assert.True(t, v.Valid)

	// Changed by another client: the old verdict no longer applies.
	_, err = testClient(f.server.URL).AddCard(ctx, "d1", "sol-ring", 1)
	require.NoError(t, err)
	require.NoError(t, f.registry.Refresh(ctx))

	d, _ := f.registry.Get("d1")
	assert.Equal(t, 101, d.TotalCards)
	assert.Nil(t, f.registry.Validation("d1"))
}
