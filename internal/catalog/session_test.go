package catalog

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-commander/internal/apperror"
	"github.com/ramonehamilton/mtg-commander/internal/remote"
	"github.com/ramonehamilton/mtg-commander/internal/remote/remotetest"
)

func newTestSession(t *testing.T) (*Session, *remotetest.Server) {
	t.Helper()

	srv := remotetest.NewServer(t)
	srv.AddCards(
		remote.Card{ID: "bolt", Name: "Lightning Bolt", TypeLine: "Instant", Prices: remote.Prices{remote.PriceUSD: 1, remote.PriceUSDAUD: 1.55}},
		remote.Card{ID: "counter", Name: "Counterspell", TypeLine: "Instant"},
		remote.Card{ID: "ring", Name: "Sol Ring", TypeLine: "Artifact"},
	)

	cfg := remote.DefaultClientConfig(srv.URL)
	cfg.RateInterval = 0
	cfg.MaxRetries = 0
	return NewSession(remote.NewClient(cfg), 10), srv
}

func TestSearch_SettlesResults(t *testing.T) {
	s, _ := newTestSession(t)

	seq, err := s.Search(context.Background(), "  bolt ")
	require.NoError(t, err)

	cards := slices.Collect(seq)
	require.Len(t, cards, 1)
	assert.Equal(t, "Lightning Bolt", cards[0].Name)
	assert.Equal(t, 1.55, cards[0].Prices[remote.PriceUSDAUD])
	assert.Equal(t, "bolt", s.Query())
	assert.Len(t, s.Results(), 1)
	assert.False(t, s.Busy())
	assert.NoError(t, s.LastError())

	found, ok := s.Find("bolt")
	assert.True(t, ok)
	assert.Equal(t, "Instant", found.TypeLine)
}

func TestSearch_BlankQueryIsNoOp(t *testing.T) {
	s, srv := newTestSession(t)

	_, err := s.Search(context.Background(), "bolt")
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "   ")
	assert.True(t, apperror.IsValidation(err))

	assert.Equal(t, 1, srv.Count(remotetest.RouteSearch))
	assert.Equal(t, "bolt", s.Query())
	assert.Len(t, s.Results(), 1)
}

func TestSearch_FailureClearsResults(t *testing.T) {
	s, srv := newTestSession(t)

	_, err := s.Search(context.Background(), "bolt")
	require.NoError(t, err)

	srv.Fail(remotetest.RouteSearch, http.StatusInternalServerError, 1)

	_, err = s.Search(context.Background(), "ring")
	require.Error(t, err)
	assert.True(t, remote.IsRemote(err))
	assert.Empty(t, s.Results())
	assert.Error(t, s.LastError())
	assert.False(t, s.Busy())

	// retry works
	seq, err := s.Search(context.Background(), "ring")
	require.NoError(t, err)
	assert.Len(t, slices.Collect(seq), 1)
	assert.NoError(t, s.LastError())
}

func TestSearch_StaleResponseDiscarded(t *testing.T) {
	s, srv := newTestSession(t)

	release := make(chan struct{})
	arrived := make(chan struct{})
	srv.Hook(remotetest.RouteSearch, func(r *http.Request) {
		if r.URL.Query().Get("q") == "bolt" {
			close(arrived)
			<-release
		}
	})

	var wg sync.WaitGroup
	var boltErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, boltErr = s.Search(context.Background(), "bolt")
	}()

	<-arrived
	assert.True(t, s.Busy())

	seq, err := s.Search(context.Background(), "counterspell")
	require.NoError(t, err)
	assert.Equal(t, "Counterspell", slices.Collect(seq)[0].Name)
	assert.True(t, s.Busy(), "bolt request still in flight")

	close(release)
	wg.Wait()

	assert.True(t, errors.Is(boltErr, ErrSuperseded))
	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "Counterspell", results[0].Name)
	assert.Equal(t, "counterspell", s.Query())
	assert.False(t, s.Busy())
}

func TestSearch_BusyWhileInFlight(t *testing.T) {
	s, srv := newTestSession(t)

	release := make(chan struct{})
	srv.Hook(remotetest.RouteSearch, func(r *http.Request) { <-release })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Search(context.Background(), "ring")
	}()

	assert.Eventually(t, s.Busy, time.Second, 5*time.Millisecond)
	close(release)
	<-done
	assert.False(t, s.Busy())
}
