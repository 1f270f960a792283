package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

type decks map[string]remote.Deck

func (d decks) Deck(id string) (remote.Deck, bool) {
	deck, ok := d[id]
	return deck, ok
}

var krenko = decks{"d1": {
	ID:    "d1",
	Name:  "Krenko",
	Cards: []remote.DeckCardEntry{{CardID: "sol-ring", Name: "Sol Ring", Quantity: 1}},
}}

func TestExportDecklist_KeepsExistingFileWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krenko.txt")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

	err := exportDecklist(krenko, exportRequest{DeckID: "d1", Format: "arena", Out: path}, &bytes.Buffer{})
	require.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got))

	err = exportDecklist(krenko, exportRequest{DeckID: "d1", Format: "arena", Out: path, Force: true}, &bytes.Buffer{})
	require.NoError(t, err)

	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "1 Sol Ring")
}

func TestExportDecklist_Stdout(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, exportDecklist(krenko, exportRequest{DeckID: "d1", Format: "arena"}, &out))
	assert.Contains(t, out.String(), "1 Sol Ring")

	err := exportDecklist(krenko, exportRequest{DeckID: "nope", Format: "arena"}, &out)
	assert.Error(t, err)
}
