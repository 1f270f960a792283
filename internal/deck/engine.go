package deck

import (
	"context"
	"fmt"
	"log"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

// Mutator is the card mutation side of the remote client.
type Mutator interface {
	AddCard(ctx context.Context, deckID, cardID string, quantity int) (*remote.MutationResult, error)
	RemoveCard(ctx context.Context, deckID, cardID string, quantity int) (*remote.MutationResult, error)
}

// Result is the authoritative outcome of one mutation.
type Result struct {
	Deck       remote.Deck
	Validation remote.ValidationResult
}

// Engine applies add/remove mutations. Mutations on the same deck reach the
// service one at a time in the order they were issued; the registry only ever
// holds what the service returned.
type Engine struct {
	mutator  Mutator
	registry *Registry
	seq      *sequencer
}

// NewEngine creates an engine writing results into registry.
func NewEngine(mutator Mutator, registry *Registry) *Engine {
	return &Engine{
		mutator:  mutator,
		registry: registry,
		seq:      newSequencer(),
	}
}

// AddCard adds quantity copies of cardID to deckID, or to the active deck
// when deckID is empty. With no target deck it does nothing and returns nil.
func (e *Engine) AddCard(ctx context.Context, cardID, deckID string, quantity int) (*Result, error) {
	return e.apply(ctx, "add", cardID, deckID, quantity, e.mutator.AddCard)
}

// RemoveCard removes quantity copies of cardID; targeting is as for AddCard.
func (e *Engine) RemoveCard(ctx context.Context, cardID, deckID string, quantity int) (*Result, error) {
	return e.apply(ctx, "remove", cardID, deckID, quantity, e.mutator.RemoveCard)
}

// Pending reports how many mutations are queued or in flight for deckID.
func (e *Engine) Pending(deckID string) int {
	return e.seq.pending(deckID)
}

type mutateFunc func(ctx context.Context, deckID, cardID string, quantity int) (*remote.MutationResult, error)

func (e *Engine) apply(ctx context.Context, op, cardID, deckID string, quantity int, call mutateFunc) (*Result, error) {
	// The target is fixed when the mutation is issued, not when it runs.
	if deckID == "" {
		deckID = e.registry.ActiveID()
	}
	if deckID == "" {
		log.Printf("[Engine] Ignoring %s of %s: no deck selected", op, cardID)
		return nil, nil
	}
	if !e.registry.Has(deckID) {
		return nil, fmt.Errorf("%s card %s: %w: %s", op, cardID, ErrUnknownDeck, deckID)
	}
	if quantity < 1 {
		quantity = 1
	}

	release, err := e.seq.enter(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("%s card %s: %w", op, cardID, err)
	}
	defer release()

	res, err := call(ctx, deckID, cardID, quantity)
	if err != nil {
		return nil, fmt.Errorf("%s card %s: %w", op, cardID, err)
	}

	if !e.registry.Replace(ctx, deckID, res.Deck, res.Validation) {
		return nil, fmt.Errorf("%s card %s: %w: %s was removed while the request was in flight", op, cardID, ErrUnknownDeck, deckID)
	}

	return &Result{Deck: res.Deck.Clone(), Validation: res.Validation.Clone()}, nil
}
