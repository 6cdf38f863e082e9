/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package memory implements the card-matching engine behind the pairs game.
//
// Cards are dealt face-down in pairs of equal content. The player flips them
// two at a time: the first pick opens a card, the second pick is judged
// against it. Stale picks (an unknown id, a face-up card, a matched card) are
// ignored, so a UI may forward every tap without checking state first.
package memory

import "sync"

// Card is a single card on the board.
type Card[T comparable] struct {
	ID        int  `json:"id"`
	Content   T    `json:"content"`
	IsFaceUp  bool `json:"face_up"`
	IsMatched bool `json:"matched"`
}

// Game owns the deck and the pending card, if any.
type Game[T comparable] struct {
	mu      sync.Mutex
	cards   []Card[T]
	pending int // index of the one face-up, unmatched first pick; -1 if none
}

// New deals two cards per pair index, both carrying contentFor(index).
// A negative pair count deals an empty deck.
func New[T comparable](numberOfPairs int, contentFor func(pairIndex int) T) *Game[T] {
	numberOfPairs = max(numberOfPairs, 0)

	g := &Game[T]{
		cards:   make([]Card[T], 0, 2*numberOfPairs),
		pending: -1,
	}

	for i := range numberOfPairs {
		content := contentFor(i)

		g.cards = append(g.cards,
			Card[T]{ID: i * 2, Content: content},
			Card[T]{ID: i*2 + 1, Content: content},
		)
	}

	return g
}

// Choose flips the given card, matched by ID.
func (g *Game[T]) Choose(card Card[T]) {
	g.ChooseID(card.ID)
}

// ChooseID flips the card with the given ID.
func (g *Game[T]) ChooseID(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	chosen := g.indexOf(id)
	if chosen < 0 || g.cards[chosen].IsFaceUp || g.cards[chosen].IsMatched {
		return
	}

	if g.pending >= 0 {
		if g.cards[chosen].Content == g.cards[g.pending].Content {
			g.cards[chosen].IsMatched = true
			g.cards[g.pending].IsMatched = true
		}

		g.pending = -1
	} else {
		for i := range g.cards {
			if !g.cards[i].IsMatched {
				g.cards[i].IsFaceUp = false
			}
		}

		g.pending = chosen
	}

	g.cards[chosen].IsFaceUp = true
}

// Cards returns a snapshot of the board in deal order.
func (g *Game[T]) Cards() []Card[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	cards := make([]Card[T], len(g.cards))
	copy(cards, g.cards)

	return cards
}

// Pending returns the first pick awaiting its second, if there is one.
func (g *Game[T]) Pending() (Card[T], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending < 0 {
		return Card[T]{}, false
	}

	return g.cards[g.pending], true
}

// Done reports whether every card of a non-empty deck has been matched.
func (g *Game[T]) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range g.cards {
		if !c.IsMatched {
			return false
		}
	}

	return len(g.cards) > 0
}

func (g *Game[T]) indexOf(id int) int {
	for i, c := range g.cards {
		if c.ID == id {
			return i
		}
	}

	return -1
}
