package cards

// RandSource yields uniform values in [0,1). Injectable so tests can
// pin the shuffle to an exact permutation.
type RandSource func() float64

// NewDeck returns all 52 cards in deterministic suit-major,
// rank-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle returns a new Fisher-Yates permutation of deck drawn from
// src. The input slice is left untouched.
func Shuffle(deck []Card, src RandSource) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := int(src() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Contains reports whether cs holds card.
func Contains(cs []Card, card Card) bool {
	for _, c := range cs {
		if c == card {
			return true
		}
	}
	return false
}

// ContainsSuit reports whether cs holds any card of suit s.
func ContainsSuit(cs []Card, s Suit) bool {
	for _, c := range cs {
		if c.Suit == s {
			return true
		}
	}
	return false
}

// Remove returns a copy of cs without the first occurrence of card.
func Remove(cs []Card, card Card) []Card {
	out := make([]Card, 0, len(cs))
	removed := false
	for _, c := range cs {
		if !removed && c == card {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}
