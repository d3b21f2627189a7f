package cards

import (
	"encoding/json"
	"fmt"
	"strings"
)

// A card's suit.
type Suit int8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

func (s Suit) String() string {
	switch s {
	case Spades:
		return "SPADES"
	case Hearts:
		return "HEARTS"
	case Diamonds:
		return "DIAMONDS"
	case Clubs:
		return "CLUBS"
	}
	return "?"
}

func ParseSuit(s string) (Suit, error) {
	switch strings.ToUpper(s) {
	case "SPADES":
		return Spades, nil
	case "HEARTS":
		return Hearts, nil
	case "DIAMONDS":
		return Diamonds, nil
	case "CLUBS":
		return Clubs, nil
	}
	return Spades, fmt.Errorf("no such suit %q", s)
}

func (s Suit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSuit(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// A card's rank, 2 low through Ace high. The numeric value doubles as
// the precedence used for trick resolution.
type Rank int8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var Ranks = []Rank{Ace, King, Queen, Jack, Ten, Nine, Eight, Seven, Six, Five, Four, Three, Two}

func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case King:
		return "K"
	case Queen:
		return "Q"
	case Jack:
		return "J"
	}
	if r >= Two && r <= Ten {
		return fmt.Sprintf("%d", int(r))
	}
	return "?"
}

func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(s) {
	case "A":
		return Ace, nil
	case "K":
		return King, nil
	case "Q":
		return Queen, nil
	case "J":
		return Jack, nil
	case "10":
		return Ten, nil
	case "9":
		return Nine, nil
	case "8":
		return Eight, nil
	case "7":
		return Seven, nil
	case "6":
		return Six, nil
	case "5":
		return Five, nil
	case "4":
		return Four, nil
	case "3":
		return Three, nil
	case "2":
		return Two, nil
	}
	return Two, fmt.Errorf("no such rank %q", s)
}

func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRank(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return c.Rank.String() + " of " + c.Suit.String()
}

// Beats reports whether c wins over other given the trump suit and the
// suit led for the trick. A trump always beats a non-trump; within the
// same suit the higher rank wins; a card following neither trump nor
// the led suit never wins.
func (c Card) Beats(other Card, trump, led Suit) bool {
	if c.Suit == other.Suit {
		return c.Rank > other.Rank
	}
	if c.Suit == trump {
		return true
	}
	if other.Suit == trump {
		return false
	}
	return c.Suit == led && other.Suit != led
}
