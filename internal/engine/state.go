package engine

import (
	"errors"
	"fmt"

	"github.com/tarabish/tarneeb-server/pkg/cards"
)

// Bid bounds for a 13-trick hand.
const (
	MinBid = 7
	MaxBid = 13
)

const (
	NumPlayers   = 4
	CardsPerHand = 13
)

var ErrBadRoster = errors.New("roster must hold 4 distinct player ids")

type Phase string

const (
	PhaseDealing   Phase = "DEALING"
	PhaseBidding   Phase = "BIDDING"
	PhaseTrumpPick Phase = "TRUMP_SELECTION"
	PhasePlaying   Phase = "PLAYING"
	PhaseScoring   Phase = "SCORING"
	PhaseGameOver  Phase = "GAME_OVER"
)

type PlayerState struct {
	ID     string       `json:"id"`
	Hand   []cards.Card `json:"hand"`
	TeamID int          `json:"teamId"` // 1 or 2
}

type TeamState struct {
	TricksWon int `json:"tricksWon"`
	Score     int `json:"score"`
}

// TrickCard is one card played into the current trick, in play order.
type TrickCard struct {
	PlayerID string     `json:"playerId"`
	Card     cards.Card `json:"card"`
}

// RoundResult records one finished hand for scoring history and the
// persistence boundary.
type RoundResult struct {
	Bid        int        `json:"bid"`
	BidderID   string     `json:"bidderId"`
	BidderTeam int        `json:"bidderTeam"` // team index, 0 or 1
	Trump      cards.Suit `json:"trump"`
	TricksWon  [2]int     `json:"tricksWon"`
	ScoreDelta [2]int     `json:"scoreDelta"`
}

type Config struct {
	TargetScore int
}

func DefaultConfig() Config {
	return Config{TargetScore: 41}
}

// State is the aggregate root for one match. Apply never mutates a
// State in place; every accepted action yields a fresh copy so
// concurrent readers always see a consistent snapshot.
type State struct {
	Players      [NumPlayers]PlayerState `json:"players"`
	Teams        [2]TeamState            `json:"teams"`
	Deck         []cards.Card            `json:"deck"`
	TrumpSuit    *cards.Suit             `json:"trumpSuit"`
	Phase        Phase                   `json:"phase"`
	Current      int                     `json:"currentPlayerIndex"`
	TrickStart   int                     `json:"trickStartPlayerIndex"`
	Trick        []TrickCard             `json:"trick"`
	HighestBid   int                     `json:"highestBid"` // 0 while no bid stands
	Bidder       int                     `json:"bidderIndex"`
	Passed       [NumPlayers]bool        `json:"-"` // passed players sit out the rest of the auction
	FirstBidder  int                     `json:"-"`
	TricksPlayed int                     `json:"-"`
	LastBidTeam  int                     `json:"-"` // bidding team of the latest scored round
	Rounds       []RoundResult           `json:"-"`
	Target       int                     `json:"-"`

	rng cards.RandSource
}

// NewState builds a freshly dealt match for exactly four players.
// Join order fixes teams: even seats are team 1, odd seats team 2.
// The entry DEALING phase auto-advances, so the returned state is
// already in BIDDING with seat 0 to act.
func NewState(playerIDs []string, cfg Config, src cards.RandSource) (State, error) {
	if len(playerIDs) != NumPlayers {
		return State{}, ErrBadRoster
	}
	seen := make(map[string]bool, NumPlayers)
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return State{}, fmt.Errorf("%w: duplicate or empty id %q", ErrBadRoster, id)
		}
		seen[id] = true
	}
	if cfg.TargetScore <= 0 {
		cfg = DefaultConfig()
	}

	s := State{
		Phase:  PhaseDealing,
		Bidder: -1,
		Target: cfg.TargetScore,
		rng:    src,
	}
	for i, id := range playerIDs {
		s.Players[i] = PlayerState{ID: id, TeamID: i%2 + 1}
	}
	s.deal()
	return s, nil
}

// deal shuffles a fresh deck into four hands and opens the auction.
func (s *State) deal() {
	shuffled := cards.Shuffle(cards.NewDeck(), s.rng)
	for i := range s.Players {
		hand := make([]cards.Card, CardsPerHand)
		copy(hand, shuffled[i*CardsPerHand:(i+1)*CardsPerHand])
		s.Players[i].Hand = hand
	}
	s.Deck = []cards.Card{}
	s.Trick = nil
	s.TrumpSuit = nil
	s.HighestBid = 0
	s.Bidder = -1
	s.Passed = [NumPlayers]bool{}
	s.TricksPlayed = 0
	s.Teams[0].TricksWon = 0
	s.Teams[1].TricksWon = 0
	s.Phase = PhaseBidding
	s.Current = s.FirstBidder
}

// clone deep-copies the mutable parts of s so Apply can mutate the
// copy freely.
func (s State) clone() State {
	out := s
	for i := range out.Players {
		hand := make([]cards.Card, len(s.Players[i].Hand))
		copy(hand, s.Players[i].Hand)
		out.Players[i].Hand = hand
	}
	out.Deck = append([]cards.Card(nil), s.Deck...)
	out.Trick = append([]TrickCard(nil), s.Trick...)
	out.Rounds = append([]RoundResult(nil), s.Rounds...)
	if s.TrumpSuit != nil {
		trump := *s.TrumpSuit
		out.TrumpSuit = &trump
	}
	return out
}

func (s State) playerIndex(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// GameOver reports whether some team has reached the target score.
func (s State) GameOver() bool {
	return s.Teams[0].Score >= s.Target || s.Teams[1].Score >= s.Target
}

// Winner returns the winning team id (1 or 2). Undefined until
// GameOver holds. A dead-equal finish goes to the team that held the
// winning bid in the deciding round.
func (s State) Winner() (int, bool) {
	if !s.GameOver() {
		return 0, false
	}
	switch {
	case s.Teams[0].Score > s.Teams[1].Score:
		return 1, true
	case s.Teams[1].Score > s.Teams[0].Score:
		return 2, true
	default:
		return s.LastBidTeam + 1, true
	}
}

func nextSeat(i int) int {
	return (i + 1) % NumPlayers
}

// nextActiveSeat skips players who have passed out of the auction.
func (s State) nextActiveSeat(i int) int {
	for n := nextSeat(i); n != i; n = nextSeat(n) {
		if !s.Passed[n] {
			return n
		}
	}
	return i
}

func (s State) passedCount() int {
	n := 0
	for _, p := range s.Passed {
		if p {
			n++
		}
	}
	return n
}
