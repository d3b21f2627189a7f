package engine

import "github.com/tarabish/tarneeb-server/pkg/cards"

type ActionType string

const (
	ActionBid      ActionType = "BID"
	ActionPass     ActionType = "PASS"
	ActionSetTrump ActionType = "SET_TRUMP"
	ActionPlayCard ActionType = "PLAY_CARD"
	ActionReset    ActionType = "RESET_GAME"
)

type Action struct {
	Type     ActionType
	PlayerID string
	Bid      int
	Suit     cards.Suit
	Card     cards.Card
}

// Apply is the rules state machine. It returns the unchanged input
// state and false when the action is illegal for the current phase or
// turn; on acceptance it returns a new state and true. Rule
// violations never produce an error value, so the reject path stays
// allocation-free.
func Apply(s State, a Action) (State, bool) {
	switch a.Type {
	case ActionBid:
		return applyBid(s, a)
	case ActionPass:
		return applyPass(s, a)
	case ActionSetTrump:
		return applySetTrump(s, a)
	case ActionPlayCard:
		return applyPlayCard(s, a)
	case ActionReset:
		return applyReset(s)
	default:
		return s, false
	}
}

func applyBid(s State, a Action) (State, bool) {
	if s.Phase != PhaseBidding {
		return s, false
	}
	seat := s.playerIndex(a.PlayerID)
	if seat != s.Current {
		return s, false
	}
	if a.Bid < MinBid || a.Bid > MaxBid {
		return s, false
	}
	if a.Bid <= s.HighestBid {
		return s, false
	}

	next := s.clone()
	next.HighestBid = a.Bid
	next.Bidder = seat

	// A bid from the last active player ends the auction outright.
	if next.passedCount() >= NumPlayers-1 {
		next.closeAuction()
		return next, true
	}
	next.Current = next.nextActiveSeat(seat)
	return next, true
}

func applyPass(s State, a Action) (State, bool) {
	if s.Phase != PhaseBidding {
		return s, false
	}
	seat := s.playerIndex(a.PlayerID)
	if seat != s.Current {
		return s, false
	}

	next := s.clone()
	next.Passed[seat] = true

	// A pass is final: the auction ends once only one active player
	// remains and a bid stands; four passes with no bid force a
	// redeal.
	passed := next.passedCount()
	switch {
	case passed == NumPlayers:
		next.deal()
	case passed == NumPlayers-1 && next.HighestBid > 0:
		next.closeAuction()
	default:
		next.Current = next.nextActiveSeat(seat)
	}
	return next, true
}

func (s *State) closeAuction() {
	s.Phase = PhaseTrumpPick
	s.Current = s.Bidder
}

func applySetTrump(s State, a Action) (State, bool) {
	if s.Phase != PhaseTrumpPick {
		return s, false
	}
	if s.playerIndex(a.PlayerID) != s.Bidder {
		return s, false
	}

	next := s.clone()
	trump := a.Suit
	next.TrumpSuit = &trump
	next.Phase = PhasePlaying
	next.Current = next.Bidder
	next.TrickStart = next.Bidder
	return next, true
}

func applyPlayCard(s State, a Action) (State, bool) {
	if s.Phase != PhasePlaying {
		return s, false
	}
	seat := s.playerIndex(a.PlayerID)
	if seat != s.Current {
		return s, false
	}
	hand := s.Players[seat].Hand
	if !cards.Contains(hand, a.Card) {
		return s, false
	}
	// Forced follow-suit: holding the led suit means playing it.
	if len(s.Trick) > 0 {
		led := s.Trick[0].Card.Suit
		if a.Card.Suit != led && cards.ContainsSuit(hand, led) {
			return s, false
		}
	}

	next := s.clone()
	next.Players[seat].Hand = cards.Remove(next.Players[seat].Hand, a.Card)
	next.Trick = append(next.Trick, TrickCard{PlayerID: a.PlayerID, Card: a.Card})

	if len(next.Trick) < NumPlayers {
		next.Current = nextSeat(seat)
		return next, true
	}
	next.endTrick()
	return next, true
}

// endTrick resolves a complete trick: highest trump wins, else the
// highest card of the led suit. The winner leads the next trick.
func (s *State) endTrick() {
	led := s.Trick[0].Card.Suit
	winning := s.Trick[0]
	for _, tc := range s.Trick[1:] {
		if tc.Card.Beats(winning.Card, *s.TrumpSuit, led) {
			winning = tc
		}
	}
	winner := s.playerIndex(winning.PlayerID)
	s.Teams[s.Players[winner].TeamID-1].TricksWon++
	s.TricksPlayed++
	s.Trick = nil
	s.Current = winner
	s.TrickStart = winner

	if s.TricksPlayed == CardsPerHand {
		s.endRound()
	}
}

// endRound settles the contract. A made bid scores the bidding team
// all tricks it took; a failed bid costs the bidding team the bid
// (floored at zero) while the defenders score their tricks. The next
// hand is dealt unless a team has reached the target.
func (s *State) endRound() {
	s.Phase = PhaseScoring

	bidTeam := s.Players[s.Bidder].TeamID - 1
	defTeam := 1 - bidTeam
	var delta [2]int
	if s.Teams[bidTeam].TricksWon >= s.HighestBid {
		delta[bidTeam] = s.Teams[bidTeam].TricksWon
	} else {
		delta[bidTeam] = -min(s.HighestBid, s.Teams[bidTeam].Score)
		delta[defTeam] = s.Teams[defTeam].TricksWon
	}
	s.Teams[bidTeam].Score += delta[bidTeam]
	s.Teams[defTeam].Score += delta[defTeam]
	s.LastBidTeam = bidTeam

	s.Rounds = append(s.Rounds, RoundResult{
		Bid:        s.HighestBid,
		BidderID:   s.Players[s.Bidder].ID,
		BidderTeam: bidTeam,
		Trump:      *s.TrumpSuit,
		TricksWon:  [2]int{s.Teams[0].TricksWon, s.Teams[1].TricksWon},
		ScoreDelta: delta,
	})

	if s.GameOver() {
		s.Phase = PhaseGameOver
		return
	}
	s.FirstBidder = nextSeat(s.FirstBidder)
	s.deal()
}

func applyReset(s State) (State, bool) {
	next := s.clone()
	next.Teams[0] = TeamState{}
	next.Teams[1] = TeamState{}
	next.Rounds = nil
	next.FirstBidder = 0
	next.LastBidTeam = 0
	next.deal()
	return next, true
}
