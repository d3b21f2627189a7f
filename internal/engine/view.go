package engine

import (
	"github.com/tarabish/tarneeb-server/pkg/cards"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

// View sanitizes s for one viewer into the wire shape: the viewer
// keeps their own hand, every other seat is reduced to a count, and
// the deck never leaves the server.
func View(s State, viewerID string) types.GameView {
	v := types.GameView{
		Phase: string(s.Phase),
		Teams: [2]types.TeamView{
			{TricksWon: s.Teams[0].TricksWon, Score: s.Teams[0].Score},
			{TricksWon: s.Teams[1].TricksWon, Score: s.Teams[1].Score},
		},
		TrumpSuit:   s.TrumpSuit,
		Trick:       make([]types.TrickCard, 0, len(s.Trick)),
		HighestBid:  s.HighestBid,
		TargetScore: s.Target,
	}
	for _, tc := range s.Trick {
		v.Trick = append(v.Trick, types.TrickCard{PlayerID: tc.PlayerID, Card: tc.Card})
	}
	if s.Current >= 0 && s.Phase != PhaseGameOver {
		v.CurrentPlayerID = s.Players[s.Current].ID
	}
	if s.Bidder >= 0 {
		v.BidderID = s.Players[s.Bidder].ID
	}
	for _, p := range s.Players {
		pv := types.PlayerView{ID: p.ID, TeamID: p.TeamID, HandCount: len(p.Hand)}
		if p.ID == viewerID {
			pv.Hand = append([]cards.Card{}, p.Hand...)
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

// Summary is the finished-match record handed to the persistence
// collaborator on game over.
type Summary struct {
	PlayerIDs   [NumPlayers]string
	WinnerTeam  int // 1 or 2
	FinalScores [2]int
	Rounds      []RoundResult
}

// Summarize is defined only once the match is over.
func Summarize(s State) (Summary, bool) {
	winner, ok := s.Winner()
	if !ok {
		return Summary{}, false
	}
	sum := Summary{
		WinnerTeam:  winner,
		FinalScores: [2]int{s.Teams[0].Score, s.Teams[1].Score},
		Rounds:      append([]RoundResult(nil), s.Rounds...),
	}
	for i, p := range s.Players {
		sum.PlayerIDs[i] = p.ID
	}
	return sum, true
}
