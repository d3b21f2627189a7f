package ws

import (
	"fmt"

	"github.com/tarabish/tarneeb-server/pkg/cards"
	"github.com/tarabish/tarneeb-server/internal/engine"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

// parseGameIntent validates an in-game intent against its schema and
// translates it into a reducer action. A non-nil envelope means the
// payload was malformed and must never reach the reducer.
func parseGameIntent(playerID string, m types.ClientMessage) (engine.Action, *types.ErrorEnvelope) {
	switch m.Type {
	case types.IntentPlaceBid:
		if m.Value < engine.MinBid || m.Value > engine.MaxBid {
			return engine.Action{}, envelope(CodeValidation,
				fmt.Sprintf("bid must be between %d and %d", engine.MinBid, engine.MaxBid),
				map[string]any{"value": m.Value})
		}
		return engine.Action{Type: engine.ActionBid, PlayerID: playerID, Bid: m.Value}, nil

	case types.IntentPassBid:
		return engine.Action{Type: engine.ActionPass, PlayerID: playerID}, nil

	case types.IntentSetTrump:
		suit, err := cards.ParseSuit(m.Suit)
		if err != nil {
			return engine.Action{}, envelope(CodeValidation, "invalid trump suit",
				map[string]any{"suit": m.Suit})
		}
		return engine.Action{Type: engine.ActionSetTrump, PlayerID: playerID, Suit: suit}, nil

	case types.IntentPlayCard:
		if m.Card == nil {
			return engine.Action{}, envelope(CodeValidation, "play_card requires a card", nil)
		}
		card, err := m.Card.ToCard()
		if err != nil {
			return engine.Action{}, envelope(CodeValidation, "invalid card",
				map[string]any{"suit": m.Card.Suit, "rank": m.Card.Rank})
		}
		return engine.Action{Type: engine.ActionPlayCard, PlayerID: playerID, Card: card}, nil
	}
	return engine.Action{}, envelope(CodeUnknownType, fmt.Sprintf("unknown intent %q", m.Type), nil)
}

func isGameIntent(t string) bool {
	switch t {
	case types.IntentPlaceBid, types.IntentPassBid, types.IntentSetTrump, types.IntentPlayCard:
		return true
	}
	return false
}
