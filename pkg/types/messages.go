// Package types holds the JSON message shapes shared between server
// and clients.
package types

import (
	"time"

	"github.com/tarabish/tarneeb-server/pkg/cards"
)

// Client -> server intents.
const (
	IntentCreateRoom = "create_room"
	IntentJoinRoom   = "join_room"
	IntentLeaveRoom  = "leave_room"
	IntentStartGame  = "start_game"
	IntentPlaceBid   = "place_bid"
	IntentPassBid    = "pass_bid"
	IntentSetTrump   = "set_trump"
	IntentPlayCard   = "play_card"
)

// Server -> client events.
const (
	EventRoomCreated        = "room_created"
	EventRoomJoined         = "room_joined"
	EventRoomLeft           = "room_left"
	EventRoomListUpdated    = "room_list_updated"
	EventPlayerJoined       = "player_joined"
	EventPlayerLeft         = "player_left"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerReconnected  = "player_reconnected"
	EventGameStarted        = "game_started"
	EventGameStateUpdated   = "game_state_updated"
	EventGameOver           = "game_over"
	EventError              = "error"
)

type RoomConfig struct {
	TargetScore int `json:"targetScore,omitempty"`
	// TurnSeconds is accepted and echoed but not enforced; turn expiry
	// is not part of the core rules.
	TurnSeconds int `json:"turnSeconds,omitempty"`
}

type CardMessage struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

type ClientMessage struct {
	Type       string       `json:"type"`
	Config     *RoomConfig  `json:"config,omitempty"`
	RoomID     string       `json:"roomId,omitempty"`
	PlayerName string       `json:"playerName,omitempty"`
	PlayerID   string       `json:"playerId,omitempty"`
	Value      int          `json:"value,omitempty"`
	Suit       string       `json:"suit,omitempty"`
	Card       *CardMessage `json:"card,omitempty"`
}

type RoomPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type RoomInfo struct {
	ID          string `json:"id"`
	Phase       string `json:"phase"`
	PlayerCount int    `json:"playerCount"`
}

// ErrorEnvelope is the single structured error shape all failures
// normalize to.
type ErrorEnvelope struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerView is one seat as a given viewer may see it. Only the
// viewer's own hand is carried; everyone else is reduced to a count.
type PlayerView struct {
	ID        string       `json:"id"`
	TeamID    int          `json:"teamId"`
	HandCount int          `json:"handCount"`
	Hand      []cards.Card `json:"hand,omitempty"`
}

type TeamView struct {
	TricksWon int `json:"tricksWon"`
	Score     int `json:"score"`
}

// TrickCard is one card played into the current trick, in play order.
type TrickCard struct {
	PlayerID string     `json:"playerId"`
	Card     cards.Card `json:"card"`
}

// GameView is the sanitized state sent over the wire: no deck, no
// opposing hands.
type GameView struct {
	Phase           string       `json:"phase"`
	Players         []PlayerView `json:"players"`
	Teams           [2]TeamView  `json:"teams"`
	TrumpSuit       *cards.Suit  `json:"trumpSuit,omitempty"`
	CurrentPlayerID string       `json:"currentPlayerId,omitempty"`
	Trick           []TrickCard  `json:"trick"`
	HighestBid      int          `json:"highestBid,omitempty"`
	BidderID        string       `json:"bidderId,omitempty"`
	TargetScore     int          `json:"targetScore"`
}

type GameOverPayload struct {
	WinnerTeam  int    `json:"winnerTeam"`
	FinalScores [2]int `json:"finalScores"`
}

type ServerMessage struct {
	Type       string           `json:"type"`
	RoomID     string           `json:"roomId,omitempty"`
	PlayerID   string           `json:"playerId,omitempty"`
	PlayerName string           `json:"playerName,omitempty"`
	Players    []RoomPlayer     `json:"players,omitempty"`
	Rooms      []RoomInfo       `json:"rooms,omitempty"`
	Version    int              `json:"version,omitempty"`
	State      *GameView        `json:"state,omitempty"`
	GameOver   *GameOverPayload `json:"gameOver,omitempty"`
	Error      *ErrorEnvelope   `json:"error,omitempty"`
}

// ToCard converts the wire form, validating suit and rank.
func (m CardMessage) ToCard() (cards.Card, error) {
	suit, err := cards.ParseSuit(m.Suit)
	if err != nil {
		return cards.Card{}, err
	}
	rank, err := cards.ParseRank(m.Rank)
	if err != nil {
		return cards.Card{}, err
	}
	return cards.Card{Suit: suit, Rank: rank}, nil
}
