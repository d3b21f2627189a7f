package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tarabish/tarneeb-server/pkg/cards"
	"github.com/tarabish/tarneeb-server/internal/engine"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

var ids = []string{"P1", "P2", "P3", "P4"}

func testSource(seed uint64) cards.RandSource {
	state := seed
	return func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>11) / float64(1<<53)
	}
}

type captureStore struct {
	saved chan engine.Summary
}

func (c *captureStore) SaveMatch(_ context.Context, _ string, sum engine.Summary) error {
	c.saved <- sum
	return nil
}

func newTestRoom(t *testing.T, cfg Config, store MatchWriter) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if cfg.Rand == nil {
		cfg.Rand = testSource(1)
	}
	return New(ctx, "TEST01", cfg, zap.NewNop(), store, nil, Hooks{})
}

// recvType drains a client outbox until a message of the wanted type
// arrives, so tests stay robust against interleaved broadcasts.
func recvType(t *testing.T, ch <-chan types.ServerMessage, want string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", want)
			}
			if msg.Type == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func recvNoMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if ok {
			t.Fatalf("expected no message, got %+v", msg)
		}
	case <-time.After(within):
	}
}

func recvView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func join(t *testing.T, r *Room, id string) chan types.ServerMessage {
	t.Helper()
	out := make(chan types.ServerMessage, 256)
	reply := make(chan error, 1)
	r.Inbox() <- Join{PlayerID: id, Name: id, Outbox: out, Reply: reply}
	require.NoError(t, <-reply)
	return out
}

func joinAll(t *testing.T, r *Room) map[string]chan types.ServerMessage {
	t.Helper()
	outs := make(map[string]chan types.ServerMessage, len(ids))
	for _, id := range ids {
		outs[id] = join(t, r, id)
	}
	return outs
}

func start(t *testing.T, r *Room, by string) {
	t.Helper()
	reply := make(chan error, 1)
	r.Inbox() <- Start{PlayerID: by, Reply: reply}
	require.NoError(t, <-reply)
}

func intent(r *Room, a engine.Action) error {
	reply := make(chan error, 1)
	r.Inbox() <- Intent{PlayerID: a.PlayerID, Action: a, Reply: reply}
	return <-reply
}

func TestJoinAndRosterBroadcast(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)

	out1 := join(t, r, "P1")
	msg := recvType(t, out1, types.EventRoomJoined, time.Second)
	require.Equal(t, "TEST01", msg.RoomID)
	require.Len(t, msg.Players, 1)

	out2 := join(t, r, "P2")
	recvType(t, out2, types.EventRoomJoined, time.Second)
	joined := recvType(t, out1, types.EventPlayerJoined, time.Second)
	require.Equal(t, "P2", joined.PlayerID)
	require.Len(t, joined.Players, 2)
}

func TestJoinRejectedWhenFull(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	joinAll(t, r)

	reply := make(chan error, 1)
	r.Inbox() <- Join{PlayerID: "P5", Outbox: make(chan types.ServerMessage, 1), Reply: reply}
	require.ErrorIs(t, <-reply, ErrRoomFull)
}

func TestJoinRejectedMidGameForUnknownPlayer(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	joinAll(t, r)
	start(t, r, "P1")

	reply := make(chan error, 1)
	r.Inbox() <- Join{PlayerID: "P9", Outbox: make(chan types.ServerMessage, 1), Reply: reply}
	require.ErrorIs(t, <-reply, ErrAlreadyInGame)
}

func TestStartRequiresFourPlayers(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	join(t, r, "P1")

	reply := make(chan error, 1)
	r.Inbox() <- Start{PlayerID: "P1", Reply: reply}
	require.ErrorIs(t, <-reply, ErrNotReady)

	reply = make(chan error, 1)
	r.Inbox() <- Start{PlayerID: "P9", Reply: reply}
	require.ErrorIs(t, <-reply, ErrNotMember)
}

func TestStartDealsAndBroadcastsSanitizedState(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	outs := joinAll(t, r)
	start(t, r, "P1")

	for _, id := range ids {
		recvType(t, outs[id], types.EventGameStarted, time.Second)
		upd := recvType(t, outs[id], types.EventGameStateUpdated, time.Second)
		require.NotNil(t, upd.State)
		require.Equal(t, string(engine.PhaseBidding), upd.State.Phase)
		for _, pv := range upd.State.Players {
			require.Equal(t, engine.CardsPerHand, pv.HandCount)
			if pv.ID == id {
				require.Len(t, pv.Hand, engine.CardsPerHand)
			} else {
				require.Empty(t, pv.Hand, "hand of %s leaked to %s", pv.ID, id)
			}
		}
	}

	v := recvView(t, r)
	require.Equal(t, InGame, v.Phase)
	require.Equal(t, 0, v.Version, "no action committed yet")
}

func TestAcceptedIntentBroadcastsAndBumpsVersion(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	outs := joinAll(t, r)
	start(t, r, "P1")

	require.NoError(t, intent(r, engine.Action{Type: engine.ActionBid, PlayerID: "P1", Bid: 7}))

	upd := recvType(t, outs["P2"], types.EventGameStateUpdated, time.Second)
	for upd.Version < 1 {
		upd = recvType(t, outs["P2"], types.EventGameStateUpdated, time.Second)
	}
	require.Equal(t, 1, upd.Version)
	require.Equal(t, 7, upd.State.HighestBid)
	require.Equal(t, "P1", upd.State.BidderID)
}

func TestRejectedIntentIsSilentNoOp(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	outs := joinAll(t, r)
	start(t, r, "P1")
	for _, id := range ids {
		recvType(t, outs[id], types.EventGameStateUpdated, time.Second)
	}

	// P2 bidding out of turn is a rule rejection.
	err := intent(r, engine.Action{Type: engine.ActionBid, PlayerID: "P2", Bid: 7})
	require.ErrorIs(t, err, ErrRejected)

	recvNoMsg(t, outs["P3"], 150*time.Millisecond)
	require.Equal(t, 0, recvView(t, r).Version, "no commit, no version bump")
}

func TestIntentBeforeStartNotReady(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	joinAll(t, r)
	err := intent(r, engine.Action{Type: engine.ActionBid, PlayerID: "P1", Bid: 7})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestLeaveWhileWaitingRemovesPlayer(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	out1 := join(t, r, "P1")
	join(t, r, "P2")

	r.Inbox() <- Leave{PlayerID: "P2"}
	left := recvType(t, out1, types.EventPlayerLeft, time.Second)
	require.Equal(t, "P2", left.PlayerID)
	require.Len(t, recvView(t, r).Players, 1)
}

func TestDisconnectMidGamePreservesSeatAndState(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	outs := joinAll(t, r)
	start(t, r, "P1")
	require.NoError(t, intent(r, engine.Action{Type: engine.ActionBid, PlayerID: "P1", Bid: 9}))

	before := recvView(t, r)

	r.Inbox() <- Leave{PlayerID: "P3"}
	disc := recvType(t, outs["P1"], types.EventPlayerDisconnected, time.Second)
	require.Equal(t, "P3", disc.PlayerID)

	after := recvView(t, r)
	require.Equal(t, InGame, after.Phase, "room stays in game")
	require.Equal(t, before.Version, after.Version, "game state untouched")
	require.Equal(t, 9, after.Game.HighestBid)
	require.Len(t, after.Players, 4, "seat is preserved")

	// The disconnected player's turn is not auto-passed.
	require.Equal(t, before.Game.Current, after.Game.Current)
}

func TestReconnectRebindsAndResendsState(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	outs := joinAll(t, r)
	start(t, r, "P1")
	require.NoError(t, intent(r, engine.Action{Type: engine.ActionBid, PlayerID: "P1", Bid: 9}))

	r.Inbox() <- Leave{PlayerID: "P3"}
	recvType(t, outs["P1"], types.EventPlayerDisconnected, time.Second)

	rejoined := join(t, r, "P3")
	msg := recvType(t, rejoined, types.EventRoomJoined, time.Second)
	require.NotNil(t, msg.State, "reconnect resends the sanitized snapshot")
	require.Equal(t, 9, msg.State.HighestBid)
	for _, pv := range msg.State.Players {
		if pv.ID == "P3" {
			require.Len(t, pv.Hand, engine.CardsPerHand, "hand survives the disconnect")
		} else {
			require.Empty(t, pv.Hand)
		}
	}
	recvType(t, outs["P1"], types.EventPlayerReconnected, time.Second)
}

func TestStaleConnectionLeaveIgnored(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	outs := joinAll(t, r)
	start(t, r, "P1")

	// P3 comes back on a fresh connection; the room rebinds the seat
	// and closes the old outbox.
	stale := outs["P3"]
	fresh := join(t, r, "P3")
	recvType(t, fresh, types.EventRoomJoined, time.Second)

	// The old connection finally unwinds and sends its teardown. It
	// names its own outbox, so the live binding must survive.
	r.Inbox() <- Leave{PlayerID: "P3", Conn: stale}

	v := recvView(t, r)
	require.Equal(t, 4, v.Connected, "reconnected binding severed by stale teardown")
	for _, p := range v.Players {
		require.True(t, p.Connected, p.ID)
	}

	require.NoError(t, intent(r, engine.Action{Type: engine.ActionBid, PlayerID: "P1", Bid: 7}))
	upd := recvType(t, fresh, types.EventGameStateUpdated, time.Second)
	require.Equal(t, 7, upd.State.HighestBid, "fresh outbox no longer receiving")
}

// playToGameOver drives one full match through the room's inbox. With
// a low target every auction-winning side crosses it in a single
// round, whichever way the contract goes.
func playToGameOver(t *testing.T, r *Room) {
	t.Helper()
	for steps := 0; steps < 1000; steps++ {
		v := recvView(t, r)
		require.NotNil(t, v.Game)
		g := *v.Game
		if g.Phase == engine.PhaseGameOver {
			return
		}
		cur := g.Players[g.Current]

		var a engine.Action
		switch g.Phase {
		case engine.PhaseBidding:
			if g.HighestBid == 0 {
				a = engine.Action{Type: engine.ActionBid, PlayerID: cur.ID, Bid: engine.MinBid}
			} else {
				a = engine.Action{Type: engine.ActionPass, PlayerID: cur.ID}
			}
		case engine.PhaseTrumpPick:
			bidder := g.Players[g.Bidder]
			a = engine.Action{Type: engine.ActionSetTrump, PlayerID: bidder.ID, Suit: bidder.Hand[0].Suit}
		case engine.PhasePlaying:
			card := cur.Hand[0]
			if len(g.Trick) > 0 {
				led := g.Trick[0].Card.Suit
				for _, c := range cur.Hand {
					if c.Suit == led {
						card = c
						break
					}
				}
			}
			a = engine.Action{Type: engine.ActionPlayCard, PlayerID: cur.ID, Card: card}
		default:
			t.Fatalf("unexpected phase %v", g.Phase)
		}
		require.NoError(t, intent(r, a), "action %+v in phase %v", a, g.Phase)
	}
	t.Fatalf("game did not finish")
}

func TestGameOverBroadcastsAndPersistsSummary(t *testing.T) {
	store := &captureStore{saved: make(chan engine.Summary, 1)}
	cfg := Config{Game: engine.Config{TargetScore: 5}}
	r := newTestRoom(t, cfg, store)
	outs := joinAll(t, r)
	start(t, r, "P1")

	playToGameOver(t, r)

	over := recvType(t, outs["P2"], types.EventGameOver, 2*time.Second)
	require.NotNil(t, over.GameOver)
	require.Contains(t, []int{1, 2}, over.GameOver.WinnerTeam)

	select {
	case sum := <-store.saved:
		require.Equal(t, over.GameOver.WinnerTeam, sum.WinnerTeam)
		require.NotEmpty(t, sum.Rounds)
		require.Equal(t, [4]string{"P1", "P2", "P3", "P4"}, sum.PlayerIDs)
	case <-time.After(2 * time.Second):
		t.Fatalf("summary never reached the store")
	}

	require.Equal(t, Finished, recvView(t, r).Phase)
}

func TestSlowClientIsDropped(t *testing.T) {
	r := newTestRoom(t, Config{}, nil)
	join(t, r, "P1")

	// A zero-capacity outbox cannot take the join reply.
	stuck := make(chan types.ServerMessage)
	reply := make(chan error, 1)
	r.Inbox() <- Join{PlayerID: "P2", Name: "P2", Outbox: stuck, Reply: reply}
	require.NoError(t, <-reply)

	v := recvView(t, r)
	require.Equal(t, 1, v.Connected, "slow client treated as disconnected")
}

func TestEmptyRoomReportsIdle(t *testing.T) {
	idle := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := New(ctx, "TEST02", Config{Rand: testSource(1)}, zap.NewNop(), nil, nil, Hooks{
		OnIdle: func(id string) { idle <- id },
	})

	join(t, r, "P1")
	r.Inbox() <- Leave{PlayerID: "P1"}

	select {
	case id := <-idle:
		require.Equal(t, "TEST02", id)
	case <-time.After(time.Second):
		t.Fatalf("idle hook never fired")
	}
}
