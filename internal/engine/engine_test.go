package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchReportsAcceptance(t *testing.T) {
	e := NewEngine(newTestState(t))

	require.False(t, e.Dispatch(Action{Type: ActionBid, PlayerID: "P2", Bid: 7}), "out of turn")
	require.Equal(t, 0, e.State().HighestBid, "rejected dispatch commits nothing")

	require.True(t, e.Dispatch(Action{Type: ActionBid, PlayerID: "P1", Bid: 7}))
	require.Equal(t, 7, e.State().HighestBid)
}

func TestListenersRunSynchronouslyPerCommit(t *testing.T) {
	e := NewEngine(newTestState(t))

	var got []int
	unsub := e.Subscribe(func(s State) { got = append(got, s.HighestBid) })

	e.Dispatch(Action{Type: ActionBid, PlayerID: "P1", Bid: 7})
	e.Dispatch(Action{Type: ActionBid, PlayerID: "P3", Bid: 7}) // rejected, no notify
	e.Dispatch(Action{Type: ActionBid, PlayerID: "P2", Bid: 8})
	require.Equal(t, []int{7, 8}, got, "one notification per commit, in order")

	unsub()
	e.Dispatch(Action{Type: ActionBid, PlayerID: "P3", Bid: 9})
	require.Equal(t, []int{7, 8}, got, "unsubscribed listener stays quiet")
}

func TestMultipleListeners(t *testing.T) {
	e := NewEngine(newTestState(t))

	a, b := 0, 0
	e.Subscribe(func(State) { a++ })
	e.Subscribe(func(State) { b++ })

	e.Dispatch(Action{Type: ActionBid, PlayerID: "P1", Bid: 7})
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}
