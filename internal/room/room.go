package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tarabish/tarneeb-server/pkg/cards"
	"github.com/tarabish/tarneeb-server/internal/engine"
	"github.com/tarabish/tarneeb-server/internal/metrics"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

// Typed infrastructure errors. These carry stable codes at the
// protocol boundary, unlike in-game rule rejections which are the
// generic ErrRejected.
var (
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInGame = errors.New("game already in progress")
	ErrNotMember     = errors.New("player is not in this room")
	ErrNotReady      = errors.New("room is not ready to start")
	ErrRejected      = errors.New("action not applied")
)

type Phase string

const (
	Waiting  Phase = "WAITING"
	InGame   Phase = "IN_GAME"
	Finished Phase = "FINISHED"
)

// MatchWriter is the persistence collaborator handed the finished
// match summary. Implementations must be safe to call from a room
// goroutine.
type MatchWriter interface {
	SaveMatch(ctx context.Context, roomID string, sum engine.Summary) error
}

type Config struct {
	Game           engine.Config
	ReconnectGrace time.Duration
	Rand           cards.RandSource
}

type Msg interface{ isRoomMsg() }

// Join adds a player while WAITING, or rebinds a known player id as a
// reconnection once the game has started.
type Join struct {
	PlayerID string
	Name     string
	Outbox   chan types.ServerMessage
	Reply    chan error
}

// Leave detaches a connection. Conn, when set, names the connection
// issuing the leave; a leave from a connection that has since been
// superseded by a reconnect is ignored so the stale socket's teardown
// cannot sever the live binding.
type Leave struct {
	PlayerID string
	Conn     chan types.ServerMessage
}

type Start struct {
	PlayerID string
	Reply    chan error
}

// Intent carries a reducer action from a member. Reply receives
// ErrRejected when the reducer refused it, nil otherwise.
type Intent struct {
	PlayerID string
	Action   engine.Action
	Reply    chan error
}

// GetView reflects internal state without data races; used by tests
// and the room listing.
type GetView struct {
	Reply chan View
}

type Shutdown struct{}

type graceExpired struct{ gen int }

func (Join) isRoomMsg()         {}
func (Leave) isRoomMsg()        {}
func (Start) isRoomMsg()        {}
func (Intent) isRoomMsg()       {}
func (GetView) isRoomMsg()      {}
func (Shutdown) isRoomMsg()     {}
func (graceExpired) isRoomMsg() {}

type View struct {
	ID        string
	Phase     Phase
	Players   []types.RoomPlayer
	Version   int
	Connected int
	Game      *engine.State
	CreatedAt time.Time
}

type member struct {
	id        string
	name      string
	connected bool
	outbox    chan types.ServerMessage
}

// Room is the exclusive owner of one match: roster, connection
// bindings, and the engine cell. All access flows through its inbox,
// so actions for one room are strictly serialized while rooms stay
// independent.
type Room struct {
	id        string
	inbox     chan Msg
	phase     Phase
	members   []*member
	eng       *engine.Engine
	version   int
	cfg       Config
	log       *zap.Logger
	store     MatchWriter
	metrics   metrics.Reporter
	onChange  func(types.RoomInfo)
	onIdle    func(id string)
	createdAt time.Time
	graceGen  int
	ctx       context.Context
	cancel    context.CancelFunc
}

// Hooks are the room's outward notifications: OnChange fires on every
// roster or phase transition, OnIdle when the room should be reaped.
type Hooks struct {
	OnChange func(types.RoomInfo)
	OnIdle   func(id string)
}

func New(parent context.Context, id string, cfg Config, log *zap.Logger, store MatchWriter, rep metrics.Reporter, hooks Hooks) *Room {
	ctx, cancel := context.WithCancel(parent)
	if cfg.ReconnectGrace <= 0 {
		cfg.ReconnectGrace = 2 * time.Minute
	}
	if rep == nil {
		rep = metrics.Nop{}
	}
	if hooks.OnChange == nil {
		hooks.OnChange = func(types.RoomInfo) {}
	}
	if hooks.OnIdle == nil {
		hooks.OnIdle = func(string) {}
	}
	r := &Room{
		id:        id,
		inbox:     make(chan Msg, 64),
		phase:     Waiting,
		cfg:       cfg,
		log:       log.With(zap.String("room", id)),
		store:     store,
		metrics:   rep,
		onChange:  hooks.OnChange,
		onIdle:    hooks.OnIdle,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	// A room nobody ever joins is reaped after the grace window.
	r.armGrace()
	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg.PlayerID, msg.Conn)
			case Start:
				msg.Reply <- r.handleStart(msg.PlayerID)
			case Intent:
				msg.Reply <- r.handleIntent(msg)
			case GetView:
				msg.Reply <- r.view()
			case graceExpired:
				if msg.gen == r.graceGen && r.connectedCount() == 0 {
					r.onIdle(r.id)
				}
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) error {
	if m := r.findMember(msg.PlayerID); m != nil {
		// Known identity: rebind the connection, state untouched.
		if m.connected && m.outbox != nil {
			close(m.outbox)
		}
		m.outbox = msg.Outbox
		m.connected = true
		if msg.Name != "" {
			m.name = msg.Name
		}
		r.graceGen++
		r.metrics.PlayerConnected()
		r.log.Info("player reconnected", zap.String("player", msg.PlayerID))
		r.broadcastExcept(msg.PlayerID, types.ServerMessage{
			Type:     types.EventPlayerReconnected,
			RoomID:   r.id,
			PlayerID: msg.PlayerID,
			Players:  r.roster(),
		})
		r.sendTo(m, r.joinedMessage(m))
		r.announce()
		return nil
	}

	if r.phase != Waiting {
		return ErrAlreadyInGame
	}
	if len(r.members) >= engine.NumPlayers {
		return ErrRoomFull
	}

	m := &member{id: msg.PlayerID, name: msg.Name, connected: true, outbox: msg.Outbox}
	r.members = append(r.members, m)
	r.graceGen++
	r.metrics.PlayerConnected()
	r.log.Info("player joined", zap.String("player", msg.PlayerID))
	r.broadcastExcept(msg.PlayerID, types.ServerMessage{
		Type:     types.EventPlayerJoined,
		RoomID:   r.id,
		PlayerID: msg.PlayerID,
		Players:  r.roster(),
	})
	r.sendTo(m, r.joinedMessage(m))
	r.announce()
	return nil
}

// joinedMessage is the direct reply to the joining connection: the
// room snapshot plus, mid-game, the player's sanitized view.
func (r *Room) joinedMessage(m *member) types.ServerMessage {
	out := types.ServerMessage{
		Type:     types.EventRoomJoined,
		RoomID:   r.id,
		PlayerID: m.id,
		Players:  r.roster(),
		Version:  r.version,
	}
	if r.eng != nil {
		v := engine.View(r.eng.State(), m.id)
		out.State = &v
	}
	return out
}

func (r *Room) handleLeave(playerID string, conn chan types.ServerMessage) {
	m := r.findMember(playerID)
	if m == nil {
		return
	}
	if conn != nil && m.outbox != conn {
		// Teardown of a connection that no longer backs this seat.
		return
	}
	if m.connected && m.outbox != nil {
		close(m.outbox)
		m.outbox = nil
	}
	m.connected = false
	r.metrics.PlayerDisconnected()

	if r.phase == Waiting {
		// No seat to preserve yet; drop the player outright.
		for i, in := range r.members {
			if in.id == playerID {
				r.members = append(r.members[:i], r.members[i+1:]...)
				break
			}
		}
		r.log.Info("player left", zap.String("player", playerID))
		r.broadcast(types.ServerMessage{
			Type:     types.EventPlayerLeft,
			RoomID:   r.id,
			PlayerID: playerID,
			Players:  r.roster(),
		})
		r.announce()
		if len(r.members) == 0 {
			r.onIdle(r.id)
		}
		return
	}

	// Mid-game the seat is preserved pending reconnection: hand, team
	// and turn rights are untouched and the match simply waits.
	r.log.Info("player disconnected", zap.String("player", playerID))
	r.broadcast(types.ServerMessage{
		Type:     types.EventPlayerDisconnected,
		RoomID:   r.id,
		PlayerID: playerID,
		Players:  r.roster(),
	})
	r.announce()
	if r.connectedCount() == 0 {
		r.armGrace()
	}
}

func (r *Room) handleStart(playerID string) error {
	if r.findMember(playerID) == nil {
		return ErrNotMember
	}
	if r.phase != Waiting || len(r.members) != engine.NumPlayers {
		return ErrNotReady
	}

	ids := make([]string, len(r.members))
	for i, m := range r.members {
		ids[i] = m.id
	}
	state, err := engine.NewState(ids, r.cfg.Game, r.cfg.Rand)
	if err != nil {
		return err
	}
	r.eng = engine.NewEngine(state)
	r.eng.Subscribe(func(s engine.State) {
		r.version++
		r.broadcastState(s)
	})
	r.phase = InGame
	r.log.Info("game started")
	r.broadcast(types.ServerMessage{Type: types.EventGameStarted, RoomID: r.id, Players: r.roster()})
	r.broadcastState(r.eng.State())
	r.announce()
	return nil
}

func (r *Room) handleIntent(msg Intent) error {
	if r.findMember(msg.PlayerID) == nil {
		return ErrNotMember
	}
	if r.phase != InGame || r.eng == nil {
		return ErrNotReady
	}
	if !r.eng.Dispatch(msg.Action) {
		return ErrRejected
	}
	if r.eng.GameOver() {
		r.finish()
	}
	return nil
}

// finish runs once the engine reaches GAME_OVER: emit the result,
// hand the summary to the persistence collaborator, and arm the reap
// timer.
func (r *Room) finish() {
	r.phase = Finished
	winner, _ := r.eng.Winner()
	state := r.eng.State()
	r.log.Info("game over", zap.Int("winnerTeam", winner))
	r.broadcast(types.ServerMessage{
		Type:   types.EventGameOver,
		RoomID: r.id,
		GameOver: &types.GameOverPayload{
			WinnerTeam:  winner,
			FinalScores: [2]int{state.Teams[0].Score, state.Teams[1].Score},
		},
	})
	r.announce()

	if sum, ok := engine.Summarize(state); ok && r.store != nil {
		// Persistence stays off the room goroutine.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.store.SaveMatch(ctx, r.id, sum); err != nil {
				r.log.Error("failed to persist match", zap.Error(err))
			}
		}()
	}
	r.armGrace()
}

// armGrace schedules room reaping; any reconnection bumps the
// generation so a stale fire is ignored.
func (r *Room) armGrace() {
	r.graceGen++
	gen := r.graceGen
	time.AfterFunc(r.cfg.ReconnectGrace, func() {
		select {
		case r.inbox <- graceExpired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

// broadcastState sends each connected member its own sanitized view.
func (r *Room) broadcastState(s engine.State) {
	for _, m := range r.members {
		if !m.connected {
			continue
		}
		v := engine.View(s, m.id)
		r.sendTo(m, types.ServerMessage{
			Type:    types.EventGameStateUpdated,
			RoomID:  r.id,
			Version: r.version,
			State:   &v,
		})
	}
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for _, m := range r.members {
		if m.connected {
			r.sendTo(m, msg)
		}
	}
}

func (r *Room) broadcastExcept(playerID string, msg types.ServerMessage) {
	for _, m := range r.members {
		if m.connected && m.id != playerID {
			r.sendTo(m, msg)
		}
	}
}

// sendTo never blocks the room loop. A member that cannot keep up is
// treated as disconnected; mid-game their seat survives like any
// other drop.
func (r *Room) sendTo(m *member, msg types.ServerMessage) {
	select {
	case m.outbox <- msg:
	default:
		close(m.outbox)
		m.outbox = nil
		m.connected = false
		r.metrics.PlayerDisconnected()
		r.log.Warn("dropping slow client", zap.String("player", m.id))
	}
}

func (r *Room) announce() {
	r.onChange(r.Info())
}

func (r *Room) Info() types.RoomInfo {
	return types.RoomInfo{ID: r.id, Phase: string(r.phase), PlayerCount: len(r.members)}
}

func (r *Room) roster() []types.RoomPlayer {
	out := make([]types.RoomPlayer, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, types.RoomPlayer{ID: m.id, Name: m.name, Connected: m.connected})
	}
	return out
}

func (r *Room) view() View {
	v := View{
		ID:        r.id,
		Phase:     r.phase,
		Players:   r.roster(),
		Version:   r.version,
		Connected: r.connectedCount(),
		CreatedAt: r.createdAt,
	}
	if r.eng != nil {
		s := r.eng.State()
		v.Game = &s
	}
	return v
}

func (r *Room) findMember(id string) *member {
	for _, m := range r.members {
		if m.id == id {
			return m
		}
	}
	return nil
}

func (r *Room) connectedCount() int {
	n := 0
	for _, m := range r.members {
		if m.connected {
			n++
		}
	}
	return n
}

func (r *Room) shutdown() {
	for _, m := range r.members {
		if m.connected && m.outbox != nil {
			close(m.outbox)
			m.outbox = nil
			m.connected = false
		}
	}
	r.cancel()
}
