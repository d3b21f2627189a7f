package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tarabish/tarneeb-server/internal/config"
	"github.com/tarabish/tarneeb-server/internal/engine"
	"github.com/tarabish/tarneeb-server/internal/hub"
	"github.com/tarabish/tarneeb-server/internal/metrics"
	"github.com/tarabish/tarneeb-server/internal/room"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades a connection and runs its session: a reader loop
// translating intents, and a writer goroutine draining the outbound
// event feed.
func Handler(h *hub.Hub, cfg *config.Config, log *zap.Logger, rep metrics.Reporter) http.HandlerFunc {
	if rep == nil {
		rep = metrics.Nop{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		s := &session{
			conn:     conn,
			hub:      h,
			cfg:      cfg,
			rep:      rep,
			connID:   uuid.NewString(),
			events:   make(chan types.ServerMessage, 16),
			roomGone: make(chan chan types.ServerMessage, 1),
		}
		s.log = log.With(zap.String("conn", s.connID))
		s.run(r.Context())
	}
}

type session struct {
	conn   *websocket.Conn
	hub    *hub.Hub
	cfg    *config.Config
	log    *zap.Logger
	rep    metrics.Reporter
	connID string

	playerID   string
	playerName string
	room       *room.Room
	roomOut    chan types.ServerMessage

	// events feeds the single connection writer; room forwarders and
	// the hub watcher all fan into it.
	events chan types.ServerMessage

	// roomGone carries the outbox of a room binding the room itself
	// severed (slow drop, reap, shutdown), so the reader can clear a
	// binding whose goroutine will never answer again.
	roomGone chan chan types.ServerMessage
}

func (s *session) run(ctx context.Context) {
	writeCtx, cancelWrite := context.WithCancel(ctx)
	defer cancelWrite()
	go s.writer(writeCtx)

	s.hub.Inbox() <- hub.WatchList{ID: s.connID, Outbox: s.events}
	defer func() {
		s.hub.Inbox() <- hub.UnwatchList{ID: s.connID}
		// The Leave names our outbox so a teardown racing a reconnect
		// on a fresh connection cannot sever the new binding.
		if rm := s.currentRoom(); rm != nil {
			rm.Inbox() <- room.Leave{PlayerID: s.playerID, Conn: s.roomOut}
		}
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.log.Debug("read ended", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.sendError(envelope(CodeValidation, "malformed json payload", nil))
			continue
		}
		s.handle(ctx, cm)
	}
}

func (s *session) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.events:
			payload, err := json.Marshal(msg)
			if err != nil {
				s.log.Error("marshal outbound event", zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			_ = s.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

func (s *session) handle(ctx context.Context, m types.ClientMessage) {
	switch m.Type {
	case types.IntentCreateRoom:
		s.handleCreateRoom(ctx, m)
	case types.IntentJoinRoom:
		s.handleJoinRoom(ctx, m)
	case types.IntentLeaveRoom:
		s.handleLeaveRoom()
	case types.IntentStartGame:
		s.handleStartGame(ctx)
	default:
		if !isGameIntent(m.Type) {
			s.sendError(envelope(CodeUnknownType, "unknown intent "+m.Type, nil))
			return
		}
		s.handleGameIntent(ctx, m)
	}
}

func (s *session) handleCreateRoom(ctx context.Context, m types.ClientMessage) {
	if s.currentRoom() != nil {
		s.sendError(envelope(CodeAlreadyInRoom, "already bound to a room", nil))
		return
	}

	roomCfg := room.Config{
		Game:           engine.Config{TargetScore: s.cfg.TargetScore},
		ReconnectGrace: s.cfg.ReconnectGrace,
		Rand:           rand.Float64,
	}
	if m.Config != nil && m.Config.TargetScore > 0 {
		roomCfg.Game.TargetScore = m.Config.TargetScore
	}

	var created *room.Room
	for {
		code, err := hub.GenerateCode()
		if err != nil {
			s.sendError(normalize(err, s.cfg.Debug))
			return
		}
		reply := make(chan hub.CreateResult, 1)
		s.hub.Inbox() <- hub.CreateRoom{Code: code, Cfg: roomCfg, Reply: reply}
		res := <-reply
		if res.Err == nil {
			created = res.Room
			break
		}
		// Code collision; mint another.
	}

	s.bindPlayer(m.PlayerID, m.PlayerName)
	s.send(types.ServerMessage{
		Type:     types.EventRoomCreated,
		RoomID:   created.ID(),
		PlayerID: s.playerID,
	})
	s.joinRoom(ctx, created)
}

func (s *session) handleJoinRoom(ctx context.Context, m types.ClientMessage) {
	if s.currentRoom() != nil {
		s.sendError(envelope(CodeAlreadyInRoom, "already bound to a room", nil))
		return
	}
	if m.RoomID == "" {
		s.sendError(envelope(CodeValidation, "join_room requires roomId", nil))
		return
	}

	reply := make(chan *room.Room, 1)
	s.hub.Inbox() <- hub.GetRoom{Code: m.RoomID, Reply: reply}
	rm := <-reply
	if rm == nil {
		s.sendError(envelope(CodeRoomNotFound, "no such room "+m.RoomID, nil))
		return
	}

	s.bindPlayer(m.PlayerID, m.PlayerName)
	s.joinRoom(ctx, rm)
}

// bindPlayer fixes the stable identity for this connection: the
// caller-supplied id wins (reconnection), otherwise one is minted.
func (s *session) bindPlayer(playerID, name string) {
	if s.playerID == "" {
		if playerID != "" {
			s.playerID = playerID
		} else {
			s.playerID = uuid.NewString()
		}
	}
	if name != "" {
		s.playerName = name
	}
}

func (s *session) joinRoom(ctx context.Context, rm *room.Room) {
	out := make(chan types.ServerMessage, 16)
	reply := make(chan error, 1)
	rm.Inbox() <- room.Join{PlayerID: s.playerID, Name: s.playerName, Outbox: out, Reply: reply}

	select {
	case err := <-reply:
		if err != nil {
			s.sendError(normalize(err, s.cfg.Debug))
			return
		}
	case <-ctx.Done():
		return
	}

	s.room = rm
	s.roomOut = out
	go s.forward(ctx, out)
}

// forward fans a room outbox into the connection's event feed. The
// room closing the outbox means it severed this binding; the reader
// learns of it through roomGone.
func (s *session) forward(ctx context.Context, out chan types.ServerMessage) {
	for msg := range out {
		select {
		case s.events <- msg:
		case <-ctx.Done():
			return
		}
	}
	select {
	case s.roomGone <- out:
	case <-ctx.Done():
	}
}

// currentRoom resolves the live room binding, clearing it first if the
// room has severed it. Only the reader goroutine may call this.
func (s *session) currentRoom() *room.Room {
	select {
	case gone := <-s.roomGone:
		if gone == s.roomOut {
			s.room = nil
			s.roomOut = nil
		}
	default:
	}
	return s.room
}

func (s *session) handleLeaveRoom() {
	rm := s.currentRoom()
	if rm == nil {
		s.sendError(envelope(CodeNotInRoom, "not bound to a room", nil))
		return
	}
	rm.Inbox() <- room.Leave{PlayerID: s.playerID, Conn: s.roomOut}
	roomID := rm.ID()
	s.room = nil
	s.roomOut = nil
	s.send(types.ServerMessage{Type: types.EventRoomLeft, RoomID: roomID, PlayerID: s.playerID})
}

func (s *session) handleStartGame(ctx context.Context) {
	rm := s.currentRoom()
	if rm == nil {
		s.sendError(envelope(CodeNotInRoom, "not bound to a room", nil))
		return
	}
	reply := make(chan error, 1)
	rm.Inbox() <- room.Start{PlayerID: s.playerID, Reply: reply}
	select {
	case err := <-reply:
		if err != nil {
			s.sendError(normalize(err, s.cfg.Debug))
		}
	case <-ctx.Done():
	}
}

func (s *session) handleGameIntent(ctx context.Context, m types.ClientMessage) {
	rm := s.currentRoom()
	if rm == nil {
		s.sendError(envelope(CodeNotInRoom, "not bound to a room", nil))
		return
	}
	action, env := parseGameIntent(s.playerID, m)
	if env != nil {
		s.sendError(env)
		return
	}

	reply := make(chan error, 1)
	rm.Inbox() <- room.Intent{PlayerID: s.playerID, Action: action, Reply: reply}
	select {
	case err := <-reply:
		if err != nil {
			// A rule rejection comes back as the generic envelope; the
			// accepted path needs no reply, the broadcast carries it.
			s.sendError(normalize(err, s.cfg.Debug))
		}
	case <-ctx.Done():
	}
}

// send queues a direct reply, waiting out a momentarily full feed so
// validation errors and acknowledgements reach the caller.
func (s *session) send(msg types.ServerMessage) {
	t := time.NewTimer(writeTimeout)
	defer t.Stop()
	select {
	case s.events <- msg:
	case <-t.C:
		s.log.Warn("outbound feed stalled, dropping reply", zap.String("type", msg.Type))
	}
}

func (s *session) sendError(env *types.ErrorEnvelope) {
	s.rep.ErrorEmitted(env.Code)
	s.send(types.ServerMessage{Type: types.EventError, Error: env})
}
