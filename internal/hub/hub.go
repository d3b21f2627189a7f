package hub

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/tarabish/tarneeb-server/internal/metrics"
	"github.com/tarabish/tarneeb-server/internal/room"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

var ErrRoomExists = errors.New("room id already in use")

type HubMsg interface{ isHubMsg() }

type CreateResult struct {
	Room *room.Room
	Err  error
}

// CreateRoom registers a new room under Code. Creation under an
// existing id is a typed error, never a silent no-op.
type CreateRoom struct {
	Code  string
	Cfg   room.Config
	Reply chan CreateResult
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ListRooms struct {
	Reply chan []types.RoomInfo
}

// WatchList subscribes an unbound connection to room_list_updated
// events.
type WatchList struct {
	ID     string
	Outbox chan types.ServerMessage
}

type UnwatchList struct{ ID string }

type roomChanged struct{ info types.RoomInfo }

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (WatchList) isHubMsg()   {}
func (UnwatchList) isHubMsg() {}
func (roomChanged) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the process-wide room registry. A single goroutine drains
// the inbox, so room insertion and removal are atomic with respect to
// concurrent create/join calls for the same id.
type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	infos    map[string]types.RoomInfo
	watchers map[string]chan types.ServerMessage
	store    room.MatchWriter
	metrics  metrics.Reporter
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger, store room.MatchWriter, rep metrics.Reporter) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if rep == nil {
		rep = metrics.Nop{}
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		infos:    make(map[string]types.RoomInfo),
		watchers: make(map[string]chan types.ServerMessage),
		store:    store,
		metrics:  rep,
		log:      log.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if h.rooms[msg.Code] != nil {
					msg.Reply <- CreateResult{Err: ErrRoomExists}
					break
				}
				rm := room.New(h.ctx, msg.Code, msg.Cfg, h.log, h.store, h.metrics, room.Hooks{
					OnChange: h.postInfo,
					OnIdle:   h.postRemove,
				})
				h.rooms[msg.Code] = rm
				h.infos[msg.Code] = rm.Info()
				h.metrics.RoomOpened()
				h.log.Info("room created", zap.String("room", msg.Code))
				h.notifyWatchers()
				msg.Reply <- CreateResult{Room: rm}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				if rm := h.rooms[msg.Code]; rm != nil {
					rm.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.Code)
					delete(h.infos, msg.Code)
					h.metrics.RoomClosed()
					h.log.Info("room removed", zap.String("room", msg.Code))
					h.notifyWatchers()
				}

			case ListRooms:
				msg.Reply <- h.list()

			case WatchList:
				h.watchers[msg.ID] = msg.Outbox
				h.send(msg.ID, types.ServerMessage{Type: types.EventRoomListUpdated, Rooms: h.list()})

			case UnwatchList:
				delete(h.watchers, msg.ID)

			case roomChanged:
				h.infos[msg.info.ID] = msg.info
				h.notifyWatchers()

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				clear(h.infos)
				h.cancel()
			}
		}
	}
}

// postInfo and postRemove run on room goroutines; they must never
// block on a busy hub, so a full inbox falls back to a spawned send.
func (h *Hub) postInfo(info types.RoomInfo) {
	h.post(roomChanged{info: info})
}

func (h *Hub) postRemove(code string) {
	h.post(RemoveRoom{Code: code})
}

func (h *Hub) post(msg HubMsg) {
	select {
	case h.inbox <- msg:
	default:
		go func() {
			select {
			case h.inbox <- msg:
			case <-h.ctx.Done():
			}
		}()
	}
}

func (h *Hub) list() []types.RoomInfo {
	out := make([]types.RoomInfo, 0, len(h.infos))
	for _, info := range h.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) notifyWatchers() {
	if len(h.watchers) == 0 {
		return
	}
	msg := types.ServerMessage{Type: types.EventRoomListUpdated, Rooms: h.list()}
	for id := range h.watchers {
		h.send(id, msg)
	}
}

func (h *Hub) send(id string, msg types.ServerMessage) {
	ch := h.watchers[id]
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow watcher; drop them, the connection will resync.
		delete(h.watchers, id)
	}
}
