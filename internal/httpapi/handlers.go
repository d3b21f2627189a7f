package httpapi

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"go.uber.org/zap"

	"github.com/tarabish/tarneeb-server/internal/config"
	"github.com/tarabish/tarneeb-server/internal/engine"
	"github.com/tarabish/tarneeb-server/internal/hub"
	"github.com/tarabish/tarneeb-server/internal/room"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

// CreateRoom allocates an empty WAITING room and returns its code; the
// caller then attaches over the websocket to take the first seat.
func CreateRoom(h *hub.Hub, cfg *config.Config, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body types.RoomConfig
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		roomCfg := room.Config{
			Game:           engine.Config{TargetScore: cfg.TargetScore},
			ReconnectGrace: cfg.ReconnectGrace,
			Rand:           rand.Float64,
		}
		if body.TargetScore > 0 {
			roomCfg.Game.TargetScore = body.TargetScore
		}

		var code string
		for {
			c, err := hub.GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan hub.CreateResult, 1)
			h.Inbox() <- hub.CreateRoom{Code: c, Cfg: roomCfg, Reply: reply}
			res := <-reply
			if res.Err == nil {
				code = c
				break
			}
			log.Debug("room code collision, regenerating", zap.String("code", c))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []types.RoomInfo, 1)
		h.Inbox() <- hub.ListRooms{Reply: reply}
		rooms := <-reply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms []types.RoomInfo `json:"rooms"`
		}{Rooms: rooms})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
