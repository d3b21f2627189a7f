package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tarabish/tarneeb-server/internal/config"
	"github.com/tarabish/tarneeb-server/internal/hub"
	"github.com/tarabish/tarneeb-server/internal/metrics"
	"github.com/tarabish/tarneeb-server/internal/ws"
)

func SetupRoutes(h *hub.Hub, cfg *config.Config, log *zap.Logger, rep metrics.Reporter) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(h, cfg, log))
	r.Get("/rooms", ListRooms(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, cfg, log, rep))
	return r
}
