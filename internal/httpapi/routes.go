package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/calebmartin/netchess-backend/internal/server"
	"github.com/calebmartin/netchess-backend/internal/ws"
)

// SetupRoutes builds the HTTP sidecar with the game server injected.
func SetupRoutes(srv *server.Server, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/games", ListGames(srv))
	r.Get("/ws", ws.Handler(srv, log))
	return r
}
