package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/calebmartin/netchess-backend/internal/server"
)

// ListGames exposes the lobby snapshot over plain HTTP, for dashboards and
// lobby browsers that do not hold a game connection.
func ListGames(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(srv.LobbySnapshot())
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
