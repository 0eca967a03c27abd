package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/detect"
)

// HealthHandler handles GET /api/health.
func HealthHandler(cfg *config.Config, version string, engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":            "ok",
			"version":           version,
			"network":           engine.Network(),
			"wallet":            engine.CurrentWallet(),
			"autoFetchDisabled": engine.AutoFetchDisabled(),
			"dbPath":            cfg.DBPath,
		})
	}
}
