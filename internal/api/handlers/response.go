package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/detect"
	"github.com/Fantasim/tokenscout/internal/models"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{
		Error: models.APIErrorDetail{Code: code, Message: message},
	})
}

// writeStoreError maps a session or store error to a response.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, config.ErrorInvalidAddress, err.Error())
	case errors.Is(err, config.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, config.ErrorInvalidToken, err.Error())
	case errors.Is(err, config.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, config.ErrorTokenNotFound, err.Error())
	default:
		slog.Error("token store request failed", "error", err)
		writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "token store failure")
	}
}

// sessionFor returns the session named by the wallet query parameter, or the
// engine's current session when none is given. Naming another wallet makes
// it current.
func sessionFor(engine *detect.Engine, r *http.Request) (*detect.Session, bool, error) {
	if wallet := r.URL.Query().Get("wallet"); wallet != "" {
		s, err := engine.Session(wallet)
		return s, s != nil, err
	}
	s := engine.Current()
	return s, s != nil, nil
}

// resolveSession writes the error response itself and returns nil when no
// session can serve the request.
func resolveSession(w http.ResponseWriter, r *http.Request, engine *detect.Engine) *detect.Session {
	s, ok, err := sessionFor(engine, r)
	if err != nil {
		writeStoreError(w, err)
		return nil
	}
	if !ok {
		writeError(w, http.StatusConflict, config.ErrorNoSession, "no wallet selected; start detection or pass ?wallet=")
		return nil
	}
	return s
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("invalid request body",
			"path", r.URL.Path,
			"error", err,
			"remoteAddr", r.RemoteAddr,
		)
		writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid request body")
		return false
	}
	return true
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		slog.Debug("invalid int param, using default",
			"key", key,
			"value", val,
			"default", defaultVal,
		)
		return defaultVal
	}
	return n
}
