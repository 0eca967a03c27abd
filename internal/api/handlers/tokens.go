package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/detect"
	"github.com/Fantasim/tokenscout/internal/models"
)

// importTokenRequest is the JSON body for POST /api/tokens/import.
type importTokenRequest struct {
	Contract string `json:"contract"`
}

// importTokenResponse reports what an import did.
type importTokenResponse struct {
	Contract string              `json:"contract"`
	Outcome  string              `json:"outcome"`
	Action   detect.IngestAction `json:"action"`
	Token    *models.Token       `json:"token,omitempty"`
}

// ListTokens handles GET /api/tokens.
func ListTokens(engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s := resolveSession(w, r, engine)
		if s == nil {
			return
		}

		tokens, err := s.Store().ListTokens()
		if err != nil {
			writeStoreError(w, err)
			return
		}

		slog.Debug("tokens listed",
			"wallet", s.Wallet(),
			"network", s.Network(),
			"count", len(tokens),
		)

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: tokens,
			Meta: &models.APIMeta{
				Total:         int64(len(tokens)),
				ExecutionTime: time.Since(start).Milliseconds(),
			},
		})
	}
}

// ImportToken handles POST /api/tokens/import. It fetches the contract
// synchronously and reports the outcome.
func ImportToken(engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := resolveSession(w, r, engine)
		if s == nil {
			return
		}
		var req importTokenRequest
		if !decodeBody(w, r, &req) {
			return
		}

		ctx, cancel := contextWithProviderTimeout(r)
		defer cancel()

		outcome, action, err := s.AddImportedToken(ctx, req.Contract)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		resp := importTokenResponse{
			Contract: models.NormalizeAddress(req.Contract),
			Outcome:  detect.OutcomeLabel(outcome),
			Action:   action,
		}
		if action == detect.ActionTokenAdded {
			if token, ok := findToken(s, resp.Contract); ok {
				resp.Token = &token
			}
		}
		if action == detect.ActionStoreError {
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to record imported token")
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Data: resp})
	}
}

// AddCustomToken handles POST /api/tokens/custom.
func AddCustomToken(engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := resolveSession(w, r, engine)
		if s == nil {
			return
		}
		var token models.Token
		if !decodeBody(w, r, &token) {
			return
		}
		if token.Value == "" {
			token.Value = "0"
		}

		if err := s.AddCustomToken(token); err != nil {
			writeStoreError(w, err)
			return
		}
		stored, _ := findToken(s, token.Contract)
		writeJSON(w, http.StatusCreated, models.APIResponse{Data: stored})
	}
}

// DeleteToken handles DELETE /api/tokens/{contract}.
func DeleteToken(engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := resolveSession(w, r, engine)
		if s == nil {
			return
		}
		contract := chi.URLParam(r, "contract")

		if err := s.DeleteToken(contract); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: map[string]string{"contract": models.NormalizeAddress(contract), "status": "deleted"},
		})
	}
}

// HideToken handles POST /api/tokens/{contract}/hide.
func HideToken(engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := resolveSession(w, r, engine)
		if s == nil {
			return
		}
		contract := chi.URLParam(r, "contract")

		if err := s.HideToken(contract); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: map[string]string{"contract": models.NormalizeAddress(contract), "status": "hidden"},
		})
	}
}

func findToken(s *detect.Session, contract string) (models.Token, bool) {
	contract = models.NormalizeAddress(contract)
	tokens, err := s.Store().ListTokens()
	if err != nil {
		slog.Warn("failed to reload token list", "contract", contract, "error", err)
		return models.Token{}, false
	}
	for _, t := range tokens {
		if t.Contract == contract {
			return t, true
		}
	}
	return models.Token{}, false
}
