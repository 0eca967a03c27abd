package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/detect"
	"github.com/Fantasim/tokenscout/internal/models"
)

// RunLister lists recorded detection passes.
type RunLister interface {
	ListDetectionRuns(wallet, network string, limit int) ([]models.DetectionRun, error)
}

// startDetectionRequest is the JSON body for POST /api/detect.
type startDetectionRequest struct {
	Wallet string `json:"wallet"`
}

type startDetectionResponse struct {
	Wallet            string `json:"wallet"`
	Network           string `json:"network"`
	TransactedStarted bool   `json:"transactedStarted"`
	PartnerStarted    bool   `json:"partnerStarted"`
}

type detectionStatusResponse struct {
	detect.Status
	Runs []models.DetectionRun `json:"runs"`
}

const defaultRunLimit = 10

// StartDetection handles POST /api/detect. It makes the wallet current and
// starts both passes in the background. Passes that are already running or
// disabled are reported as not started.
func StartDetection(engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startDetectionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		slog.Info("detection requested",
			"wallet", req.Wallet,
			"network", engine.Network(),
			"remoteAddr", r.RemoteAddr,
		)

		s, err := engine.Session(req.Wallet)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		transacted, partner := s.StartAutoDetection()

		writeJSON(w, http.StatusAccepted, models.APIResponse{
			Data: startDetectionResponse{
				Wallet:            s.Wallet(),
				Network:           s.Network(),
				TransactedStarted: transacted,
				PartnerStarted:    partner,
			},
		})
	}
}

// GetDetectionStatus handles GET /api/detect/status.
func GetDetectionStatus(engine *detect.Engine, runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := resolveSession(w, r, engine)
		if s == nil {
			return
		}

		resp := detectionStatusResponse{Status: s.Status(), Runs: []models.DetectionRun{}}
		if runs != nil {
			list, err := runs.ListDetectionRuns(s.Wallet(), s.Network(), parseIntParam(r, "limit", defaultRunLimit))
			if err != nil {
				writeStoreError(w, err)
				return
			}
			resp.Runs = list
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Data: resp})
	}
}

// EventsSSE handles GET /api/events, a Server-Sent Events stream of hub
// events. A detection_status snapshot of the current session is sent on
// connect so clients can resync.
func EventsSSE(hub *detect.Hub, engine *detect.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			slog.Error("SSE not supported: response writer does not implement http.Flusher")
			writeError(w, http.StatusInternalServerError, config.ErrorInvalidRequest, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		ch := hub.Subscribe()
		defer func() {
			hub.Unsubscribe(ch)
			slog.Info("SSE client disconnected", "remoteAddr", r.RemoteAddr)
		}()

		slog.Info("SSE client connected",
			"remoteAddr", r.RemoteAddr,
			"totalClients", hub.ClientCount(),
		)

		if s := engine.Current(); s != nil {
			writeEvent(w, "detection_status", s.Status())
		}
		flusher.Flush()

		keepAlive := time.NewTicker(config.SSEKeepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					slog.Info("SSE channel closed, ending stream", "remoteAddr", r.RemoteAddr)
					return
				}
				writeEvent(w, event.Type, event.Data)
				flusher.Flush()

			case <-keepAlive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal SSE event", "type", eventType, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
}

// contextWithProviderTimeout bounds a synchronous chain fetch made on behalf
// of a request.
func contextWithProviderTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 2*config.ProviderRequestTimeout)
}
