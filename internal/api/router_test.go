package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
	"github.com/Fantasim/tokenscout/internal/detect"
)

func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "router.sqlite"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	engine := detect.NewEngine(context.Background(), config.NetworkMainnet,
		func(wallet, network string) detect.TokenStore { return database.TokenStore(wallet, network) },
		detect.Deps{Standards: database, Runs: database},
		detect.Options{TestHarness: true},
	)
	return NewRouter(&config.Config{DBPath: "router.sqlite"}, engine, database)
}

func TestRouter_Routes(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/tokens", http.StatusConflict},
		{"GET", "/api/detect/status", http.StatusConflict},
		{"GET", "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Host = "localhost:8080"
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d. body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRouter_MetricsExposeDetectionSeries(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Host = "127.0.0.1:8080"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime series")
	}
}

func TestRouter_RejectsForeignHost(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Host = "attacker.example"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
