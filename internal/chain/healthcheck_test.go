package chain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
)

func TestRunStartupHealthChecks(t *testing.T) {
	checks := []EndpointCheck{
		{Name: "ok", Check: func(context.Context) error { return nil }},
		{Name: "down", Check: func(context.Context) error { return errors.New("connection refused") }},
	}

	results := RunStartupHealthChecks(context.Background(), checks)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].OK || results[0].Name != "ok" {
		t.Errorf("results[0] = %+v, want ok", results[0])
	}
	if results[1].OK || results[1].Error != "connection refused" {
		t.Errorf("results[1] = %+v, want failure", results[1])
	}
}

func TestRPCCheck(t *testing.T) {
	check := RPCCheck(&stubReader{endpoint: "stub"})
	if check.Name != "stub" {
		t.Errorf("Name = %q, want stub", check.Name)
	}
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func TestExplorerCheck(t *testing.T) {
	var gotKey, gotAction string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		gotAction = r.URL.Query().Get("action")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x10"}`))
	}))
	defer server.Close()

	check := ExplorerCheck(resty.NewWithClient(server.Client()), server.URL, "secret")
	if err := check.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if gotKey != "secret" || gotAction != "eth_blockNumber" {
		t.Errorf("apikey=%q action=%q", gotKey, gotAction)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	if err := ExplorerCheck(resty.NewWithClient(failing.Client()), failing.URL, "").Check(context.Background()); err == nil {
		t.Error("expected error for 503")
	}
}
