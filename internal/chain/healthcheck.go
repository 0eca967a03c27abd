package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Fantasim/tokenscout/internal/config"
)

// EndpointCheck is one connectivity probe run at startup.
type EndpointCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthCheckResult holds the outcome of a single check.
type HealthCheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// RunStartupHealthChecks probes every endpoint concurrently and logs the
// results. Failures are reported but never stop startup.
func RunStartupHealthChecks(ctx context.Context, checks []EndpointCheck) []HealthCheckResult {
	slog.Info("running startup endpoint health checks", "count", len(checks))

	var (
		results = make([]HealthCheckResult, len(checks))
		wg      sync.WaitGroup
	)

	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, config.HealthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			latency := time.Since(start)

			results[i] = HealthCheckResult{Name: c.Name, OK: err == nil, Latency: latency}
			if err != nil {
				results[i].Error = err.Error()
				slog.Warn("endpoint health check FAILED",
					"endpoint", c.Name,
					"latency", latency.Round(time.Millisecond),
					"error", err,
				)
				return
			}
			slog.Info("endpoint health check OK",
				"endpoint", c.Name,
				"latency", latency.Round(time.Millisecond),
			)
		}()
	}

	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	slog.Info("startup health checks complete", "total", len(results), "failed", failed)

	return results
}

// RPCCheck probes a reader with eth_blockNumber.
func RPCCheck(r Reader) EndpointCheck {
	return EndpointCheck{
		Name: r.Endpoint(),
		Check: func(ctx context.Context) error {
			_, err := r.BlockNumber(ctx)
			return err
		},
	}
}

// ExplorerCheck probes an explorer API with the proxy eth_blockNumber action.
func ExplorerCheck(httpClient *resty.Client, apiURL, apiKey string) EndpointCheck {
	return EndpointCheck{
		Name: apiURL,
		Check: func(ctx context.Context) error {
			req := httpClient.R().
				SetContext(ctx).
				SetQueryParam("module", "proxy").
				SetQueryParam("action", "eth_blockNumber")
			if apiKey != "" {
				req.SetQueryParam("apikey", apiKey)
			}
			resp, err := req.Get(apiURL)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			if resp.StatusCode() >= 400 {
				return fmt.Errorf("unexpected status %d", resp.StatusCode())
			}
			return nil
		},
	}
}
