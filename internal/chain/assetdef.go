package chain

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
	"github.com/Fantasim/tokenscout/internal/models"
)

// AssetDefinitionStore persists fetched definition documents.
type AssetDefinitionStore interface {
	GetAssetDefinition(contract string) (*db.AssetDefinition, error)
	UpsertAssetDefinition(contract string, body []byte, lastModified string) error
}

// AssetDefinitionClient downloads the asset definition document published
// for a contract. Unchanged documents are skipped with If-Modified-Since.
type AssetDefinitionClient struct {
	http    *resty.Client
	rl      *RateLimiter
	baseURL string
	store   AssetDefinitionStore
}

// NewAssetDefinitionClient creates a client for the repository at baseURL.
func NewAssetDefinitionClient(httpClient *resty.Client, rl *RateLimiter, baseURL string, store AssetDefinitionStore) *AssetDefinitionClient {
	return &AssetDefinitionClient{
		http:    httpClient,
		rl:      rl,
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
	}
}

// Refresh fetches the definition for contract and stores it if it changed.
// It reports whether a new document was stored.
func (c *AssetDefinitionClient) Refresh(ctx context.Context, contract string) (bool, error) {
	contract = models.NormalizeAddress(contract)

	cached, err := c.store.GetAssetDefinition(contract)
	if err != nil {
		return false, err
	}

	if err := c.rl.Wait(ctx); err != nil {
		return false, err
	}

	req := c.http.R().SetContext(ctx)
	if cached != nil && cached.LastModified != "" {
		req.SetHeader("If-Modified-Since", cached.LastModified)
	}

	resp, err := req.Get(c.baseURL + "/" + contract)
	if err != nil {
		return false, config.NewTransientError(fmt.Errorf("asset definition %s: %w: %v", contract, config.ErrProviderUnavailable, err))
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotModified, http.StatusNotFound:
		return false, nil
	case http.StatusTooManyRequests:
		return false, config.NewTransientErrorWithRetry(
			fmt.Errorf("asset definition %s: %w", contract, config.ErrProviderRateLimit),
			parseRetryAfter(resp.Header()),
		)
	default:
		return false, fmt.Errorf("asset definition %s: unexpected status %d", contract, resp.StatusCode())
	}

	if err := c.store.UpsertAssetDefinition(contract, resp.Body(), resp.Header().Get("Last-Modified")); err != nil {
		return false, err
	}

	slog.Debug("asset definition stored", "contract", contract, "bytes", len(resp.Body()))
	return true, nil
}

// RefreshAsync runs Refresh in the background with its own timeout and only
// logs the result.
func (c *AssetDefinitionClient) RefreshAsync(contract string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.AssetDefinitionTimeout)
		defer cancel()

		if _, err := c.Refresh(ctx, contract); err != nil {
			slog.Debug("asset definition refresh failed", "contract", contract, "error", err)
		}
	}()
}
