package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/models"
)

// explorerEnvelope is the Etherscan/Blockscout response envelope. A failed
// call carries a plain string in result instead of an array.
type explorerEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTransfer struct {
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	To              string `json:"to"`
}

// ExplorerClient lists the token contracts a wallet has transferred through
// an Etherscan-compatible account API.
type ExplorerClient struct {
	http    *resty.Client
	rl      *RateLimiter
	apiURL  string
	apiKey  string
	network string
}

// NewExplorerClient creates a client. apiURL may already carry a query
// string (Etherscan v2 passes chainid that way).
func NewExplorerClient(httpClient *resty.Client, rl *RateLimiter, network, apiURL, apiKey string) *ExplorerClient {
	return &ExplorerClient{
		http:    httpClient,
		rl:      rl,
		apiURL:  apiURL,
		apiKey:  apiKey,
		network: network,
	}
}

// NewRestyClient returns the shared HTTP client for explorer and asset
// definition calls.
func NewRestyClient() *resty.Client {
	return resty.New().
		SetTimeout(config.ProviderRequestTimeout).
		SetHeader("User-Agent", "tokenscout")
}

// ListContractsInteracted returns the distinct lowercase contracts in the
// wallet's fungible (tokentx) or non-fungible (tokennfttx) transfer history.
func (e *ExplorerClient) ListContractsInteracted(ctx context.Context, wallet string, fungible bool) ([]string, error) {
	action := "tokennfttx"
	if fungible {
		action = "tokentx"
	}

	if err := e.rl.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"module":  "account",
		"action":  action,
		"address": wallet,
		"page":    "1",
		"offset":  strconv.Itoa(config.ExplorerPageSize),
		"sort":    "desc",
	}
	if e.apiKey != "" {
		params["apikey"] = e.apiKey
	}

	resp, err := e.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(e.apiURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, config.NewTransientError(fmt.Errorf("explorer %s: %w: %v", action, config.ErrProviderUnavailable, err))
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, config.NewTransientErrorWithRetry(
			fmt.Errorf("explorer %s: %w", action, config.ErrProviderRateLimit),
			parseRetryAfter(resp.Header()),
		)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return nil, config.NewTransientError(fmt.Errorf("explorer %s: HTTP %d: %w", action, resp.StatusCode(), config.ErrProviderUnavailable))
	case resp.StatusCode() != http.StatusOK:
		return nil, fmt.Errorf("explorer %s: unexpected status %d", action, resp.StatusCode())
	}

	transfers, err := decodeTransfers(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("explorer %s: %w", action, err)
	}

	seen := models.NewContractSet()
	contracts := make([]string, 0, len(transfers))
	for _, t := range transfers {
		c := models.NormalizeAddress(t.ContractAddress)
		if c == "" || seen.Contains(c) {
			continue
		}
		seen.Add(c)
		contracts = append(contracts, c)
	}

	slog.Debug("explorer transfers listed",
		"network", e.network,
		"action", action,
		"transfers", len(transfers),
		"contracts", len(contracts),
	)

	return contracts, nil
}

// decodeTransfers unwraps the envelope. "No transactions found" is an empty
// result, not an error.
func decodeTransfers(body []byte) ([]explorerTransfer, error) {
	var env explorerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Status != "1" {
		var msg string
		_ = json.Unmarshal(env.Result, &msg)
		if strings.HasPrefix(env.Message, "No transactions found") {
			return nil, nil
		}
		if strings.Contains(strings.ToLower(msg), "rate limit") {
			return nil, config.NewTransientError(fmt.Errorf("%w: %s", config.ErrProviderRateLimit, msg))
		}
		if msg == "" {
			msg = env.Message
		}
		return nil, fmt.Errorf("explorer API: %s", msg)
	}

	var transfers []explorerTransfer
	if err := json.Unmarshal(env.Result, &transfers); err != nil {
		return nil, fmt.Errorf("decode transfers: %w", err)
	}
	return transfers, nil
}
