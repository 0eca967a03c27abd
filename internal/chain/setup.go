package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
)

// Network bundles the chain collaborators of one configured network.
type Network struct {
	Name         string
	Pool         *Pool
	Explorer     *ExplorerClient
	Reachability *ReachabilityMonitor
	Assets       *AssetDefinitionClient
	Checks       []EndpointCheck

	rpcReaders []*RPCReader
}

// Setup dials every configured RPC URL and builds the network collaborators.
// Unreachable RPC URLs are skipped as long as one dials.
func Setup(ctx context.Context, cfg *config.Config, database *db.DB) (*Network, error) {
	slog.Info("setting up chain access",
		"network", cfg.Network,
		"rpcURLs", len(cfg.RPCURLs),
	)

	n := &Network{Name: cfg.Network}

	var readers []Reader
	for i, u := range cfg.RPCURLs {
		rl := NewRateLimiter(fmt.Sprintf("rpc-%d", i), config.RateLimitRPC)
		r, err := NewRPCReader(ctx, u, rl)
		if err != nil {
			slog.Warn("rpc endpoint skipped", "rpcURL", u, "error", err)
			continue
		}
		n.rpcReaders = append(n.rpcReaders, r)
		readers = append(readers, r)
		n.Checks = append(n.Checks, RPCCheck(r))
	}
	if len(readers) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.Network, config.ErrAllProvidersFailed)
	}

	httpClient := NewRestyClient()

	n.Pool = NewPool(cfg.Network, readers...)
	n.Reachability = NewReachabilityMonitor(n.Pool)
	n.Explorer = NewExplorerClient(httpClient, NewRateLimiter("explorer", config.RateLimitExplorer),
		cfg.Network, cfg.ExplorerAPIURL, cfg.ExplorerAPIKey)
	n.Assets = NewAssetDefinitionClient(httpClient, NewRateLimiter("asset-definitions", config.RateLimitAssetDefinition),
		cfg.AssetDefinitionURL, database)

	if cfg.ExplorerAPIURL != "" {
		n.Checks = append(n.Checks, ExplorerCheck(httpClient, cfg.ExplorerAPIURL, cfg.ExplorerAPIKey))
	}

	return n, nil
}

// Close closes every RPC connection.
func (n *Network) Close() {
	for _, r := range n.rpcReaders {
		r.Close()
	}
}
