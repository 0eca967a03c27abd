package config

import (
	"sort"
	"time"
)

// Networks
const (
	NetworkMainnet = "mainnet"
	NetworkXDai    = "xdai"
	NetworkSepolia = "sepolia"
	NetworkPolygon = "polygon"
	NetworkBSC     = "bsc"
)

// ChainIDs maps network names to EVM chain IDs.
var ChainIDs = map[string]int64{
	NetworkMainnet: 1,
	NetworkXDai:    100,
	NetworkSepolia: 11155111,
	NetworkPolygon: 137,
	NetworkBSC:     56,
}

// NetworkEndpoints are the public endpoints used when none are configured.
type NetworkEndpoints struct {
	RPCURL         string
	ExplorerAPIURL string
}

// DefaultEndpoints are the public RPC and Etherscan-compatible explorer URLs per network.
var DefaultEndpoints = map[string]NetworkEndpoints{
	NetworkMainnet: {RPCURL: "https://ethereum-rpc.publicnode.com", ExplorerAPIURL: "https://api.etherscan.io/v2/api?chainid=1"},
	NetworkXDai:    {RPCURL: "https://rpc.gnosischain.com", ExplorerAPIURL: "https://gnosis.blockscout.com/api"},
	NetworkSepolia: {RPCURL: "https://ethereum-sepolia-rpc.publicnode.com", ExplorerAPIURL: "https://api.etherscan.io/v2/api?chainid=11155111"},
	NetworkPolygon: {RPCURL: "https://polygon-rpc.com", ExplorerAPIURL: "https://api.etherscan.io/v2/api?chainid=137"},
	NetworkBSC:     {RPCURL: "https://bsc-dataseed.binance.org", ExplorerAPIURL: "https://api.etherscan.io/v2/api?chainid=56"},
}

// SupportedNetworks returns the sorted list of network names.
func SupportedNetworks() []string {
	names := make([]string, 0, len(ChainIDs))
	for n := range ChainIDs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Detection
const (
	TransactedNotifyTimeout   = 3 * time.Second
	MaxConcurrentFetches      = 8
	MaxNonFungibleItems       = 50
	ExplorerPageSize          = 1000
	NativeCurrencyPlaceholder = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

// Rate Limiting (requests per second)
const (
	RateLimitRPC             = 10
	RateLimitExplorer        = 5
	RateLimitAssetDefinition = 2
)

// Circuit Breaker
const (
	CircuitBreakerThreshold   = 3
	CircuitBreakerCooldown    = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1

	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// Providers
const (
	ProviderRequestTimeout = 15 * time.Second
	HealthCheckTimeout     = 10 * time.Second
	ReachabilityInterval   = 20 * time.Second
	ReachabilityTimeout    = 5 * time.Second
	AssetDefinitionTimeout = 20 * time.Second
)

// Server
const (
	ServerReadTimeout     = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerMaxHeaderBytes  = 1 << 20
	ShutdownTimeout       = 15 * time.Second
	SSEKeepAliveInterval  = 15 * time.Second
	EventHubChannelBuffer = 64
)

// Logging
const (
	LogFilePrefix = "tokenscout-"
	LogMaxAgeDays = 30
)

// Database
const (
	DBBusyTimeout = 5000 // milliseconds
)
