package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/tokenscout/internal/config"
)

// RPCReader reads contract state through eth_call on one JSON-RPC node.
type RPCReader struct {
	client *ethclient.Client
	rl     *RateLimiter
	rpcURL string
}

// NewRPCReader dials a JSON-RPC endpoint.
func NewRPCReader(ctx context.Context, rpcURL string, rl *RateLimiter) (*RPCReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC %s: %w", rpcURL, err)
	}

	slog.Info("rpc reader connected", "rpcURL", rpcURL)

	return &RPCReader{client: client, rl: rl, rpcURL: rpcURL}, nil
}

// Endpoint returns the node URL.
func (r *RPCReader) Endpoint() string { return r.rpcURL }

// Close closes the underlying connection.
func (r *RPCReader) Close() {
	r.client.Close()
	slog.Info("rpc reader closed", "rpcURL", r.rpcURL)
}

// TokenName calls name(). Contracts returning bytes32 are accepted.
func (r *RPCReader) TokenName(ctx context.Context, contract common.Address) (string, error) {
	return r.callString(ctx, contract, "name")
}

// TokenSymbol calls symbol(). Contracts returning bytes32 are accepted.
func (r *RPCReader) TokenSymbol(ctx context.Context, contract common.Address) (string, error) {
	return r.callString(ctx, contract, "symbol")
}

// TokenDecimals calls decimals().
func (r *RPCReader) TokenDecimals(ctx context.Context, contract common.Address) (uint8, error) {
	out, err := r.call(ctx, contract, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals of %s", config.ErrMalformedResponse, contract.Hex())
	}
	return decimals, nil
}

// IsSemiFungible calls isStormBirdContract().
func (r *RPCReader) IsSemiFungible(ctx context.Context, contract common.Address) (bool, error) {
	return r.callBool(ctx, contract, erc875ABI, "isStormBirdContract")
}

// SupportsInterface calls supportsInterface(bytes4).
func (r *RPCReader) SupportsInterface(ctx context.Context, contract common.Address, id [4]byte) (bool, error) {
	return r.callBool(ctx, contract, erc721ABI, "supportsInterface", id)
}

// FungibleBalance calls balanceOf(owner) returning uint256.
func (r *RPCReader) FungibleBalance(ctx context.Context, contract, owner common.Address) (*big.Int, error) {
	return r.callUint(ctx, contract, erc20ABI, "balanceOf", owner)
}

// SemiFungibleBalance calls the ERC875 balanceOf(owner) returning bytes32[]
// and keeps the non-zero slots.
func (r *RPCReader) SemiFungibleBalance(ctx context.Context, contract, owner common.Address) ([]string, error) {
	out, err := r.call(ctx, contract, erc875ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	slots, ok := out[0].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf of %s", config.ErrMalformedResponse, contract.Hex())
	}

	items := []string{}
	for _, slot := range slots {
		if slot == ([32]byte{}) {
			continue
		}
		items = append(items, common.Hash(slot).Hex())
	}
	return items, nil
}

// NonFungibleTokens reads balanceOf(owner) and enumerates up to limit token
// IDs with tokenOfOwnerByIndex. Contracts without the enumerable extension
// yield no IDs.
func (r *RPCReader) NonFungibleTokens(ctx context.Context, contract, owner common.Address, limit int) ([]string, error) {
	count, err := r.callUint(ctx, contract, erc721ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}

	n := limit
	if count.IsInt64() && count.Int64() < int64(limit) {
		n = int(count.Int64())
	}

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := r.callUint(ctx, contract, erc721ABI, "tokenOfOwnerByIndex", owner, big.NewInt(int64(i)))
		if errors.Is(err, config.ErrContractReverted) || errors.Is(err, config.ErrMalformedResponse) {
			slog.Debug("contract is not enumerable", "contract", contract.Hex(), "held", count)
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}

// BlockNumber returns the latest block number.
func (r *RPCReader) BlockNumber(ctx context.Context) (uint64, error) {
	if err := r.rl.Wait(ctx); err != nil {
		return 0, err
	}
	callCtx, cancel := context.WithTimeout(ctx, config.ProviderRequestTimeout)
	defer cancel()

	n, err := r.client.BlockNumber(callCtx)
	if err != nil {
		return 0, r.classify(ctx, err)
	}
	return n, nil
}

func (r *RPCReader) callString(ctx context.Context, contract common.Address, method string) (string, error) {
	raw, err := r.callRaw(ctx, contract, erc20ABI, method)
	if err != nil {
		return "", err
	}

	// Older tokens return bytes32 instead of an ABI string.
	if len(raw) == 32 {
		return strings.TrimSpace(string(bytes.TrimRight(raw, "\x00"))), nil
	}

	out, err := erc20ABI.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return "", fmt.Errorf("%w: %s of %s", config.ErrMalformedResponse, method, contract.Hex())
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s of %s", config.ErrMalformedResponse, method, contract.Hex())
	}
	return strings.TrimSpace(s), nil
}

func (r *RPCReader) callBool(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (bool, error) {
	out, err := r.call(ctx, contract, parsed, method, args...)
	if err != nil {
		return false, err
	}
	b, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s of %s", config.ErrMalformedResponse, method, contract.Hex())
	}
	return b, nil
}

func (r *RPCReader) callUint(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := r.call(ctx, contract, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %s", config.ErrMalformedResponse, method, contract.Hex())
	}
	return v, nil
}

// call packs, executes and unpacks a single-output method.
func (r *RPCReader) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	raw, err := r.callRaw(ctx, contract, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return nil, fmt.Errorf("%w: %s of %s", config.ErrMalformedResponse, method, contract.Hex())
	}
	return out, nil
}

func (r *RPCReader) callRaw(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	if err := r.rl.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, config.ProviderRequestTimeout)
	defer cancel()

	raw, err := r.client.CallContract(callCtx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, r.classify(ctx, err)
	}

	slog.Debug("eth_call",
		"rpcURL", r.rpcURL,
		"contract", contract.Hex(),
		"method", method,
		"bytes", len(raw),
	)

	return raw, nil
}

// classify maps a call error onto the sentinel taxonomy. JSON-RPC error
// objects come from the node executing the call, so they describe the
// contract rather than the connection.
func (r *RPCReader) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return config.NewTransientError(fmt.Errorf("%s: %w", r.rpcURL, config.ErrProviderRateLimit))
		}
		return config.NewTransientError(fmt.Errorf("%s: HTTP %d: %w", r.rpcURL, httpErr.StatusCode, config.ErrProviderUnavailable))
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %v", config.ErrContractReverted, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return config.NewTransientError(fmt.Errorf("%s: %w", r.rpcURL, config.ErrProviderTimeout))
	}

	return config.NewTransientError(fmt.Errorf("%s: %w: %v", r.rpcURL, config.ErrProviderUnavailable, err))
}
