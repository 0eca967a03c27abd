package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/config"
)

// Pool spreads calls over several readers for the same network in
// round-robin order. Each reader has its own circuit breaker and a call
// fails over to the next reader on transient errors.
type Pool struct {
	readers  []Reader
	breakers []*CircuitBreaker // same index as readers
	current  atomic.Uint32
	network  string
}

// NewPool creates a pool. At least one reader is required.
func NewPool(network string, readers ...Reader) *Pool {
	names := make([]string, len(readers))
	breakers := make([]*CircuitBreaker, len(readers))
	for i, r := range readers {
		names[i] = r.Endpoint()
		breakers[i] = NewCircuitBreaker(r.Endpoint(), config.CircuitBreakerThreshold, config.CircuitBreakerCooldown)
	}

	slog.Info("reader pool created",
		"network", network,
		"endpoints", names,
	)

	return &Pool{readers: readers, breakers: breakers, network: network}
}

func (p *Pool) nextIndex() int {
	return int((p.current.Add(1) - 1) % uint32(len(p.readers)))
}

// Endpoint names the pool.
func (p *Pool) Endpoint() string { return "pool:" + p.network }

// Len returns the number of readers.
func (p *Pool) Len() int { return len(p.readers) }

// States returns the circuit state of each reader keyed by endpoint.
func (p *Pool) States() map[string]string {
	out := make(map[string]string, len(p.readers))
	for i, r := range p.readers {
		out[r.Endpoint()] = p.breakers[i].State()
	}
	return out
}

// withFailover runs fn against readers until one answers. Contract-level
// errors are answers and end the loop without touching the breaker.
func withFailover[T any](ctx context.Context, p *Pool, op string, fn func(Reader) (T, error)) (T, error) {
	var (
		zero      T
		allErrors []error
	)

	for range len(p.readers) {
		idx := p.nextIndex()
		reader, cb := p.readers[idx], p.breakers[idx]

		if !cb.Allow() {
			allErrors = append(allErrors, fmt.Errorf("%s: %w", reader.Endpoint(), config.ErrCircuitOpen))
			continue
		}

		result, err := fn(reader)
		if err == nil {
			cb.RecordSuccess()
			return result, nil
		}

		if !config.IsTransient(err) {
			if errors.Is(err, config.ErrContractReverted) || errors.Is(err, config.ErrMalformedResponse) {
				cb.RecordSuccess()
			}
			return zero, err
		}

		cb.RecordFailure()
		allErrors = append(allErrors, err)

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		slog.Warn("reader failed, trying next",
			"network", p.network,
			"endpoint", reader.Endpoint(),
			"op", op,
			"circuitState", cb.State(),
			"retryAfter", config.GetRetryAfter(err),
			"error", err,
		)
	}

	return zero, config.NewTransientError(fmt.Errorf("%s %s: %w: %w",
		p.network, op, config.ErrAllProvidersFailed, errors.Join(allErrors...)))
}

func (p *Pool) TokenName(ctx context.Context, contract common.Address) (string, error) {
	return withFailover(ctx, p, "name", func(r Reader) (string, error) {
		return r.TokenName(ctx, contract)
	})
}

func (p *Pool) TokenSymbol(ctx context.Context, contract common.Address) (string, error) {
	return withFailover(ctx, p, "symbol", func(r Reader) (string, error) {
		return r.TokenSymbol(ctx, contract)
	})
}

func (p *Pool) TokenDecimals(ctx context.Context, contract common.Address) (uint8, error) {
	return withFailover(ctx, p, "decimals", func(r Reader) (uint8, error) {
		return r.TokenDecimals(ctx, contract)
	})
}

func (p *Pool) IsSemiFungible(ctx context.Context, contract common.Address) (bool, error) {
	return withFailover(ctx, p, "isStormBirdContract", func(r Reader) (bool, error) {
		return r.IsSemiFungible(ctx, contract)
	})
}

func (p *Pool) SupportsInterface(ctx context.Context, contract common.Address, id [4]byte) (bool, error) {
	return withFailover(ctx, p, "supportsInterface", func(r Reader) (bool, error) {
		return r.SupportsInterface(ctx, contract, id)
	})
}

func (p *Pool) FungibleBalance(ctx context.Context, contract, owner common.Address) (*big.Int, error) {
	return withFailover(ctx, p, "balanceOf", func(r Reader) (*big.Int, error) {
		return r.FungibleBalance(ctx, contract, owner)
	})
}

func (p *Pool) SemiFungibleBalance(ctx context.Context, contract, owner common.Address) ([]string, error) {
	return withFailover(ctx, p, "balanceOf", func(r Reader) ([]string, error) {
		return r.SemiFungibleBalance(ctx, contract, owner)
	})
}

func (p *Pool) NonFungibleTokens(ctx context.Context, contract, owner common.Address, limit int) ([]string, error) {
	return withFailover(ctx, p, "tokenOfOwnerByIndex", func(r Reader) ([]string, error) {
		return r.NonFungibleTokens(ctx, contract, owner, limit)
	})
}

func (p *Pool) BlockNumber(ctx context.Context) (uint64, error) {
	return withFailover(ctx, p, "blockNumber", func(r Reader) (uint64, error) {
		return r.BlockNumber(ctx)
	})
}
