package detect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/chain"
	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/metrics"
	"github.com/Fantasim/tokenscout/internal/models"
)

// Classifier determines the token standard of a contract.
//
// Probe order: ERC875 marker, ERC165 ERC721 interface, decimals(). The first
// positive answer wins. A probe that fails on the transport ends the
// sequence with StandardUnknown; probes the contract rejects count as a
// negative answer. Standards decided by the contract are cached.
type Classifier struct {
	reader  ContractReader
	cache   StandardCache
	network string
}

// NewClassifier creates a classifier. cache may be nil.
func NewClassifier(reader ContractReader, cache StandardCache, network string) *Classifier {
	return &Classifier{reader: reader, cache: cache, network: network}
}

// Classify never returns an error. Undeterminable contracts are Unknown.
func (c *Classifier) Classify(ctx context.Context, contract string) models.TokenStandard {
	contract = models.NormalizeAddress(contract)
	if contract == config.NativeCurrencyPlaceholder {
		return models.StandardNative
	}
	if !common.IsHexAddress(contract) {
		return models.StandardUnknown
	}

	if c.cache != nil {
		standard, ok, err := c.cache.CachedStandard(c.network, contract)
		if err != nil {
			slog.Warn("standard cache read failed", "contract", contract, "error", err)
		} else if ok {
			metrics.Classifications.WithLabelValues(c.network, string(standard), "cache").Inc()
			return standard
		}
	}

	standard, decided := c.probe(ctx, common.HexToAddress(contract))

	slog.Debug("contract classified",
		"network", c.network,
		"contract", contract,
		"standard", standard,
		"decided", decided,
	)
	metrics.Classifications.WithLabelValues(c.network, string(standard), "probe").Inc()

	if decided && c.cache != nil {
		if err := c.cache.CacheStandard(c.network, contract, standard); err != nil {
			slog.Warn("standard cache write failed", "contract", contract, "error", err)
		}
	}
	return standard
}

// probe returns the standard and whether the contract itself decided it.
func (c *Classifier) probe(ctx context.Context, addr common.Address) (models.TokenStandard, bool) {
	semi, err := c.reader.IsSemiFungible(ctx, addr)
	if err != nil && !contractAnswered(err) {
		return models.StandardUnknown, false
	}
	if err == nil && semi {
		return models.StandardERC875, true
	}

	nft, err := c.reader.SupportsInterface(ctx, addr, chain.InterfaceERC721)
	if err != nil && !contractAnswered(err) {
		return models.StandardUnknown, false
	}
	if err == nil && nft {
		return models.StandardERC721, true
	}

	_, err = c.reader.TokenDecimals(ctx, addr)
	switch {
	case err == nil:
		return models.StandardERC20, true
	case contractAnswered(err):
		return models.StandardUnknown, true
	}
	return models.StandardUnknown, false
}

// contractAnswered reports whether err came from the contract rather than
// the transport.
func contractAnswered(err error) bool {
	return errors.Is(err, config.ErrContractReverted) || errors.Is(err, config.ErrMalformedResponse)
}
