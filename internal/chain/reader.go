package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reader reads token contract state from one EVM network.
//
// Errors wrapping config.ErrContractReverted or config.ErrMalformedResponse
// are answers from the contract itself. Transport problems are returned as
// config.TransientError.
type Reader interface {
	// Endpoint names the node or pool behind the reader.
	Endpoint() string

	TokenName(ctx context.Context, contract common.Address) (string, error)
	TokenSymbol(ctx context.Context, contract common.Address) (string, error)
	TokenDecimals(ctx context.Context, contract common.Address) (uint8, error)

	// IsSemiFungible calls the ERC875 isStormBirdContract() marker.
	IsSemiFungible(ctx context.Context, contract common.Address) (bool, error)
	// SupportsInterface performs an ERC165 query.
	SupportsInterface(ctx context.Context, contract common.Address, id [4]byte) (bool, error)

	FungibleBalance(ctx context.Context, contract, owner common.Address) (*big.Int, error)
	// SemiFungibleBalance returns the owner's non-zero ERC875 slots as hex.
	SemiFungibleBalance(ctx context.Context, contract, owner common.Address) ([]string, error)
	// NonFungibleTokens returns up to limit ERC721 token IDs held by owner.
	NonFungibleTokens(ctx context.Context, contract, owner common.Address, limit int) ([]string, error)

	BlockNumber(ctx context.Context) (uint64, error)
}
