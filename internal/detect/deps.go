package detect

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/models"
)

// TokenStore is the token list and contract sets of one wallet on one
// network. Each call is atomic; concurrent calls are allowed.
type TokenStore interface {
	EnabledContracts() (models.ContractSet, error)
	DeletedContracts() (models.ContractSet, error)
	HiddenContracts() (models.ContractSet, error)
	DelegateContracts() (models.ContractSet, error)

	AddToken(token models.Token) error
	AddDelegate(contract string) error
	AddDeletedContract(contract string) error
	RemoveHidden(contract string) error
	HideContract(contract string) error
	DeleteToken(contract string) error
	ListTokens() ([]models.Token, error)
}

// StoreFactory returns the store of wallet on network.
type StoreFactory func(wallet, network string) TokenStore

// StandardCache remembers classification results per network.
type StandardCache interface {
	CachedStandard(network, contract string) (models.TokenStandard, bool, error)
	CacheStandard(network, contract string, standard models.TokenStandard) error
}

// ContractReader reads token contract state. chain.Pool implements it.
type ContractReader interface {
	TokenName(ctx context.Context, contract common.Address) (string, error)
	TokenSymbol(ctx context.Context, contract common.Address) (string, error)
	TokenDecimals(ctx context.Context, contract common.Address) (uint8, error)
	IsSemiFungible(ctx context.Context, contract common.Address) (bool, error)
	SupportsInterface(ctx context.Context, contract common.Address, id [4]byte) (bool, error)
	FungibleBalance(ctx context.Context, contract, owner common.Address) (*big.Int, error)
	SemiFungibleBalance(ctx context.Context, contract, owner common.Address) ([]string, error)
	NonFungibleTokens(ctx context.Context, contract, owner common.Address, limit int) ([]string, error)
}

// InteractionLister lists contracts a wallet transferred tokens through.
type InteractionLister interface {
	ListContractsInteracted(ctx context.Context, wallet string, fungible bool) ([]string, error)
}

// Reachability reports whether the network currently answers.
type Reachability interface {
	IsReachable(ctx context.Context) bool
}

// AssetRefresher refreshes the asset definition of a contract in the
// background.
type AssetRefresher interface {
	RefreshAsync(contract string)
}

// RunRecorder persists detection pass history.
type RunRecorder interface {
	InsertDetectionRun(wallet, network string, kind models.DetectionKind) (string, error)
	FinishDetectionRun(id, status string, candidates, added int) error
}

// Deps are the collaborators shared by every session of one network.
type Deps struct {
	Reader       ContractReader
	Lister       InteractionLister
	Reachability Reachability
	Standards    StandardCache
	Assets       AssetRefresher // optional
	Runs         RunRecorder    // optional
	Hub          *Hub
	Partners     []string
}

// Options are injected switches. TestHarness stands in for running under a
// test runner and disables automatic detection the same way.
type Options struct {
	AutoFetchDisabled bool
	TestHarness       bool
	NotifyTimeout     time.Duration
	MaxConcurrent     int
}

// loadKnownSets reads the four contract sets.
func loadKnownSets(store TokenStore) (models.KnownContractSets, error) {
	var (
		known models.KnownContractSets
		err   error
	)
	if known.AlreadyAdded, err = store.EnabledContracts(); err != nil {
		return known, err
	}
	if known.Deleted, err = store.DeletedContracts(); err != nil {
		return known, err
	}
	if known.Hidden, err = store.HiddenContracts(); err != nil {
		return known, err
	}
	if known.Delegate, err = store.DelegateContracts(); err != nil {
		return known, err
	}
	return known, nil
}
