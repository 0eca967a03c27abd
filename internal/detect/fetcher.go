package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/metrics"
	"github.com/Fantasim/tokenscout/internal/models"
)

type fieldKind int

const (
	fieldName fieldKind = iota
	fieldSymbol
	fieldBalance
	fieldDecimals
	fieldNone // classification needed no further field
)

func (k fieldKind) String() string {
	switch k {
	case fieldName:
		return "name"
	case fieldSymbol:
		return "symbol"
	case fieldBalance:
		return "balance"
	case fieldDecimals:
		return "decimals"
	}
	return "none"
}

// field is one sub-fetch result.
type field struct {
	kind     fieldKind
	text     string
	balance  []string
	decimals uint8
	standard models.TokenStandard
	err      error
}

// fetchState accumulates the fields that have arrived for one contract.
type fetchState struct {
	name, symbol *string
	balance      []string
	hasBalance   bool
	decimals     *uint8
	standard     models.TokenStandard
}

func (st *fetchState) apply(f field) {
	switch f.kind {
	case fieldName:
		st.name = &f.text
	case fieldSymbol:
		st.symbol = &f.text
	case fieldBalance:
		st.balance, st.hasBalance, st.standard = f.balance, true, f.standard
	case fieldDecimals:
		st.decimals, st.standard = &f.decimals, f.standard
	case fieldNone:
		st.standard = f.standard
	}
}

// Fetcher fetches name, symbol and the standard-specific field of a contract
// concurrently and merges them into one FetchOutcome.
type Fetcher struct {
	reader     ContractReader
	classifier *Classifier
	reach      Reachability
	assets     AssetRefresher
	owner      common.Address
	network    string
}

// NewFetcher creates a fetcher for contracts held by owner. assets may be nil.
func NewFetcher(reader ContractReader, classifier *Classifier, reach Reachability, assets AssetRefresher, owner, network string) *Fetcher {
	return &Fetcher{
		reader:     reader,
		classifier: classifier,
		reach:      reach,
		assets:     assets,
		owner:      common.HexToAddress(owner),
		network:    network,
	}
}

// Fetch returns exactly one outcome for contract: the completed record once
// every field its standard requires has arrived, or Failed on the first
// sub-fetch failure. Sub-fetches still running when Fetch returns finish in
// the background and are discarded.
func (f *Fetcher) Fetch(ctx context.Context, contract string) FetchOutcome {
	start := time.Now()
	contract = models.NormalizeAddress(contract)

	outcome := f.fetch(ctx, contract)

	metrics.FetchOutcomes.WithLabelValues(f.network, outcome.outcomeLabel()).Inc()
	metrics.FetchLatency.WithLabelValues(f.network).Observe(time.Since(start).Seconds())
	slog.Debug("contract fetched",
		"network", f.network,
		"contract", contract,
		"outcome", outcome.outcomeLabel(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return outcome
}

func (f *Fetcher) fetch(ctx context.Context, contract string) FetchOutcome {
	if f.assets != nil {
		f.assets.RefreshAsync(contract)
	}
	if !common.IsHexAddress(contract) {
		return Failed{}
	}
	addr := common.HexToAddress(contract)

	// Buffered so late senders never block after the outcome is decided.
	results := make(chan field, 3)

	go func() {
		name, err := f.reader.TokenName(ctx, addr)
		results <- field{kind: fieldName, text: name, err: err}
	}()
	go func() {
		symbol, err := f.reader.TokenSymbol(ctx, addr)
		results <- field{kind: fieldSymbol, text: symbol, err: err}
	}()
	go func() {
		results <- f.fetchByStandard(ctx, contract, addr)
	}()

	var st fetchState
	for range 3 {
		fl := <-results
		if fl.err != nil {
			slog.Debug("sub-fetch failed", "contract", contract, "field", fl.kind, "error", fl.err)
			return Failed{NetworkReachable: boolPtr(f.reach.IsReachable(ctx))}
		}
		st.apply(fl)
		if outcome := f.complete(ctx, &st); outcome != nil {
			return outcome
		}
	}

	// Native currency: every sub-fetch reported and nothing completed.
	return Failed{}
}

// fetchByStandard classifies the contract and fetches the field its
// standard requires.
func (f *Fetcher) fetchByStandard(ctx context.Context, contract string, addr common.Address) field {
	standard := f.classifier.Classify(ctx, contract)

	switch {
	case standard.IsNonFungible():
		items, err := f.balance(ctx, standard, addr)
		return field{kind: fieldBalance, balance: items, standard: standard, err: err}
	case standard.RequiresDecimals():
		decimals, err := f.reader.TokenDecimals(ctx, addr)
		return field{kind: fieldDecimals, decimals: decimals, standard: standard, err: err}
	}
	return field{kind: fieldNone, standard: standard}
}

func (f *Fetcher) balance(ctx context.Context, standard models.TokenStandard, addr common.Address) ([]string, error) {
	if standard == models.StandardERC875 {
		return f.reader.SemiFungibleBalance(ctx, addr, f.owner)
	}
	return f.reader.NonFungibleTokens(ctx, addr, f.owner, config.MaxNonFungibleItems)
}

// complete returns the outcome once the required fields are present, or nil.
func (f *Fetcher) complete(ctx context.Context, st *fetchState) FetchOutcome {
	if st.name == nil || st.symbol == nil {
		return nil
	}
	if !st.hasBalance && st.decimals == nil {
		return nil
	}

	if *st.symbol == "" {
		if f.reach.IsReachable(ctx) {
			return DelegateComplete{}
		}
		return Failed{NetworkReachable: boolPtr(false)}
	}

	if st.hasBalance {
		return NonFungibleComplete{
			Name:     *st.name,
			Symbol:   *st.symbol,
			Balance:  st.balance,
			Standard: st.standard,
		}
	}
	return FungibleComplete{Name: *st.name, Symbol: *st.symbol, Decimals: *st.decimals}
}
