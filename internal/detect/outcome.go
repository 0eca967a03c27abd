package detect

import "github.com/Fantasim/tokenscout/internal/models"

// FetchOutcome is the single terminal result of fetching one contract.
// It is one of NonFungibleComplete, FungibleComplete, DelegateComplete or
// Failed.
type FetchOutcome interface {
	outcomeLabel() string
}

// NonFungibleComplete carries an ERC875 or ERC721 contract with the wallet's
// balance items.
type NonFungibleComplete struct {
	Name     string
	Symbol   string
	Balance  []string
	Standard models.TokenStandard
}

// FungibleComplete carries an ERC20 contract.
type FungibleComplete struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// DelegateComplete marks a reachable contract that is not a token.
type DelegateComplete struct{}

// Failed reports that a field could not be fetched. NetworkReachable is the
// reachability sampled at failure time; nil when it was never sampled.
type Failed struct {
	NetworkReachable *bool
}

func (NonFungibleComplete) outcomeLabel() string { return "non_fungible" }
func (FungibleComplete) outcomeLabel() string    { return "fungible" }
func (DelegateComplete) outcomeLabel() string    { return "delegate" }

func (f Failed) outcomeLabel() string {
	switch {
	case f.NetworkReachable == nil:
		return "failed_unknown"
	case *f.NetworkReachable:
		return "failed_reachable"
	}
	return "failed_offline"
}

// Reachable reports whether the failure was observed with the network up.
func (f Failed) Reachable() bool {
	return f.NetworkReachable != nil && *f.NetworkReachable
}

func boolPtr(b bool) *bool { return &b }

// OutcomeLabel names an outcome for logs, metrics and API responses.
func OutcomeLabel(o FetchOutcome) string {
	if o == nil {
		return "none"
	}
	return o.outcomeLabel()
}
