package models

import (
	"sort"
	"strings"
)

// TokenStandard is the on-chain standard a contract implements.
type TokenStandard string

const (
	StandardNative  TokenStandard = "native"
	StandardERC20   TokenStandard = "erc20"
	StandardERC875  TokenStandard = "erc875"
	StandardERC721  TokenStandard = "erc721"
	StandardUnknown TokenStandard = "unknown" // delegate or undeterminable
)

// IsNonFungible reports whether balances of this standard are itemized
// (semi-fungible ERC875 and non-fungible ERC721).
func (s TokenStandard) IsNonFungible() bool {
	return s == StandardERC875 || s == StandardERC721
}

// RequiresDecimals reports whether completing a fetch for this standard
// needs decimals. Unknown contracts are probed like fungible ones.
func (s TokenStandard) RequiresDecimals() bool {
	return s == StandardERC20 || s == StandardUnknown
}

// Valid reports whether s is one of the known standards.
func (s TokenStandard) Valid() bool {
	switch s {
	case StandardNative, StandardERC20, StandardERC875, StandardERC721, StandardUnknown:
		return true
	}
	return false
}

// Token is a token record in a wallet's token list.
type Token struct {
	Contract string        `json:"contract"`
	Network  string        `json:"network"`
	Name     string        `json:"name"`
	Symbol   string        `json:"symbol"`
	Decimals uint8         `json:"decimals"`
	Standard TokenStandard `json:"standard"`
	Value    string        `json:"value"`
	Balance  []string      `json:"balance,omitempty"`
	AddedAt  string        `json:"addedAt,omitempty"`
}

// ContractCandidate is a contract produced by a detector and consumed once.
type ContractCandidate struct {
	Address string
	Network string
}

// Key returns the identity of the candidate: network plus lowercase address.
func (c ContractCandidate) Key() string {
	return c.Network + ":" + NormalizeAddress(c.Address)
}

// NormalizeAddress lowercases and trims a contract address for set membership.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ContractSet is a set of lowercase contract addresses.
type ContractSet map[string]struct{}

// NewContractSet builds a set from addresses, normalizing each one.
func NewContractSet(addrs ...string) ContractSet {
	s := make(ContractSet, len(addrs))
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts an address.
func (s ContractSet) Add(addr string) {
	s[NormalizeAddress(addr)] = struct{}{}
}

// Contains reports whether addr is in the set, case-insensitively.
func (s ContractSet) Contains(addr string) bool {
	_, ok := s[NormalizeAddress(addr)]
	return ok
}

// Union returns a new set holding every address of s and others.
func (s ContractSet) Union(others ...ContractSet) ContractSet {
	out := make(ContractSet, len(s))
	for a := range s {
		out[a] = struct{}{}
	}
	for _, o := range others {
		for a := range o {
			out[a] = struct{}{}
		}
	}
	return out
}

// Sorted returns the addresses in lexical order.
func (s ContractSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// KnownContractSets are the contract sets a detector filters candidates
// against. A contract is in at most one of AlreadyAdded, Deleted and Hidden;
// Delegate is orthogonal to them.
type KnownContractSets struct {
	AlreadyAdded ContractSet
	Deleted      ContractSet
	Hidden       ContractSet
	Delegate     ContractSet
}

// TransactedExclusions is AlreadyAdded ∪ Deleted ∪ Hidden ∪ Delegate.
func (k KnownContractSets) TransactedExclusions() ContractSet {
	return k.AlreadyAdded.Union(k.Deleted, k.Hidden, k.Delegate)
}

// PartnerExclusions is AlreadyAdded ∪ Deleted ∪ Hidden. Delegate contracts
// are not excluded from partner detection.
func (k KnownContractSets) PartnerExclusions() ContractSet {
	return k.AlreadyAdded.Union(k.Deleted, k.Hidden)
}

// DetectionKind names a detector.
type DetectionKind string

const (
	DetectionTransacted DetectionKind = "transacted"
	DetectionPartner    DetectionKind = "partner"
)

// DetectionRun records one detection pass.
type DetectionRun struct {
	ID         string        `json:"id"`
	Wallet     string        `json:"wallet"`
	Network    string        `json:"network"`
	Kind       DetectionKind `json:"kind"`
	Candidates int           `json:"candidates"`
	Added      int           `json:"added"`
	Status     string        `json:"status"`
	StartedAt  string        `json:"startedAt"`
	FinishedAt string        `json:"finishedAt,omitempty"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains execution metadata.
type APIMeta struct {
	Total         int64 `json:"total,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
