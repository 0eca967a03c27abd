package detect

import (
	"log/slog"

	"github.com/Fantasim/tokenscout/internal/metrics"
	"github.com/Fantasim/tokenscout/internal/models"
)

// IngestAction is the store mutation chosen for an outcome.
type IngestAction string

const (
	ActionTokenAdded    IngestAction = "token_added"
	ActionDelegateAdded IngestAction = "delegate_added"
	ActionMarkedDead    IngestAction = "marked_dead"
	ActionIgnored       IngestAction = "ignored"
	ActionStoreError    IngestAction = "store_error"
)

// Ingestor applies fetch outcomes to the token store.
type Ingestor struct {
	store   TokenStore
	network string
	notify  func(reason string)
}

// NewIngestor creates an ingestor. notify is called after every Ingest.
func NewIngestor(store TokenStore, network string, notify func(reason string)) *Ingestor {
	return &Ingestor{store: store, network: network, notify: notify}
}

// Ingest records the outcome for contract and notifies on every branch.
func (in *Ingestor) Ingest(contract string, outcome FetchOutcome) IngestAction {
	action := in.apply(contract, outcome)
	if in.notify != nil {
		in.notify("ingested")
	}
	return action
}

// apply records the outcome without notifying. Batches use it and notify
// once for the whole batch.
func (in *Ingestor) apply(contract string, outcome FetchOutcome) IngestAction {
	contract = models.NormalizeAddress(contract)

	var (
		action = ActionIgnored
		err    error
	)

	switch o := outcome.(type) {
	case NonFungibleComplete:
		action = ActionTokenAdded
		err = in.store.AddToken(models.Token{
			Contract: contract,
			Network:  in.network,
			Name:     o.Name,
			Symbol:   o.Symbol,
			Decimals: 0,
			Standard: o.Standard,
			Value:    "0",
			Balance:  o.Balance,
		})
	case FungibleComplete:
		action = ActionTokenAdded
		err = in.store.AddToken(models.Token{
			Contract: contract,
			Network:  in.network,
			Name:     o.Name,
			Symbol:   o.Symbol,
			Decimals: o.Decimals,
			Standard: models.StandardERC20,
			Value:    "0",
		})
	case DelegateComplete:
		action = ActionDelegateAdded
		err = in.store.AddDelegate(contract)
	case Failed:
		// Offline failures are not recorded so the contract is retried. A
		// contract already in the token list keeps its record.
		if !o.Reachable() {
			break
		}
		var listed models.ContractSet
		if listed, err = in.store.EnabledContracts(); err == nil && listed.Contains(contract) {
			slog.Warn("fetch failed for listed token, keeping it",
				"network", in.network,
				"contract", contract,
			)
			break
		}
		if err == nil {
			action = ActionMarkedDead
			err = in.store.AddDeletedContract(contract)
		}
	}

	if err != nil {
		slog.Error("token store update failed",
			"network", in.network,
			"contract", contract,
			"action", action,
			"error", err,
		)
		action = ActionStoreError
	}

	metrics.IngestActions.WithLabelValues(in.network, string(action)).Inc()
	slog.Debug("outcome ingested",
		"network", in.network,
		"contract", contract,
		"outcome", outcome.outcomeLabel(),
		"action", action,
	)
	return action
}
