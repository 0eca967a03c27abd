package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
	"github.com/Fantasim/tokenscout/internal/models"
)

// Session owns detection for one wallet on one network: its gates, its
// store view and the fetch pipeline bound to the wallet.
type Session struct {
	wallet  string
	network string
	store   TokenStore
	deps    Deps
	opts    Options

	classifier *Classifier
	fetcher    *Fetcher
	ingestor   *Ingestor
	transacted *TransactedDetector
	partner    *PartnerDetector

	// currentWallet returns the wallet the owner considers active. Results of
	// a pass started for another wallet are discarded.
	currentWallet func() string

	ctx    context.Context
	cancel context.CancelFunc
	passes sync.WaitGroup
}

// Status is a snapshot of a session.
type Status struct {
	Wallet            string `json:"wallet"`
	Network           string `json:"network"`
	TransactedRunning bool   `json:"transactedRunning"`
	PartnerRunning    bool   `json:"partnerRunning"`
	AutoFetchDisabled bool   `json:"autoFetchDisabled"`
}

// NewSession creates a session. The session's background work stops when
// ctx is cancelled or Close is called.
func NewSession(ctx context.Context, wallet, network string, store TokenStore, deps Deps, opts Options) *Session {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = config.TransactedNotifyTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = config.MaxConcurrentFetches
	}

	s := &Session{
		wallet:  models.NormalizeAddress(wallet),
		network: network,
		store:   store,
		deps:    deps,
		opts:    opts,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.currentWallet = func() string { return s.wallet }

	s.classifier = NewClassifier(deps.Reader, deps.Standards, network)
	s.fetcher = NewFetcher(deps.Reader, s.classifier, deps.Reachability, deps.Assets, s.wallet, network)
	s.ingestor = NewIngestor(store, network, s.notifyTokensChanged)
	s.transacted = &TransactedDetector{session: s}
	s.partner = &PartnerDetector{session: s, contracts: deps.Partners}

	slog.Info("detection session created", "wallet", s.wallet, "network", network)
	return s
}

// Wallet returns the session wallet.
func (s *Session) Wallet() string { return s.wallet }

// Network returns the session network.
func (s *Session) Network() string { return s.network }

// Store returns the session's token store.
func (s *Session) Store() TokenStore { return s.store }

// StartAutoDetection starts the transacted and partner passes. Each pass is
// dropped if its gate is held or automatic detection is off. It returns
// whether each pass was started.
func (s *Session) StartAutoDetection() (transacted, partner bool) {
	transacted = s.transacted.Run(s.wallet)
	partner = s.partner.Run(s.wallet)
	return transacted, partner
}

// AddImportedToken takes contract out of the hidden set, fetches it and
// ingests the outcome.
func (s *Session) AddImportedToken(ctx context.Context, contract string) (FetchOutcome, IngestAction, error) {
	if !common.IsHexAddress(contract) {
		return nil, "", fmt.Errorf("%w: %q", config.ErrInvalidAddress, contract)
	}
	contract = models.NormalizeAddress(contract)

	if err := s.store.RemoveHidden(contract); err != nil {
		return nil, "", err
	}

	outcome := s.fetcher.Fetch(ctx, contract)
	action := s.ingestor.Ingest(contract, outcome)

	slog.Info("token imported",
		"wallet", s.wallet,
		"network", s.network,
		"contract", contract,
		"action", action,
	)
	return outcome, action, nil
}

// DeleteToken removes a token from the list and records it as deleted so
// detection does not add it back.
func (s *Session) DeleteToken(contract string) error {
	if err := s.store.DeleteToken(contract); err != nil {
		return err
	}
	slog.Info("token deleted", "wallet", s.wallet, "network", s.network, "contract", contract)
	s.notifyTokensChanged("deleted")
	return nil
}

// HideToken hides a token. Hidden contracts are skipped by detection until
// imported again.
func (s *Session) HideToken(contract string) error {
	if err := s.store.HideContract(contract); err != nil {
		return err
	}
	slog.Info("token hidden", "wallet", s.wallet, "network", s.network, "contract", contract)
	s.notifyTokensChanged("hidden")
	return nil
}

// AddCustomToken adds a token record supplied by the user as is.
func (s *Session) AddCustomToken(token models.Token) error {
	if !common.IsHexAddress(token.Contract) {
		return fmt.Errorf("%w: %q", config.ErrInvalidAddress, token.Contract)
	}
	if !token.Standard.Valid() || token.Standard == models.StandardUnknown {
		return fmt.Errorf("%w: standard %q", config.ErrInvalidToken, token.Standard)
	}
	if token.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", config.ErrInvalidToken)
	}
	if token.Standard.IsNonFungible() {
		token.Decimals = 0
	}
	token.Network = s.network

	if err := s.store.AddToken(token); err != nil {
		return err
	}
	slog.Info("custom token added", "wallet", s.wallet, "network", s.network, "contract", token.Contract)
	s.notifyTokensChanged("custom_added")
	return nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	return Status{
		Wallet:            s.wallet,
		Network:           s.network,
		TransactedRunning: s.transacted.gate.InFlight(),
		PartnerRunning:    s.partner.gate.InFlight(),
		AutoFetchDisabled: s.opts.AutoFetchDisabled,
	}
}

// Busy reports whether either pass holds its gate.
func (s *Session) Busy() bool {
	return s.transacted.gate.InFlight() || s.partner.gate.InFlight()
}

// Wait blocks until every started pass has released its gate.
func (s *Session) Wait() {
	s.passes.Wait()
}

// Close cancels outstanding background work.
func (s *Session) Close() {
	s.cancel()
}

// skipReason returns why automatic passes are not allowed, or "".
func (s *Session) skipReason() string {
	switch {
	case s.opts.AutoFetchDisabled:
		return "disabled"
	case s.opts.TestHarness:
		return "test_harness"
	}
	return ""
}

func (s *Session) stale(wallet string) bool {
	return s.currentWallet() != wallet
}

func (s *Session) notifyTokensChanged(reason string) {
	if s.deps.Hub == nil {
		return
	}
	s.deps.Hub.Broadcast(Event{
		Type: EventTokensChanged,
		Data: TokensChangedData{Wallet: s.wallet, Network: s.network, Reason: reason},
	})
}

// startRun records a pass and announces it.
func (s *Session) startRun(kind models.DetectionKind) string {
	var runID string
	if s.deps.Runs != nil {
		id, err := s.deps.Runs.InsertDetectionRun(s.wallet, s.network, kind)
		if err != nil {
			slog.Warn("failed to record detection run", "kind", kind, "error", err)
		}
		runID = id
	}
	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(Event{
			Type: EventDetectionStarted,
			Data: DetectionStartedData{Wallet: s.wallet, Network: s.network, Kind: string(kind), RunID: runID},
		})
	}
	return runID
}

// finishRun closes the run record and announces the result.
func (s *Session) finishRun(kind models.DetectionKind, runID, status string, candidates, added int, duration string) {
	if s.deps.Runs != nil && runID != "" {
		if err := s.deps.Runs.FinishDetectionRun(runID, status, candidates, added); err != nil {
			slog.Warn("failed to finish detection run", "runID", runID, "error", err)
		}
	}
	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(Event{
			Type: EventDetectionFinished,
			Data: DetectionFinishedData{
				Wallet:     s.wallet,
				Network:    s.network,
				Kind:       string(kind),
				RunID:      runID,
				Status:     status,
				Candidates: candidates,
				Added:      added,
				Duration:   duration,
			},
		})
	}
}

// Run statuses reuse the store's vocabulary.
const (
	runCompleted = db.RunStatusCompleted
	runFailed    = db.RunStatusFailed
	runStale     = "stale"
)
