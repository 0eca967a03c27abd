package detect

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/tokenscout/internal/metrics"
	"github.com/Fantasim/tokenscout/internal/models"
)

// PartnerDetector adds curated contracts in which the wallet holds a balance.
type PartnerDetector struct {
	session   *Session
	contracts []string
	gate      Gate
}

// Run starts a pass for wallet in the background and reports whether it was
// accepted, under the same rules as TransactedDetector.Run.
func (d *PartnerDetector) Run(wallet string) bool {
	s := d.session
	kind := string(models.DetectionPartner)

	if reason := s.skipReason(); reason != "" {
		metrics.PassesSkipped.WithLabelValues(s.network, kind, reason).Inc()
		slog.Debug("partner detection skipped", "wallet", wallet, "reason", reason)
		return false
	}
	if !d.gate.TryAcquire() {
		metrics.PassesSkipped.WithLabelValues(s.network, kind, "in_flight").Inc()
		slog.Debug("partner detection already running", "wallet", wallet)
		return false
	}

	metrics.PassesStarted.WithLabelValues(s.network, kind).Inc()
	metrics.GatesInFlight.WithLabelValues(s.network, kind).Inc()
	s.passes.Add(1)

	go func() {
		defer func() {
			d.gate.Release()
			metrics.GatesInFlight.WithLabelValues(s.network, kind).Dec()
			s.passes.Done()
		}()
		d.pass(models.NormalizeAddress(wallet))
	}()
	return true
}

func (d *PartnerDetector) pass(wallet string) {
	s := d.session
	start := time.Now()
	runID := s.startRun(models.DetectionPartner)

	known, err := loadKnownSets(s.store)
	if err != nil {
		slog.Error("failed to load known contract sets", "wallet", wallet, "error", err)
		s.finishRun(models.DetectionPartner, runID, runFailed, 0, 0, time.Since(start).String())
		return
	}

	// Delegate contracts are not excluded here, unlike transacted detection.
	survivors := filterCandidates(s.network, known.PartnerExclusions(), d.contracts)
	metrics.Candidates.WithLabelValues(s.network, string(models.DetectionPartner)).Add(float64(len(survivors)))

	var (
		processed atomic.Int32
		added     atomic.Int32
		ingested  atomic.Int32
		batch     errgroup.Group
	)
	batch.SetLimit(s.opts.MaxConcurrent)
	for _, c := range survivors {
		contract := c.Address
		batch.Go(func() error {
			defer processed.Add(1)

			if !common.IsHexAddress(contract) {
				slog.Debug("partner contract unparsable", "contract", contract)
				return nil
			}
			if !d.holdsBalance(wallet, contract) || s.stale(wallet) {
				return nil
			}

			outcome := s.fetcher.Fetch(s.ctx, contract)
			if s.stale(wallet) {
				return nil
			}
			ingested.Add(1)
			if s.ingestor.apply(contract, outcome) == ActionTokenAdded {
				added.Add(1)
			}
			return nil
		})
	}
	batch.Wait()

	if ingested.Load() > 0 {
		s.notifyTokensChanged("partner_complete")
	}

	slog.Info("partner detection finished",
		"wallet", wallet,
		"network", s.network,
		"curated", len(d.contracts),
		"survivors", len(survivors),
		"processed", processed.Load(),
		"added", added.Load(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	s.finishRun(models.DetectionPartner, runID, runCompleted, len(survivors), int(added.Load()), time.Since(start).String())
}

// holdsBalance classifies contract and checks the wallet's balance in it.
// ERC721 and native contracts are not checked and never qualify.
func (d *PartnerDetector) holdsBalance(wallet, contract string) bool {
	s := d.session
	addr, owner := common.HexToAddress(contract), common.HexToAddress(wallet)

	switch standard := s.classifier.Classify(s.ctx, contract); standard {
	case models.StandardERC875:
		items, err := s.deps.Reader.SemiFungibleBalance(s.ctx, addr, owner)
		if err != nil {
			slog.Debug("partner balance failed", "contract", contract, "standard", standard, "error", err)
			return false
		}
		return len(items) > 0
	case models.StandardERC20:
		balance, err := s.deps.Reader.FungibleBalance(s.ctx, addr, owner)
		if err != nil {
			slog.Debug("partner balance failed", "contract", contract, "standard", standard, "error", err)
			return false
		}
		return balance.Sign() > 0
	default:
		return false
	}
}
