package detect

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/tokenscout/internal/metrics"
	"github.com/Fantasim/tokenscout/internal/models"
)

// TransactedDetector adds the tokens a wallet has transferred.
type TransactedDetector struct {
	session *Session
	gate    Gate
}

// Run starts a pass for wallet in the background and reports whether it was
// accepted. A pass is dropped without any network call while another holds
// the gate or automatic detection is off.
func (d *TransactedDetector) Run(wallet string) bool {
	s := d.session
	kind := string(models.DetectionTransacted)

	if reason := s.skipReason(); reason != "" {
		metrics.PassesSkipped.WithLabelValues(s.network, kind, reason).Inc()
		slog.Debug("transacted detection skipped", "wallet", wallet, "reason", reason)
		return false
	}
	if !d.gate.TryAcquire() {
		metrics.PassesSkipped.WithLabelValues(s.network, kind, "in_flight").Inc()
		slog.Debug("transacted detection already running", "wallet", wallet)
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

func (d *TransactedDetector) pass(wallet string) {
	s := d.session
	start := time.Now()
	runID := s.startRun(models.DetectionTransacted)

	slog.Info("transacted detection started", "wallet", wallet, "network", s.network, "runID", runID)

	var fungible, nonFungible []string
	var lists errgroup.Group
	lists.Go(func() error {
		var err error
		fungible, err = s.deps.Lister.ListContractsInteracted(s.ctx, wallet, true)
		return err
	})
	lists.Go(func() error {
		var err error
		nonFungible, err = s.deps.Lister.ListContractsInteracted(s.ctx, wallet, false)
		return err
	})
	if err := lists.Wait(); err != nil {
		slog.Warn("transfer listing incomplete, continuing with partial results",
			"wallet", wallet,
			"network", s.network,
			"error", err,
		)
	}

	if s.stale(wallet) {
		slog.Info("transacted detection discarded for stale wallet", "wallet", wallet, "current", s.currentWallet())
		s.finishRun(models.DetectionTransacted, runID, runStale, 0, 0, time.Since(start).String())
		return
	}

	known, err := loadKnownSets(s.store)
	if err != nil {
		slog.Error("failed to load known contract sets", "wallet", wallet, "error", err)
		s.finishRun(models.DetectionTransacted, runID, runFailed, 0, 0, time.Since(start).String())
		return
	}

	candidates := filterCandidates(s.network, known.TransactedExclusions(), fungible, nonFungible)
	metrics.Candidates.WithLabelValues(s.network, string(models.DetectionTransacted)).Add(float64(len(candidates)))

	added := d.ingestAll(wallet, candidates)

	slog.Info("transacted detection finished",
		"wallet", wallet,
		"network", s.network,
		"listed", len(fungible)+len(nonFungible),
		"candidates", len(candidates),
		"added", added,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	s.finishRun(models.DetectionTransacted, runID, runCompleted, len(candidates), added, time.Since(start).String())
}

// ingestAll fetches and ingests candidates concurrently. It notifies once
// after the last ingestion, and once more if the batch outlives the notify
// timeout. The timeout does not cancel anything.
func (d *TransactedDetector) ingestAll(wallet string, candidates []models.ContractCandidate) int {
	s := d.session
	if len(candidates) == 0 {
		return 0
	}

	timer := time.AfterFunc(s.opts.NotifyTimeout, func() {
		slog.Debug("transacted batch notify timeout", "wallet", wallet, "pending", len(candidates))
		s.notifyTokensChanged("batch_timeout")
	})

	var added atomic.Int32
	var batch errgroup.Group
	batch.SetLimit(s.opts.MaxConcurrent)
	for _, c := range candidates {
		batch.Go(func() error {
			outcome := s.fetcher.Fetch(s.ctx, c.Address)
			if s.stale(wallet) {
				return nil
			}
			if s.ingestor.apply(c.Address, outcome) == ActionTokenAdded {
				added.Add(1)
			}
			return nil
		})
	}
	batch.Wait()

	timer.Stop()
	s.notifyTokensChanged("batch_complete")
	return int(added.Load())
}

// filterCandidates returns the lowercase union of lists minus excluded as
// candidates on network, in first-seen order.
func filterCandidates(network string, excluded models.ContractSet, lists ...[]string) []models.ContractCandidate {
	seen := make(map[string]struct{})
	var out []models.ContractCandidate
	for _, list := range lists {
		for _, addr := range list {
			c := models.ContractCandidate{Address: models.NormalizeAddress(addr), Network: network}
			if _, dup := seen[c.Key()]; dup || c.Address == "" || excluded.Contains(c.Address) {
				continue
			}
			seen[c.Key()] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
