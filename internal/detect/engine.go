package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/models"
)

// Engine owns the current session of one network. Starting detection for a
// different wallet replaces the session, which gives the new wallet fresh
// gates and makes passes of the previous wallet stale. A replaced session
// with passes in flight is kept and reused if its wallet comes back, so a
// wallet never has two sets of gates at once.
type Engine struct {
	ctx     context.Context
	network string
	stores  StoreFactory
	deps    Deps
	opts    Options

	mu      sync.Mutex
	current *Session
	busy    map[string]*Session
}

// NewEngine creates an engine for network.
func NewEngine(ctx context.Context, network string, stores StoreFactory, deps Deps, opts Options) *Engine {
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	slog.Info("detection engine created",
		"network", network,
		"partners", len(deps.Partners),
		"autoFetchDisabled", opts.AutoFetchDisabled,
	)
	return &Engine{
		ctx:     ctx,
		network: network,
		stores:  stores,
		deps:    deps,
		opts:    opts,
		busy:    make(map[string]*Session),
	}
}

// Network returns the engine network.
func (e *Engine) Network() string { return e.network }

// Hub returns the event hub shared by all sessions.
func (e *Engine) Hub() *Hub { return e.deps.Hub }

// Session returns the session of wallet, creating it and making it current
// if wallet is not the current wallet.
func (e *Engine) Session(wallet string) (*Session, error) {
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidAddress, wallet)
	}
	wallet = models.NormalizeAddress(wallet)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.current.wallet == wallet {
		return e.current, nil
	}

	if e.current != nil {
		slog.Info("switching wallet session", "from", e.current.wallet, "to", wallet, "network", e.network)
		if e.current.Busy() {
			e.busy[e.current.wallet] = e.current
		}
	}
	for w, s := range e.busy {
		if !s.Busy() {
			delete(e.busy, w)
		}
	}

	if s, ok := e.busy[wallet]; ok {
		delete(e.busy, wallet)
		slog.Info("resuming wallet session with passes in flight", "wallet", wallet, "network", e.network)
		e.current = s
		return s, nil
	}

	s := NewSession(e.ctx, wallet, e.network, e.stores(wallet, e.network), e.deps, e.opts)
	s.currentWallet = e.CurrentWallet
	e.current = s
	return s, nil
}

// Current returns the current session or nil.
func (e *Engine) Current() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CurrentWallet returns the wallet of the current session or "".
func (e *Engine) CurrentWallet() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return ""
	}
	return e.current.wallet
}

// StartAutoDetection makes wallet current and starts both detection passes.
func (e *Engine) StartAutoDetection(wallet string) (*Session, error) {
	s, err := e.Session(wallet)
	if err != nil {
		return nil, err
	}
	transacted, partner := s.StartAutoDetection()
	slog.Info("auto detection requested",
		"wallet", s.wallet,
		"network", e.network,
		"transactedStarted", transacted,
		"partnerStarted", partner,
	)
	return s, nil
}

// AutoFetchDisabled reports whether automatic passes are off.
func (e *Engine) AutoFetchDisabled() bool {
	return e.opts.AutoFetchDisabled || e.opts.TestHarness
}
