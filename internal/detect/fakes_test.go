package detect

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/models"
)

const (
	testWallet  = "0x1111111111111111111111111111111111111111"
	otherWallet = "0x2222222222222222222222222222222222222222"
	contractAAA = "0x0000000000000000000000000000000000000aaa"
	contractBBB = "0x0000000000000000000000000000000000000bbb"
	contractCCC = "0x0000000000000000000000000000000000000ccc"
	contractDDD = "0x0000000000000000000000000000000000000ddd"
	contractEEE = "0x0000000000000000000000000000000000000eee"
)

var errReverted = fmt.Errorf("%w: execution reverted", config.ErrContractReverted)

func errTransport() error {
	return config.NewTransientError(fmt.Errorf("dial tcp: %w", config.ErrProviderUnavailable))
}

// memStore is an in-memory TokenStore that records every mutation.
type memStore struct {
	mu        sync.Mutex
	tokens    map[string]models.Token
	deleted   models.ContractSet
	hidden    models.ContractSet
	delegates models.ContractSet
	mutations []string
}

func newMemStore() *memStore {
	return &memStore{
		tokens:    make(map[string]models.Token),
		deleted:   models.NewContractSet(),
		hidden:    models.NewContractSet(),
		delegates: models.NewContractSet(),
	}
}

func (m *memStore) record(op, contract string) {
	m.mutations = append(m.mutations, op+":"+models.NormalizeAddress(contract))
}

func (m *memStore) copySet(s models.ContractSet) models.ContractSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.Union()
}

func (m *memStore) EnabledContracts() (models.ContractSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := models.NewContractSet()
	for c := range m.tokens {
		out.Add(c)
	}
	return out, nil
}

func (m *memStore) DeletedContracts() (models.ContractSet, error)  { return m.copySet(m.deleted), nil }
func (m *memStore) HiddenContracts() (models.ContractSet, error)   { return m.copySet(m.hidden), nil }
func (m *memStore) DelegateContracts() (models.ContractSet, error) { return m.copySet(m.delegates), nil }

func (m *memStore) AddToken(t models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := models.NormalizeAddress(t.Contract)
	t.Contract = c
	m.tokens[c] = t
	delete(m.deleted, c)
	delete(m.hidden, c)
	m.record("addToken", c)
	return nil
}

func (m *memStore) AddDelegate(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegates.Add(c)
	m.record("addDelegate", c)
	return nil
}

func (m *memStore) AddDeletedContract(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c = models.NormalizeAddress(c)
	delete(m.tokens, c)
	delete(m.hidden, c)
	m.deleted.Add(c)
	m.record("addDeletedContract", c)
	return nil
}

func (m *memStore) RemoveHidden(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hidden, models.NormalizeAddress(c))
	m.record("removeHidden", c)
	return nil
}

func (m *memStore) HideContract(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c = models.NormalizeAddress(c)
	delete(m.tokens, c)
	delete(m.deleted, c)
	m.hidden.Add(c)
	m.record("hideContract", c)
	return nil
}

func (m *memStore) DeleteToken(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c = models.NormalizeAddress(c)
	if _, ok := m.tokens[c]; !ok {
		return config.ErrTokenNotFound
	}
	delete(m.tokens, c)
	delete(m.hidden, c)
	m.deleted.Add(c)
	m.record("deleteToken", c)
	return nil
}

func (m *memStore) ListTokens() ([]models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) Mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.mutations...)
}

func (m *memStore) Token(c string) (models.Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[models.NormalizeAddress(c)]
	return t, ok
}

// fakeContract describes how the fake chain answers for one contract.
type fakeContract struct {
	name, symbol string
	decimals     uint8
	semiFungible bool
	nonFungible  bool
	notToken     bool // decimals() reverts
	balance      *big.Int
	items        []string
	nameErr      error
	symbolErr    error
	decimalsErr  error
	balanceErr   error
	delay        time.Duration
}

// fakeReader serves fakeContracts and counts calls per contract.
type fakeReader struct {
	mu        sync.Mutex
	contracts map[string]fakeContract
	calls     map[string]int
}

func newFakeReader(contracts map[string]fakeContract) *fakeReader {
	return &fakeReader{contracts: contracts, calls: make(map[string]int)}
}

func (r *fakeReader) lookup(ctx context.Context, addr common.Address) (fakeContract, error) {
	key := models.NormalizeAddress(addr.Hex())
	r.mu.Lock()
	r.calls[key]++
	c, ok := r.contracts[key]
	r.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return c, ctx.Err()
		}
	}
	if !ok {
		return c, errReverted
	}
	return c, nil
}

func (r *fakeReader) Calls(contract string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[models.NormalizeAddress(contract)]
}

func (r *fakeReader) TokenName(ctx context.Context, addr common.Address) (string, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return "", err
	}
	return c.name, c.nameErr
}

func (r *fakeReader) TokenSymbol(ctx context.Context, addr common.Address) (string, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return "", err
	}
	return c.symbol, c.symbolErr
}

func (r *fakeReader) TokenDecimals(ctx context.Context, addr common.Address) (uint8, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return 0, err
	}
	if c.notToken || c.semiFungible || c.nonFungible {
		return 0, errReverted
	}
	return c.decimals, c.decimalsErr
}

func (r *fakeReader) IsSemiFungible(ctx context.Context, addr common.Address) (bool, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return false, err
	}
	if !c.semiFungible {
		return false, errReverted
	}
	return true, nil
}

func (r *fakeReader) SupportsInterface(ctx context.Context, addr common.Address, id [4]byte) (bool, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return false, err
	}
	return c.nonFungible, nil
}

func (r *fakeReader) FungibleBalance(ctx context.Context, addr, _ common.Address) (*big.Int, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return nil, err
	}
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	if c.balance == nil {
		return big.NewInt(0), nil
	}
	return c.balance, nil
}

func (r *fakeReader) SemiFungibleBalance(ctx context.Context, addr, _ common.Address) ([]string, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return nil, err
	}
	return c.items, c.balanceErr
}

func (r *fakeReader) NonFungibleTokens(ctx context.Context, addr, _ common.Address, limit int) ([]string, error) {
	c, err := r.lookup(ctx, addr)
	if err != nil {
		return nil, err
	}
	if len(c.items) > limit {
		return c.items[:limit], c.balanceErr
	}
	return c.items, c.balanceErr
}

// fakeLister returns fixed transfer lists. When block is non-nil every call
// waits on it first.
type fakeLister struct {
	fungible    []string
	nonFungible []string
	err         error
	nftErr      error // fails only the non-fungible listing
	block       chan struct{}
	calls       atomic.Int32
}

func (l *fakeLister) ListContractsInteracted(ctx context.Context, _ string, fungible bool) ([]string, error) {
	l.calls.Add(1)
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	if fungible {
		return l.fungible, nil
	}
	if l.nftErr != nil {
		return nil, l.nftErr
	}
	return l.nonFungible, nil
}

type fakeReach struct {
	reachable atomic.Bool
	calls     atomic.Int32
}

func newFakeReach(reachable bool) *fakeReach {
	r := &fakeReach{}
	r.reachable.Store(reachable)
	return r
}

func (r *fakeReach) IsReachable(context.Context) bool {
	r.calls.Add(1)
	return r.reachable.Load()
}

type fakeAssets struct {
	mu        sync.Mutex
	refreshed []string
}

func (a *fakeAssets) RefreshAsync(contract string) {
	a.mu.Lock()
	a.refreshed = append(a.refreshed, contract)
	a.mu.Unlock()
}

func (a *fakeAssets) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.refreshed)
}

// eventRecorder counts hub events by type.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(t *testing.T, hub *Hub) *eventRecorder {
	t.Helper()
	rec := &eventRecorder{}
	remove := hub.Listen(func(e Event) {
		rec.mu.Lock()
		rec.events = append(rec.events, e)
		rec.mu.Unlock()
	})
	t.Cleanup(remove)
	return rec
}

func (r *eventRecorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// Finished counts detection_finished events of kind.
func (r *eventRecorder) Finished(kind models.DetectionKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if d, ok := e.Data.(DetectionFinishedData); ok && d.Kind == string(kind) {
			n++
		}
	}
	return n
}

func (r *eventRecorder) Reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if d, ok := e.Data.(TokensChangedData); ok {
			out = append(out, d.Reason)
		}
	}
	return out
}

// testEnv wires a session over fakes.
type testEnv struct {
	store  *memStore
	reader *fakeReader
	lister *fakeLister
	reach  *fakeReach
	assets *fakeAssets
	hub    *Hub
	events *eventRecorder
}

func newTestEnv(t *testing.T, contracts map[string]fakeContract) *testEnv {
	t.Helper()
	hub := NewHub()
	return &testEnv{
		store:  newMemStore(),
		reader: newFakeReader(contracts),
		lister: &fakeLister{},
		reach:  newFakeReach(true),
		assets: &fakeAssets{},
		hub:    hub,
		events: recordEvents(t, hub),
	}
}

func (e *testEnv) deps(partners ...string) Deps {
	return Deps{
		Reader:       e.reader,
		Lister:       e.lister,
		Reachability: e.reach,
		Assets:       e.assets,
		Hub:          e.hub,
		Partners:     partners,
	}
}

func (e *testEnv) session(t *testing.T, opts Options, partners ...string) *Session {
	t.Helper()
	if opts.NotifyTimeout == 0 {
		opts.NotifyTimeout = time.Minute
	}
	s := NewSession(context.Background(), testWallet, config.NetworkMainnet, e.store, e.deps(partners...), opts)
	t.Cleanup(s.Close)
	return s
}

func (e *testEnv) fetcher() *Fetcher {
	classifier := NewClassifier(e.reader, nil, config.NetworkMainnet)
	return NewFetcher(e.reader, classifier, e.reach, e.assets, testWallet, config.NetworkMainnet)
}

