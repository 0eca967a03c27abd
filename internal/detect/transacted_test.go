package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
	"github.com/Fantasim/tokenscout/internal/models"
)

func runTransacted(t *testing.T, s *Session) {
	t.Helper()
	require.True(t, s.transacted.Run(testWallet))
	s.Wait()
}

func TestTransacted_AddsFungibleToken(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18},
	})
	env.lister.fungible = []string{contractAAA}
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Equal(t, []string{"addToken:" + contractAAA}, env.store.Mutations())
	token, ok := env.store.Token(contractAAA)
	require.True(t, ok)
	assert.Equal(t, "FOO", token.Symbol)
	assert.Equal(t, uint8(18), token.Decimals)
	assert.Equal(t, "0", token.Value)
	assert.Equal(t, []string{"batch_complete"}, env.events.Reasons())
}

func TestTransacted_EmptySymbolBecomesDelegate(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractBBB: {name: "", symbol: "", decimals: 0},
	})
	env.lister.fungible = []string{contractBBB}
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Equal(t, []string{"addDelegate:" + contractBBB}, env.store.Mutations())
	_, ok := env.store.Token(contractBBB)
	assert.False(t, ok)
}

func TestTransacted_OfflineFailureLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reach.reachable.Store(false)
	env.lister.nonFungible = []string{contractCCC}
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Empty(t, env.store.Mutations())
	assert.Equal(t, []string{"batch_complete"}, env.events.Reasons())
}

func TestTransacted_ReachableFailureMarksDead(t *testing.T) {
	env := newTestEnv(t, nil)
	env.lister.fungible = []string{contractCCC}
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Equal(t, []string{"addDeletedContract:" + contractCCC}, env.store.Mutations())
}

func TestTransacted_SkipsKnownContracts(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractEEE: {name: "Eee", symbol: "EEE", decimals: 6},
	})
	require.NoError(t, env.store.AddToken(models.Token{Contract: contractAAA, Symbol: "AAA", Standard: models.StandardERC20}))
	require.NoError(t, env.store.AddDeletedContract(contractBBB))
	require.NoError(t, env.store.HideContract(contractCCC))
	require.NoError(t, env.store.AddDelegate(contractDDD))
	before := len(env.store.Mutations())

	env.lister.fungible = []string{contractAAA, contractBBB, contractEEE}
	env.lister.nonFungible = []string{contractCCC, contractDDD, contractEEE}
	s := env.session(t, Options{})

	runTransacted(t, s)

	for _, c := range []string{contractAAA, contractBBB, contractCCC, contractDDD} {
		assert.Zero(t, env.reader.Calls(c), "known contract %s must not be fetched", c)
	}
	assert.Equal(t, []string{"addToken:" + contractEEE}, env.store.Mutations()[before:])
}

func TestTransacted_CandidatesAreCaseInsensitive(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18},
	})
	env.lister.fungible = []string{"0x0000000000000000000000000000000000000AAA"}
	env.lister.nonFungible = []string{contractAAA}
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Equal(t, []string{"addToken:" + contractAAA}, env.store.Mutations())
}

func TestTransacted_NoCandidatesNoNotification(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Empty(t, env.events.Reasons())
	assert.Equal(t, 1, env.events.Count(EventDetectionFinished))
}

func TestTransacted_PartialListing(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18},
	})
	env.lister.fungible = []string{contractAAA}
	env.lister.nftErr = errTransport()
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Equal(t, []string{"addToken:" + contractAAA}, env.store.Mutations())
}

func TestTransacted_GateDropsConcurrentPass(t *testing.T) {
	env := newTestEnv(t, nil)
	env.lister.block = make(chan struct{})
	s := env.session(t, Options{})

	require.True(t, s.transacted.Run(testWallet))
	require.Eventually(t, func() bool { return env.lister.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Status().TransactedRunning)

	assert.False(t, s.transacted.Run(testWallet))
	assert.Equal(t, int32(2), env.lister.calls.Load(), "dropped pass must not list transfers")

	close(env.lister.block)
	s.Wait()
	assert.False(t, s.Status().TransactedRunning)

	// The gate is free again once the pass is done.
	require.True(t, s.transacted.Run(testWallet))
	s.Wait()
	assert.Equal(t, int32(4), env.lister.calls.Load())
}

func TestTransacted_DisabledModes(t *testing.T) {
	for name, opts := range map[string]Options{
		"auto fetch disabled": {AutoFetchDisabled: true},
		"test harness":        {TestHarness: true},
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.lister.fungible = []string{contractAAA}
			s := env.session(t, opts)

			assert.False(t, s.transacted.Run(testWallet))
			s.Wait()
			assert.Zero(t, env.lister.calls.Load())
			assert.Zero(t, env.reader.Calls(contractAAA))
			assert.Empty(t, env.store.Mutations())
		})
	}
}

func TestTransacted_SoftTimeoutNotifiesTwice(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18, delay: 60 * time.Millisecond},
	})
	env.lister.fungible = []string{contractAAA}
	s := env.session(t, Options{NotifyTimeout: 10 * time.Millisecond})

	runTransacted(t, s)

	assert.Equal(t, []string{"batch_timeout", "batch_complete"}, env.events.Reasons())
	assert.Equal(t, []string{"addToken:" + contractAAA}, env.store.Mutations(), "the timeout must not cancel the batch")
}

func TestTransacted_StaleWalletDiscarded(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18},
	})
	env.lister.fungible = []string{contractAAA}
	env.lister.block = make(chan struct{})

	stores := map[string]*memStore{testWallet: env.store, otherWallet: newMemStore()}
	engine := NewEngine(context.Background(), config.NetworkMainnet,
		func(wallet, _ string) TokenStore { return stores[wallet] },
		env.deps(), Options{NotifyTimeout: time.Minute})

	first, err := engine.StartAutoDetection(testWallet)
	require.NoError(t, err)
	t.Cleanup(first.Close)
	require.Eventually(t, func() bool { return env.lister.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	second, err := engine.Session(otherWallet)
	require.NoError(t, err)
	t.Cleanup(second.Close)

	close(env.lister.block)
	first.Wait()

	assert.Empty(t, env.store.Mutations())
	assert.Empty(t, stores[otherWallet].Mutations())
	assert.Zero(t, env.reader.Calls(contractAAA))
}

func TestTransacted_RecordsRun(t *testing.T) {
	env := newTestEnv(t, map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18},
	})
	env.lister.fungible = []string{contractAAA, contractBBB}
	runs := newTestDB(t)

	deps := env.deps()
	deps.Runs = runs
	s := NewSession(context.Background(), testWallet, config.NetworkMainnet, env.store, deps, Options{NotifyTimeout: time.Minute})
	t.Cleanup(s.Close)

	runTransacted(t, s)

	list, err := runs.ListDetectionRuns(testWallet, config.NetworkMainnet, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.DetectionTransacted, list[0].Kind)
	assert.Equal(t, db.RunStatusCompleted, list[0].Status)
	assert.Equal(t, 2, list[0].Candidates)
	assert.Equal(t, 1, list[0].Added)
	assert.Equal(t, 1, env.events.Count(EventDetectionStarted))
	assert.Equal(t, 1, env.events.Count(EventDetectionFinished))
}

func TestFilterCandidates(t *testing.T) {
	excluded := models.NewContractSet(contractBBB)
	got := filterCandidates(config.NetworkMainnet, excluded,
		[]string{contractAAA, "0x0000000000000000000000000000000000000BBB", ""},
		[]string{contractCCC, "0x0000000000000000000000000000000000000AAA"},
	)
	assert.Equal(t, []models.ContractCandidate{
		{Address: contractAAA, Network: config.NetworkMainnet},
		{Address: contractCCC, Network: config.NetworkMainnet},
	}, got)
}

func TestTransacted_ListingFailureAddsNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.lister.err = errors.New("explorer down")
	s := env.session(t, Options{})

	runTransacted(t, s)

	assert.Empty(t, env.store.Mutations())
	assert.Empty(t, env.events.Reasons())
}
