package detect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/db"
	"github.com/Fantasim/tokenscout/internal/models"
)

func TestClassifier_ProbeOrder(t *testing.T) {
	reader := newFakeReader(map[string]fakeContract{
		contractAAA: {name: "Foo", symbol: "FOO", decimals: 18},
		contractBBB: {semiFungible: true},
		contractCCC: {nonFungible: true},
		contractDDD: {notToken: true},
	})
	c := NewClassifier(reader, nil, config.NetworkMainnet)
	ctx := context.Background()

	assert.Equal(t, models.StandardERC20, c.Classify(ctx, contractAAA))
	assert.Equal(t, models.StandardERC875, c.Classify(ctx, contractBBB))
	assert.Equal(t, models.StandardERC721, c.Classify(ctx, contractCCC))
	assert.Equal(t, models.StandardUnknown, c.Classify(ctx, contractDDD))
}

func TestClassifier_SemiFungibleShortCircuits(t *testing.T) {
	reader := newFakeReader(map[string]fakeContract{contractBBB: {semiFungible: true}})
	c := NewClassifier(reader, nil, config.NetworkMainnet)

	require.Equal(t, models.StandardERC875, c.Classify(context.Background(), contractBBB))
	assert.Equal(t, 1, reader.Calls(contractBBB), "no probe may follow a positive ERC875 answer")
}

func TestClassifier_NativeAndInvalid(t *testing.T) {
	reader := newFakeReader(nil)
	c := NewClassifier(reader, nil, config.NetworkMainnet)

	assert.Equal(t, models.StandardNative, c.Classify(context.Background(), config.NativeCurrencyPlaceholder))
	assert.Equal(t, models.StandardUnknown, c.Classify(context.Background(), "not-an-address"))
	assert.Equal(t, 0, reader.Calls(config.NativeCurrencyPlaceholder))
}

func TestClassifier_TransportFailureIsUnknownAndNotCached(t *testing.T) {
	reader := newFakeReader(map[string]fakeContract{contractAAA: {name: "Foo", symbol: "FOO", decimals: 18}})
	cache := newTestDB(t)
	c := NewClassifier(&failingReader{fakeReader: reader}, cache, config.NetworkMainnet)

	assert.Equal(t, models.StandardUnknown, c.Classify(context.Background(), contractAAA))

	_, ok, err := cache.CachedStandard(config.NetworkMainnet, contractAAA)
	require.NoError(t, err)
	assert.False(t, ok, "transport failures must not be cached")
}

func TestClassifier_UsesCache(t *testing.T) {
	reader := newFakeReader(map[string]fakeContract{contractAAA: {name: "Foo", symbol: "FOO", decimals: 18}})
	cache := newTestDB(t)
	c := NewClassifier(reader, cache, config.NetworkMainnet)

	require.Equal(t, models.StandardERC20, c.Classify(context.Background(), contractAAA))
	probes := reader.Calls(contractAAA)

	require.Equal(t, models.StandardERC20, c.Classify(context.Background(), contractAAA))
	assert.Equal(t, probes, reader.Calls(contractAAA), "second classification must come from the cache")
}

// failingReader fails every ERC875 probe on the transport.
type failingReader struct {
	*fakeReader
}

func (f *failingReader) IsSemiFungible(context.Context, common.Address) (bool, error) {
	return false, errTransport()
}

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.New(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	require.NoError(t, d.RunMigrations())
	t.Cleanup(func() { d.Close() })
	return d
}
