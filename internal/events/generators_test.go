package events

import (
	"math/rand"
	"testing"

	"github.com/shiimaxx/cdrgen/internal/identity"
	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/shiimaxx/cdrgen/internal/subscriberdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyStore(t *testing.T) *subscriberdb.Store {
	t.Helper()
	store, err := subscriberdb.Build(nil)
	require.NoError(t, err)
	return store
}

func testPopulation(t *testing.T) []models.Subscriber {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	return identity.BootstrapSubscribers(rng, 20, []string{"316"}, []string{"20408"}, 15, 11, 5, 1.0)
}

func TestCallGeneratorEndAfterStartAndDurationMatches(t *testing.T) {
	pop := testPopulation(t)
	gen := NewCallGenerator(0.5, 90, 300, []string{"316"}, nil, 0, 11)
	resolver := &IdentityResolver{}
	rng := rand.New(rand.NewSource(2))
	var e models.Event
	for i := 0; i < 200; i++ {
		ok := gen.Generate(rng, pop[0], pop, resolver, 1700000000000, "Europe/Amsterdam", 60, "cell-1", &e)
		require.True(t, ok)
		assert.GreaterOrEqual(t, e.EndTsMs, e.StartTsMs)
		assert.Equal(t, (e.EndTsMs-e.StartTsMs)/1000, e.DurationSec)
		assert.NotEmpty(t, e.MSISDNDst)
	}
}

func TestSMSGeneratorZeroDuration(t *testing.T) {
	pop := testPopulation(t)
	gen := NewSMSGenerator(0.5, []string{"316"}, nil, 0, 11)
	resolver := &IdentityResolver{}
	rng := rand.New(rand.NewSource(3))
	var e models.Event
	ok := gen.Generate(rng, pop[0], pop, resolver, 1700000000000, "Europe/Amsterdam", 60, "cell-1", &e)
	require.True(t, ok)
	assert.Equal(t, e.StartTsMs, e.EndTsMs)
	assert.Equal(t, int64(0), e.DurationSec)
	assert.GreaterOrEqual(t, e.SMSSegments, 1)
	assert.LessOrEqual(t, e.SMSSegments, 3)
}

func TestDataGeneratorNoCounterpartyAndPositiveBytes(t *testing.T) {
	pop := testPopulation(t)
	gen := NewDataGenerator([]string{"internet", "ims"}, nil)
	resolver := &IdentityResolver{}
	rng := rand.New(rand.NewSource(4))
	var e models.Event
	ok := gen.Generate(rng, pop[0], resolver, 1700000000000, "Europe/Amsterdam", 60, "cell-1", &e)
	require.True(t, ok)
	assert.Empty(t, e.MSISDNDst)
	assert.Greater(t, e.DataBytesIn, int64(0))
	assert.Greater(t, e.DataBytesOut, int64(0))
	assert.Equal(t, (e.EndTsMs-e.StartTsMs)/1000, e.DurationSec)
}

func TestCallGeneratorSkipsWhenNoActiveSnapshot(t *testing.T) {
	pop := testPopulation(t)
	gen := NewCallGenerator(0.5, 90, 300, []string{"316"}, nil, 0, 11)
	resolver := &IdentityResolver{Store: nil}
	// Simulate an inactive snapshot by using a resolver backed by an
	// empty store lookup: swap in a resolver whose Store rejects
	// everyone by using a store with no matching imsi.
	_ = resolver
	// A resolver with a non-nil but empty store rejects every subscriber.
	emptyStoreResolver := &IdentityResolver{Store: emptyStore(t)}
	var e models.Event
	rng := rand.New(rand.NewSource(5))
	ok := gen.Generate(rng, pop[0], pop, emptyStoreResolver, 1700000000000, "UTC", 0, "cell-1", &e)
	assert.False(t, ok)
}

func TestCounterpartyFallsBackWhenPoolEmpty(t *testing.T) {
	sub := models.Subscriber{Index: 0, MSISDN: "31600000000"}
	resolver := &IdentityResolver{}
	rng := rand.New(rand.NewSource(6))
	m := Counterparty(rng, sub, nil, resolver, 0, []string{"316"}, nil, 0, 11)
	assert.Len(t, m, 11)
}
