package distributions

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasTableSamplesWithinRange(t *testing.T) {
	table := NewAliasTable([]float64{1, 2, 3, 4})
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		idx := table.Sample(rng)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, table.Len())
	}
}

func TestAliasTableApproximatesWeights(t *testing.T) {
	weights := []float64{1, 1, 8}
	table := NewAliasTable(weights)
	rng := rand.New(rand.NewSource(9))
	counts := make([]int, 3)
	const n = 50000
	for i := 0; i < n; i++ {
		counts[table.Sample(rng)]++
	}
	assert.InDelta(t, 0.8, float64(counts[2])/n, 0.03)
}

func TestAliasTableSingleCategory(t *testing.T) {
	table := NewAliasTable([]float64{5})
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, table.Sample(rng))
	}
}

func TestAliasTablePanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() {
		NewAliasTable(nil)
	})
}

func TestAliasTablePanicsOnNegativeWeight(t *testing.T) {
	assert.Panics(t, func() {
		NewAliasTable([]float64{1, -1})
	})
}
