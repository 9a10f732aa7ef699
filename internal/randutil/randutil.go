// Package randutil collects small seeded-RNG helpers shared across
// the generator, grounded on the teacher tooling's generic
// randomChoice[T any] pattern for picking test fixture values.
package randutil

import "math/rand"

// Choice returns a uniformly random element of options.
func Choice[T any](rng *rand.Rand, options []T) T {
	return options[rng.Intn(len(options))]
}

// WeightedIndex returns an index into weights chosen with probability
// proportional to its weight, using linear-scan cumulative sampling.
// For hot-path sampling with a fixed weight set, prefer
// distributions.AliasTable; this is for one-off or rarely-repeated
// choices where building an alias table would be overkill.
func WeightedIndex(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// Bool returns true with probability p.
func Bool(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

// IntRange returns a uniform random integer in [min, max] inclusive.
func IntRange(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
