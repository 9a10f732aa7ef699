package distributions

import "math/rand"

// AliasTable implements Vose's alias method for O(1) sampling from a
// discrete weighted distribution after an O(n) one-time build. Building
// the table inside a hot loop is forbidden by the generation contract;
// every caller builds it once at construction and samples repeatedly.
type AliasTable struct {
	prob  []float64
	alias []int
}

// NewAliasTable builds an alias table from a weight vector. Weights
// need not sum to 1; they are normalized internally. Panics if weights
// is empty or contains a negative value, since reaching this path with
// invalid input is a configuration error that must have been rejected
// earlier (spec's sampling failures are impossible by construction).
func NewAliasTable(weights []float64) AliasTable {
	n := len(weights)
	if n == 0 {
		panic("distributions: NewAliasTable requires at least one weight")
	}
	var total float64
	for _, w := range weights {
		if w < 0 {
			panic("distributions: NewAliasTable requires non-negative weights")
		}
		total += w
	}
	prob := make([]float64, n)
	alias := make([]int, n)
	scaled := make([]float64, n)
	for i, w := range weights {
		scaled[i] = w / total * float64(n)
	}

	var small, large []int
	for i, p := range scaled {
		if p < 1.0 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		prob[s] = scaled[s]
		alias[s] = l

		scaled[l] = scaled[l] + scaled[s] - 1.0
		if scaled[l] < 1.0 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	for len(large) > 0 {
		l := large[len(large)-1]
		large = large[:len(large)-1]
		prob[l] = 1.0
	}
	for len(small) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		prob[s] = 1.0
	}

	return AliasTable{prob: prob, alias: alias}
}

// Sample draws one index in [0, n) according to the table's weights.
func (t AliasTable) Sample(rng *rand.Rand) int {
	n := len(t.prob)
	i := rng.Intn(n)
	if rng.Float64() < t.prob[i] {
		return i
	}
	return t.alias[i]
}

// Len reports the number of categories in the table.
func (t AliasTable) Len() int {
	return len(t.prob)
}
