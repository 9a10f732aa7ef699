// Package distributions provides pure numerical sampling routines used
// by the temporal shaper and the event generators. Every function takes
// an explicit *rand.Rand and returns a value deterministically derived
// from its state; none of them touch global RNG state or the clock.
package distributions

import (
	"math"
	"math/rand"
)

// invPhi90 is the value of the standard normal inverse CDF at 0.9,
// used to derive log-normal parameters from p50/p90 quantiles.
const invPhi90 = 1.2815515655446004

// Poisson draws from a Poisson distribution with mean lambda. For
// lambda < 30 it uses Knuth's exact multiplication algorithm; above
// that it falls back to a Normal approximation rounded to the nearest
// non-negative integer, which stays numerically stable for lambda in
// the hundreds.
func Poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	if lambda < 30 {
		l := math.Exp(-lambda)
		k := 0
		p := 1.0
		for {
			k++
			p *= rng.Float64()
			if p <= l {
				return k - 1
			}
		}
	}
	sample := Normal(rng, lambda, math.Sqrt(lambda))
	n := int(math.Round(sample))
	if n < 0 {
		return 0
	}
	return n
}

// Normal draws from N(mu, sigma) using the Box-Muller transform.
func Normal(rng *rand.Rand, mu, sigma float64) float64 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mu + sigma*z
}

// TruncatedNormal draws from N(mu, sigma), rejecting draws outside
// [lo, hi]. After 100 rejected draws it returns mu clamped to [lo, hi].
func TruncatedNormal(rng *rand.Rand, mu, sigma, lo, hi float64) float64 {
	for i := 0; i < 100; i++ {
		v := Normal(rng, mu, sigma)
		if v >= lo && v <= hi {
			return v
		}
	}
	return math.Min(math.Max(mu, lo), hi)
}

// LogNormal draws from a log-normal distribution parameterized
// directly by (mu, sigma) of the underlying normal.
func LogNormal(rng *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(Normal(rng, mu, sigma))
}

// LognormParamsFromQuantiles converts a (p50, p90) pair into the
// (mu, sigma) parameters of the log-normal whose median is p50 and
// 90th percentile is p90. Mirrors the original generator's
// quantile-to-parameter conversion so configured durations translate
// into the same distribution shape.
func LognormParamsFromQuantiles(p50, p90 float64) (mu, sigma float64) {
	m50 := math.Max(p50, 1)
	m90 := math.Max(p90, 1)
	mu = math.Log(m50)
	sigma = math.Log(m90/m50) / invPhi90
	if sigma < 0.2 {
		sigma = 0.2
	}
	if sigma > 2.0 {
		sigma = 2.0
	}
	return mu, sigma
}

// ZipfWeights returns a length-k vector of normalized weights where
// weight[i] is proportional to 1/(i+1)^s. Used to build contact pools
// and rank-decaying popularity distributions.
func ZipfWeights(k int, s float64) []float64 {
	if k <= 0 {
		return nil
	}
	w := make([]float64, k)
	var total float64
	for i := 0; i < k; i++ {
		w[i] = 1.0 / math.Pow(float64(i+1), s)
		total += w[i]
	}
	for i := range w {
		w[i] /= total
	}
	return w
}
