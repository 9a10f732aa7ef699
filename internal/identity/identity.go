// Package identity synthesizes subscriber identity tuples (MSISDN,
// IMSI, IMEI, MCCMNC), builds Zipf-weighted contact pools, and
// validates telecom identifier formats.
package identity

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/shiimaxx/cdrgen/internal/distributions"
	"github.com/shiimaxx/cdrgen/internal/models"
)

// GenIMEI synthesizes a 15-digit IMEI: an 8-digit TAC, a 6-digit SNR,
// and a Luhn check digit, all drawn from rng.
func GenIMEI(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(15)
	for i := 0; i < 14; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	payload := b.String()
	return payload + string(LuhnCheckDigit(payload))
}

// GenIMSI synthesizes an IMSI of the given total length (14 or 15,
// per spec's admissible range) beginning with mccmnc.
func GenIMSI(rng *rand.Rand, mccmnc string, length int) string {
	var b strings.Builder
	b.WriteString(mccmnc)
	for b.Len() < length {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	return b.String()[:length]
}

// GenMSISDN synthesizes a phone number under one of the configured
// prefixes, padded to totalLength digits.
func GenMSISDN(rng *rand.Rand, prefix string, totalLength int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for b.Len() < totalLength {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	return b.String()[:totalLength]
}

// BuildContactPool samples k distinct other subscriber indices (out of
// n total, excluding self) and assigns them Zipf-decaying weights,
// returning the parallel index/weight slices and precomputed alias
// table. Uses a partial Fisher-Yates shuffle over a scratch slice of
// all n-1 candidate indices, which is allocated on every call.
func BuildContactPool(rng *rand.Rand, self, n, k int, zipfS float64) ([]int, []float64, distributions.AliasTable) {
	if n <= 1 || k <= 0 {
		return nil, nil, distributions.AliasTable{}
	}
	if k > n-1 {
		k = n - 1
	}
	pool := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != self {
			pool = append(pool, i)
		}
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	chosen := append([]int(nil), pool[:k]...)
	weights := distributions.ZipfWeights(k, zipfS)
	return chosen, weights, distributions.NewAliasTable(weights)
}

// ValidateMSISDN checks the 8-15 digit length invariant from the data
// model.
func ValidateMSISDN(s string) error {
	return validateDigits("msisdn", s, 8, 15)
}

// ValidateIMSI checks the 14-15 digit length invariant, and (when
// mccmnc is non-empty) that the imsi begins with it.
func ValidateIMSI(s, mccmnc string) error {
	if err := validateDigits("imsi", s, 14, 15); err != nil {
		return err
	}
	if mccmnc != "" && !strings.HasPrefix(s, mccmnc) {
		return fmt.Errorf("identity: imsi %q does not start with mccmnc %q", s, mccmnc)
	}
	return nil
}

// ValidateIMEI checks the exact 15-digit length and the Luhn check
// digit.
func ValidateIMEI(s string) error {
	if err := validateDigits("imei", s, 15, 15); err != nil {
		return err
	}
	if !ValidLuhn(s) {
		return fmt.Errorf("identity: imei %q fails luhn check", s)
	}
	return nil
}

func validateDigits(field, s string, minLen, maxLen int) error {
	if len(s) < minLen || len(s) > maxLen {
		return fmt.Errorf("identity: %s %q must be %d-%d digits, got length %d", field, s, minLen, maxLen, len(s))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("identity: %s %q must be all digits", field, s)
		}
	}
	return nil
}

// SynthesizeCounterparty picks a fallback MSISDN for events where the
// subscriber's contact pool is empty or exhausted, or where an
// interconnect/roaming counterparty is called for. Draws from
// prefixes normally, or from foreignPrefixes when the RNG draw falls
// under interconnectShare.
func SynthesizeCounterparty(rng *rand.Rand, prefixes, foreignPrefixes []string, interconnectShare float64, msisdnLength int) string {
	pool := prefixes
	if len(foreignPrefixes) > 0 && rng.Float64() < interconnectShare {
		pool = foreignPrefixes
	}
	prefix := pool[rng.Intn(len(pool))]
	return GenMSISDN(rng, prefix, msisdnLength)
}

// BootstrapSubscribers deterministically builds n subscribers with
// identities and contact pools, drawn entirely from rng. Runs on a
// single thread before sharding so every shard sees an identical
// population, per the orchestration contract.
func BootstrapSubscribers(rng *rand.Rand, n int, prefixes []string, mccmncPool []string, imsiLength, msisdnLength, contactPoolSize int, zipfS float64) []models.Subscriber {
	subs := make([]models.Subscriber, n)
	for i := 0; i < n; i++ {
		prefix := prefixes[rng.Intn(len(prefixes))]
		mccmnc := mccmncPool[rng.Intn(len(mccmncPool))]
		subs[i] = models.Subscriber{
			Index:  i,
			MSISDN: GenMSISDN(rng, prefix, msisdnLength),
			IMSI:   GenIMSI(rng, mccmnc, imsiLength),
			IMEI:   GenIMEI(rng),
			MCCMNC: mccmnc,
		}
	}
	for i := range subs {
		idx, weight, alias := BuildContactPool(rng, i, n, contactPoolSize, zipfS)
		subs[i].ContactIdx = idx
		subs[i].ContactWeight = weight
		subs[i].ContactAlias = alias
	}
	return subs
}
