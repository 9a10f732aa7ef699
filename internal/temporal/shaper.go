// Package temporal shapes event counts and timestamps across the local
// day using diurnal, monthly-seasonality and special-day multipliers,
// and converts local wall-clock times to UTC epoch milliseconds using
// an IANA timezone.
package temporal

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shiimaxx/cdrgen/internal/distributions"
)

// DiurnalVector holds 24 hourly multipliers, weekday and weekend.
type DiurnalVector [24]float64

// Max returns the largest multiplier in the vector, used to normalize
// the rejection-sampling acceptance probability.
func (v DiurnalVector) Max() float64 {
	m := v[0]
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

// Shaper computes hourly intensity and draws event timestamps for one
// subscriber-day. It is safe to share read-only across shards; it holds
// no mutable state.
type Shaper struct {
	Weekday      DiurnalVector
	Weekend      DiurnalVector
	Seasonality  [13]float64 // index 1..12, month(d)
	SpecialDays  map[string]float64
	Location     *time.Location
	TzName       string
}

// NewShaper builds a Shaper for the given IANA timezone name. An
// unrecognized name is a configuration error, not a silently-corrected
// default: the caller must reject it and exit rather than generate a
// day's worth of CDRs against the wrong timezone.
func NewShaper(tzName string, weekday, weekend DiurnalVector, seasonality [13]float64, specialDays map[string]float64) (*Shaper, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("temporal: unknown timezone %q: %w", tzName, err)
	}
	return &Shaper{
		Weekday:     weekday,
		Weekend:     weekend,
		Seasonality: seasonality,
		SpecialDays: specialDays,
		Location:    loc,
		TzName:      tzName,
	}, nil
}

// vectorFor picks the weekday or weekend diurnal vector for date d.
func (s *Shaper) vectorFor(d time.Time) DiurnalVector {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return s.Weekend
	default:
		return s.Weekday
	}
}

// Intensity returns lambda(h, d): the effective hourly event rate for
// local hour h on date d, given a base per-user daily rate.
func (s *Shaper) Intensity(baseRate float64, dateStr string, d time.Time, h int) float64 {
	vec := s.vectorFor(d)
	season := s.Seasonality[int(d.Month())]
	special := 1.0
	if v, ok := s.SpecialDays[dateStr]; ok {
		special = v
	}
	return baseRate * vec[h] * season * special / 24.0
}

// DailyEventCount draws the Poisson-distributed number of events for
// the whole local day from the summed hourly intensities.
func (s *Shaper) DailyEventCount(rng *rand.Rand, baseRate float64, dateStr string, d time.Time) int {
	var total float64
	for h := 0; h < 24; h++ {
		total += s.Intensity(baseRate, dateStr, d, h)
	}
	return distributions.Poisson(rng, total)
}

// SampleLocalSeconds draws a local time-of-day offset, in seconds from
// midnight, via rejection sampling against the diurnal vector: propose
// uniform, accept with probability diurnal[hour]/max(diurnal). Allocates
// nothing; d is only used to select the weekday/weekend vector.
func (s *Shaper) SampleLocalSeconds(rng *rand.Rand, d time.Time) int {
	vec := s.vectorFor(d)
	maxMult := vec.Max()
	for {
		sec := rng.Intn(24 * 3600)
		hour := sec / 3600
		if rng.Float64() < vec[hour]/maxMult {
			return sec
		}
	}
}

// ToEpochMillis converts a local date + seconds-from-midnight into a
// UTC epoch-milliseconds timestamp and the DST-aware offset in minutes
// applicable at that instant.
func (s *Shaper) ToEpochMillis(d time.Time, secondsFromMidnight int) (epochMs int64, offsetMin int) {
	local := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.Location).Add(time.Duration(secondsFromMidnight) * time.Second)
	_, offsetSec := local.Zone()
	return local.UTC().UnixMilli(), offsetSec / 60
}
