package temporal

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatSeasonality() [13]float64 {
	var s [13]float64
	for i := range s {
		s[i] = 1.0
	}
	return s
}

func flatDiurnal(v float64) DiurnalVector {
	var d DiurnalVector
	for i := range d {
		d[i] = v
	}
	return d
}

func TestNewShaperRejectsUnknownTz(t *testing.T) {
	_, err := NewShaper("Not/A_Real_Zone", flatDiurnal(1), flatDiurnal(1), flatSeasonality(), nil)
	assert.Error(t, err)
}

func TestIntensityAppliesSpecialDayOverride(t *testing.T) {
	s, err := NewShaper("UTC", flatDiurnal(1), flatDiurnal(1), flatSeasonality(), map[string]float64{"2025-12-25": 2.0})
	require.NoError(t, err)
	d := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	got := s.Intensity(24.0, "2025-12-25", d, 10)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestDailyEventCountZeroRate(t *testing.T) {
	s, err := NewShaper("UTC", flatDiurnal(1), flatDiurnal(1), flatSeasonality(), nil)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	d := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, s.DailyEventCount(rng, 0, "2025-01-01", d))
}

func TestSampleLocalSecondsWithinRange(t *testing.T) {
	s, err := NewShaper("UTC", flatDiurnal(1), flatDiurnal(1), flatSeasonality(), nil)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(2))
	d := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		sec := s.SampleLocalSeconds(rng, d)
		assert.GreaterOrEqual(t, sec, 0)
		assert.Less(t, sec, 24*3600)
	}
}

func TestSampleLocalSecondsRespectsDiurnalShape(t *testing.T) {
	weekday := flatDiurnal(0.01)
	weekday[9] = 5.0 // strong morning peak
	s, err := NewShaper("UTC", weekday, weekday, flatSeasonality(), nil)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	d := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // a Monday
	var inPeakHour int
	const n = 5000
	for i := 0; i < n; i++ {
		sec := s.SampleLocalSeconds(rng, d)
		if sec/3600 == 9 {
			inPeakHour++
		}
	}
	assert.Greater(t, float64(inPeakHour)/n, 0.5)
}

func TestToEpochMillisDSTAwareOffset(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skip("tzdata not available in this environment")
	}
	s, err := NewShaper("Europe/Amsterdam", flatDiurnal(1), flatDiurnal(1), flatSeasonality(), nil)
	require.NoError(t, err)
	_ = loc

	winter := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	_, offWinter := s.ToEpochMillis(winter, 12*3600)
	assert.Equal(t, 60, offWinter)

	summer := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	_, offSummer := s.ToEpochMillis(summer, 12*3600)
	assert.Equal(t, 120, offSummer)
}

func TestIntensityWeekendVsWeekday(t *testing.T) {
	weekday := flatDiurnal(1.0)
	weekend := flatDiurnal(2.0)
	s, err := NewShaper("UTC", weekday, weekend, flatSeasonality(), nil)
	require.NoError(t, err)

	mon := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	sat := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, s.Intensity(24.0, "2025-01-06", mon, 5), 1e-9)
	assert.InDelta(t, 2.0, s.Intensity(24.0, "2025-01-11", sat, 5), 1e-9)
}
