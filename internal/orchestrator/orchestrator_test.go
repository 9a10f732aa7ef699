package orchestrator

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/shiimaxx/cdrgen/internal/events"
	"github.com/shiimaxx/cdrgen/internal/identity"
	"github.com/shiimaxx/cdrgen/internal/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShardSeedIsDeterministicAndVariesByInput(t *testing.T) {
	a := shardSeed(42, 0, 0)
	b := shardSeed(42, 0, 0)
	assert.Equal(t, a, b, "same inputs must reproduce the same seed")

	c := shardSeed(42, 0, 1)
	d := shardSeed(42, 1, 0)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestShardRangePartitionsContiguouslyAndCoversAll(t *testing.T) {
	n, w := 103, 4
	var covered int
	prevHi := 0
	for s := 0; s < w; s++ {
		lo, hi := shardRange(n, w, s)
		assert.Equal(t, prevHi, lo, "shards must be contiguous")
		assert.GreaterOrEqual(t, hi, lo)
		covered += hi - lo
		prevHi = hi
	}
	assert.Equal(t, n, prevHi, "last shard's hi must reach n")
	assert.Equal(t, n, covered)
}

func TestWorkerCountFallsBackToCPUCount(t *testing.T) {
	assert.Equal(t, 3, WorkerCount(3))
	assert.Equal(t, runtime.NumCPU(), WorkerCount(0))
}

func TestRunDayProducesSummaryAndWritesFiles(t *testing.T) {
	outDir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	population := identity.BootstrapSubscribers(rng, 30, []string{"316"}, []string{"20408"}, 15, 11, 5, 1.0)

	shaper, err := temporal.NewShaper("Europe/Amsterdam",
		temporal.DiurnalVector{}, temporal.DiurnalVector{}, [13]float64{}, nil)
	require.NoError(t, err)
	for i := range shaper.Weekday {
		shaper.Weekday[i] = 1
		shaper.Weekend[i] = 1
	}
	for m := 1; m <= 12; m++ {
		shaper.Seasonality[m] = 1
	}

	resolver := &events.IdentityResolver{}
	cfg := Config{
		OutDir:          outDir,
		RotateBytes:     1 << 30,
		Workers:         2,
		Seed:            42,
		MOShareCall:     0.5,
		MOShareSMS:      0.5,
		CallDurationP50: 90,
		CallDurationP90: 300,
		Prefixes:        []string{"316"},
		MSISDNLength:    11,
		APNs:            []string{"internet"},
		CallRatePerDay:  3,
		SMSRatePerDay:   3,
		DataRatePerDay:  3,
	}
	logger := zap.NewNop()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	summary, err := RunDay(context.Background(), cfg, day, 0, population, shaper, resolver, []string{"cell-1"}, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Shards)
	assert.Greater(t, summary.Events.Call, int64(0))
	assert.Greater(t, summary.Events.SMS, int64(0))
	assert.Greater(t, summary.Events.Data, int64(0))
	assert.Empty(t, summary.FailedShards)

	dayDir := filepath.Join(outDir, "2025-01-01")
	assertFileExists(t, filepath.Join(dayDir, "summary.json"))
	assertFileExists(t, filepath.Join(dayDir, "stats_shard000.json"))
	assertFileExists(t, filepath.Join(dayDir, "stats_shard001.json"))
}

func TestRunDayZeroRateEmitsNoEventsOfThatType(t *testing.T) {
	outDir := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	population := identity.BootstrapSubscribers(rng, 10, []string{"316"}, []string{"20408"}, 15, 11, 3, 1.0)

	shaper, err := temporal.NewShaper("UTC", temporal.DiurnalVector{}, temporal.DiurnalVector{}, [13]float64{}, nil)
	require.NoError(t, err)
	for i := range shaper.Weekday {
		shaper.Weekday[i] = 1
		shaper.Weekend[i] = 1
	}
	for m := 1; m <= 12; m++ {
		shaper.Seasonality[m] = 1
	}

	resolver := &events.IdentityResolver{}
	cfg := Config{
		OutDir:          outDir,
		RotateBytes:     1 << 30,
		Workers:         1,
		Seed:            7,
		MOShareCall:     0.5,
		MOShareSMS:      0.5,
		CallDurationP50: 90,
		CallDurationP90: 300,
		Prefixes:        []string{"316"},
		MSISDNLength:    11,
		APNs:            []string{"internet"},
		CallRatePerDay:  0,
		SMSRatePerDay:   4,
		DataRatePerDay:  4,
	}
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	summary, err := RunDay(context.Background(), cfg, day, 0, population, shaper, resolver, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Events.Call)
	assert.Greater(t, summary.Events.SMS, int64(0))
	assert.Greater(t, summary.Events.Data, int64(0))
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.NoError(t, err)
}
