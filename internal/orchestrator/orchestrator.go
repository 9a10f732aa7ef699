// Package orchestrator drives one day's generation: deterministic
// index-range sharding of the population, one goroutine per shard each
// owning its own RNG/writer/scratch record/stats, and a single-threaded
// reducer producing the day's summary.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/shiimaxx/cdrgen/internal/events"
	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/shiimaxx/cdrgen/internal/statsagg"
	"github.com/shiimaxx/cdrgen/internal/temporal"
	"github.com/shiimaxx/cdrgen/internal/writer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config bundles the per-day inputs that don't change across shards.
type Config struct {
	OutDir      string
	RotateBytes int64
	Workers     int
	Seed        int64

	MOShareCall float64
	MOShareSMS  float64
	CallDurationP50, CallDurationP90 float64
	Prefixes, ForeignPrefixes        []string
	InterconnectShare                float64
	MSISDNLength                     int
	APNs                             []string
	APNWeights                       []float64

	CallRatePerDay float64
	SMSRatePerDay  float64
	DataRatePerDay float64
}

// shardSeed derives a per-shard, per-day RNG seed from the global
// seed, the day ordinal, and the shard index using a fixed avalanche
// mixing function (splitmix64-style), never wall-clock or thread id.
// See DESIGN.md's Open Question decision on RNG seed mixing.
func shardSeed(globalSeed int64, dayOrdinal int, shardIdx int) int64 {
	x := uint64(globalSeed)
	x = mix64(x ^ (uint64(dayOrdinal) * 0x9E3779B97F4A7C15))
	x = mix64(x ^ (uint64(shardIdx) * 0xBF58476D1CE4E5B9))
	return int64(x)
}

// newRand builds a *rand.Rand seeded exclusively from the mixed
// per-shard seed; never from wall-clock or thread id, so two runs with
// the same (config, seed, workers) reproduce identical sequences.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// shardRange returns the contiguous [lo, hi) index range owned by
// shard s out of w total shards over n subscribers.
func shardRange(n, w, s int) (lo, hi int) {
	lo = s * n / w
	hi = (s + 1) * n / w
	return lo, hi
}

// WorkerCount resolves the configured worker count, falling back to
// the detected CPU count when 0.
func WorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// RunDay generates one day's events across all shards and returns the
// merged summary. A shard failure is recorded and does not stop its
// peers; RunDay returns a non-nil error if at least one shard failed
// (after every shard has finished), or if the day directory, the shard
// stats files or the summary cannot be written.
func RunDay(ctx context.Context, cfg Config, day time.Time, dayOrdinal int, population []models.Subscriber, shaper *temporal.Shaper, resolver *events.IdentityResolver, cellIDs []string, logger *zap.Logger) (models.DaySummary, error) {
	tracer := otel.Tracer("cdrgen/orchestrator")
	ctx, span := tracer.Start(ctx, "day", trace.WithAttributes(attribute.String("day", day.Format("2006-01-02"))))
	defer span.End()

	dayDir := filepath.Join(cfg.OutDir, day.Format("2006-01-02"))
	dateStr := day.Format("2006-01-02")

	w := WorkerCount(cfg.Workers)
	if w > len(population) && len(population) > 0 {
		w = len(population)
	}
	if w < 1 {
		w = 1
	}

	callGen := events.NewCallGenerator(cfg.MOShareCall, cfg.CallDurationP50, cfg.CallDurationP90, cfg.Prefixes, cfg.ForeignPrefixes, cfg.InterconnectShare, cfg.MSISDNLength)
	smsGen := events.NewSMSGenerator(cfg.MOShareSMS, cfg.Prefixes, cfg.ForeignPrefixes, cfg.InterconnectShare, cfg.MSISDNLength)
	dataGen := events.NewDataGenerator(cfg.APNs, cfg.APNWeights)

	// Shard writers create their part files directly in dayDir.
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return models.DaySummary{Day: dateStr, Shards: w}, fmt.Errorf("orchestrator: mkdir day dir: %w", err)
	}

	shardStats := make([]models.ShardStats, w)
	var wg sync.WaitGroup
	for s := 0; s < w; s++ {
		wg.Add(1)
		go func(shardIdx int) {
			defer wg.Done()
			_, shardSpan := tracer.Start(ctx, "shard", trace.WithAttributes(attribute.Int("shard", shardIdx)))
			defer shardSpan.End()

			shardLog := logger.With(zap.String("day", dateStr), zap.Int("shard", shardIdx))
			stats := runShard(shardIdx, w, cfg, dayDir, dateStr, day, dayOrdinal, population, shaper, resolver, cellIDs, callGen, smsGen, dataGen, shardLog)
			shardStats[shardIdx] = stats
		}(s)
	}
	wg.Wait()

	summary := models.DaySummary{Day: dateStr, Shards: w}
	for _, s := range shardStats {
		summary.Merge(s)
	}
	if err := statsagg.WriteShardStats(dayDir, shardStats); err != nil {
		return summary, err
	}
	if err := statsagg.WriteSummary(dayDir, summary); err != nil {
		return summary, err
	}

	if len(summary.FailedShards) > 0 {
		return summary, fmt.Errorf("orchestrator: %d shard(s) failed on %s: %v", len(summary.FailedShards), dateStr, summary.FailedShards)
	}
	return summary, nil
}

func runShard(shardIdx, totalShards int, cfg Config, dayDir, dateStr string, day time.Time, dayOrdinal int, population []models.Subscriber, shaper *temporal.Shaper, resolver *events.IdentityResolver, cellIDs []string, callGen *events.CallGenerator, smsGen *events.SMSGenerator, dataGen *events.DataGenerator, log *zap.Logger) models.ShardStats {
	stats := models.ShardStats{ShardIndex: shardIdx}

	seed := shardSeed(cfg.Seed, dayOrdinal, shardIdx)
	rng := newRand(seed)

	w := writer.New(dayDir, dateStr, shardIdx, cfg.RotateBytes)
	defer func() {
		if err := w.Finish(); err != nil && !stats.Failed {
			stats.Failed = true
			stats.FailureReason = err.Error()
			log.Error("finish writer failed", zap.Error(err))
		}
	}()

	lo, hi := shardRange(len(population), totalShards, shardIdx)

	var scratch models.Event
	for i := lo; i < hi; i++ {
		sub := population[i]

		if cfg.CallRatePerDay > 0 {
			n := shaper.DailyEventCount(rng, cfg.CallRatePerDay, dateStr, day)
			for j := 0; j < n; j++ {
				sec := shaper.SampleLocalSeconds(rng, day)
				ts, off := shaper.ToEpochMillis(day, sec)
				if !callGen.Generate(rng, sub, population, resolver, ts, shaper.TzName, off, pickCell(cellIDs, rng), &scratch) {
					stats.SkippedNoIdentity++
					continue
				}
				if err := w.Write(scratch); err != nil {
					stats.Failed = true
					stats.FailureReason = err.Error()
					return stats
				}
				stats.Add(scratch)
			}
		}

		if cfg.SMSRatePerDay > 0 {
			n := shaper.DailyEventCount(rng, cfg.SMSRatePerDay, dateStr, day)
			for j := 0; j < n; j++ {
				sec := shaper.SampleLocalSeconds(rng, day)
				ts, off := shaper.ToEpochMillis(day, sec)
				if !smsGen.Generate(rng, sub, population, resolver, ts, shaper.TzName, off, pickCell(cellIDs, rng), &scratch) {
					stats.SkippedNoIdentity++
					continue
				}
				if err := w.Write(scratch); err != nil {
					stats.Failed = true
					stats.FailureReason = err.Error()
					return stats
				}
				stats.Add(scratch)
			}
		}

		if cfg.DataRatePerDay > 0 {
			n := shaper.DailyEventCount(rng, cfg.DataRatePerDay, dateStr, day)
			for j := 0; j < n; j++ {
				sec := shaper.SampleLocalSeconds(rng, day)
				ts, off := shaper.ToEpochMillis(day, sec)
				if !dataGen.Generate(rng, sub, resolver, ts, shaper.TzName, off, pickCell(cellIDs, rng), &scratch) {
					stats.SkippedNoIdentity++
					continue
				}
				if err := w.Write(scratch); err != nil {
					stats.Failed = true
					stats.FailureReason = err.Error()
					return stats
				}
				stats.Add(scratch)
			}
		}
	}
	return stats
}

func pickCell(cellIDs []string, rng *rand.Rand) string {
	if len(cellIDs) == 0 {
		return ""
	}
	return cellIDs[rng.Intn(len(cellIDs))]
}
