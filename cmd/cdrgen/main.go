// Command cdrgen generates synthetic Call Detail Records for a
// configured subscriber population over a date range, writing rotated
// CSV parts, per-day stats, and a compressed archive per day.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shiimaxx/cdrgen/internal/archive"
	"github.com/shiimaxx/cdrgen/internal/cells"
	"github.com/shiimaxx/cdrgen/internal/config"
	"github.com/shiimaxx/cdrgen/internal/events"
	"github.com/shiimaxx/cdrgen/internal/identity"
	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/shiimaxx/cdrgen/internal/observability"
	"github.com/shiimaxx/cdrgen/internal/orchestrator"
	"github.com/shiimaxx/cdrgen/internal/statsagg"
	"github.com/shiimaxx/cdrgen/internal/subscriberdb"
	"github.com/shiimaxx/cdrgen/internal/temporal"
	"go.uber.org/zap"
)

const (
	exitOK            = 0
	exitConfigError   = 1
	exitValidationErr = 2
	exitIOError       = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cdrgen", flag.ContinueOnError)

	subs := fs.Int("subs", 0, "subscriber count")
	start := fs.String("start", "", "first local day, YYYY-MM-DD")
	days := fs.Int("days", -1, "number of days")
	out := fs.String("out", "", "output root")
	seed := fs.Int64("seed", 0, "master seed")
	workers := fs.Int("workers", -1, "shard count (0 = auto)")
	rotateBytes := fs.Int64("rotate-bytes", -1, "rotation threshold in bytes")
	tz := fs.String("tz", "", "IANA timezone name")
	cellCount := fs.Int("cells", -1, "cell count")
	cellCenter := fs.String("cell-center", "", "disk center as LAT,LON")
	cellRadiusKm := fs.Float64("cell-radius-km", -1, "disk radius in km")
	moShareCall := fs.Float64("mo-share-call", -1, "P(MO) for CALL")
	moShareSMS := fs.Float64("mo-share-sms", -1, "P(MO) for SMS")
	configPath := fs.String("config", "", "YAML config override path")
	subscriberDBPath := fs.String("subscriber-db", "", "subscriber-history store path")
	generateDBPath := fs.String("generate-db", "", "emit a synthetic subscriber-history store to this path and exit")
	validateDB := fs.Bool("validate-db", false, "validate --subscriber-db and exit")
	cleanupAfterArchive := fs.Bool("cleanup-after-archive", false, "remove day directory after archiving")
	dbSize := fs.Int("db-size", -1, "subscriber count for --generate-db")
	dbHistoryDays := fs.Int("db-history-days", -1, "history window in days for --generate-db")
	verbose := fs.Bool("verbose", false, "human-readable logs instead of JSON")
	resummarizeDay := fs.String("resummarize", "", "recompute summary.json for an already-generated day from its stats_shard*.json files, YYYY-MM-DD, and exit")

	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	applyFlagOverrides(&cfg, fs, subs, start, days, out, seed, workers, rotateBytes, tz,
		cellCount, cellCenter, cellRadiusKm, moShareCall, moShareSMS, subscriberDBPath,
		dbSize, dbHistoryDays)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	logger, err := observability.NewLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	defer logger.Sync()

	runID := observability.NewRunID()
	logger = logger.With(zap.String("run_id", runID))

	if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
		logger.Error("create output root failed", zap.Error(err))
		return exitIOError
	}

	tp, err := observability.NewTracerProvider(cfg.Out, runID)
	if err != nil {
		logger.Error("tracer setup failed", zap.Error(err))
		return exitIOError
	}
	defer tp.Shutdown(context.Background())
	metrics := observability.NewMetrics()

	if *generateDBPath != "" {
		return generateSubscriberDB(cfg, *generateDBPath, logger)
	}

	if *validateDB {
		return validateSubscriberDB(cfg, logger)
	}

	if *resummarizeDay != "" {
		return resummarizeExistingDay(cfg, *resummarizeDay, logger)
	}

	rc := runGeneration(context.Background(), cfg, *cleanupAfterArchive, logger, metrics)
	return rc
}

func applyFlagOverrides(cfg *config.Config, fs *flag.FlagSet, subs *int, start *string, days *int,
	out *string, seed *int64, workers *int, rotateBytes *int64, tz *string, cellCount *int,
	cellCenter *string, cellRadiusKm *float64, moShareCall, moShareSMS *float64,
	subscriberDBPath *string, dbSize, dbHistoryDays *int) {

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "subs":
			cfg.Subs = *subs
		case "start":
			cfg.Start = *start
		case "days":
			cfg.Days = *days
		case "out":
			cfg.Out = *out
		case "seed":
			cfg.Seed = *seed
		case "workers":
			cfg.Workers = *workers
		case "rotate-bytes":
			cfg.RotateBytes = *rotateBytes
		case "tz":
			cfg.Tz = *tz
		case "cells":
			cfg.Cells = *cellCount
		case "cell-center":
			if lat, lon, ok := parseLatLon(*cellCenter); ok {
				cfg.CellCenterLat = lat
				cfg.CellCenterLon = lon
			}
		case "cell-radius-km":
			cfg.CellRadiusKm = *cellRadiusKm
		case "mo-share-call":
			cfg.MOShareCall = *moShareCall
		case "mo-share-sms":
			cfg.MOShareSMS = *moShareSMS
		case "subscriber-db":
			cfg.SubscriberDB = *subscriberDBPath
		case "db-size":
			cfg.DBSize = *dbSize
		case "db-history-days":
			cfg.DBHistoryDays = *dbHistoryDays
		}
	})
	if cfg.Out == "" {
		cfg.Out = "out"
	}
}

func parseLatLon(s string) (lat, lon float64, ok bool) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func generateSubscriberDB(cfg config.Config, path string, logger *zap.Logger) int {
	rng := rand.New(rand.NewSource(cfg.Seed))
	startMs, err := startEpochMillis(cfg.Start)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	size := cfg.DBSize
	if size <= 0 {
		size = cfg.Subs
	}
	genCfg := subscriberdb.GeneratorConfig{
		Size:                 size,
		HistoryDays:          cfg.DBHistoryDays,
		Prefixes:             cfg.Prefixes,
		MCCMNCPool:           cfg.MCCMNCPool,
		IMSILength:           cfg.IMSILength,
		MSISDNLength:         cfg.MSISDNLength,
		DeviceChangeAnnual:   0.3,
		NumberReleaseAnnual:  0.05,
		ReassignCooldownDays: 30,
		NewSubscriberAnnual:  0.1,
	}
	logHistory := subscriberdb.Generate(rng, genCfg, startMs)
	if err := subscriberdb.SaveCSV(path, logHistory); err != nil {
		logger.Error("write subscriber db failed", zap.Error(err))
		return exitIOError
	}
	logger.Info("subscriber db generated",
		zap.String("path", path),
		zap.Int("events", len(logHistory)),
	)
	return exitOK
}

func validateSubscriberDB(cfg config.Config, logger *zap.Logger) int {
	if cfg.SubscriberDB == "" {
		fmt.Fprintln(os.Stderr, "cdrgen: --validate-db requires --subscriber-db")
		return exitConfigError
	}
	evts, err := subscriberdb.LoadCSV(cfg.SubscriberDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIOError
	}
	if err := subscriberdb.Validate(evts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidationErr
	}

	trie := identity.NewPrefixTrie(append(append([]string{}, cfg.Prefixes...), cfg.ForeignPrefixes...))
	uniqueIMSI := map[string]struct{}{}
	for _, e := range evts {
		uniqueIMSI[e.IMSI] = struct{}{}
		if !trie.HasPrefix(e.MSISDN) {
			fmt.Fprintf(os.Stderr, "cdrgen: msisdn %q matches no configured prefix\n", e.MSISDN)
			return exitValidationErr
		}
	}
	logger.Info("subscriber db validated",
		zap.Int("events", len(evts)),
		zap.Int("unique_imsi", len(uniqueIMSI)),
	)
	return exitOK
}

// resummarizeExistingDay rebuilds summary.json for a day directory that
// was generated in an earlier, interrupted run by reducing whichever
// stats_shard*.json files shards managed to flush before failure,
// without re-running generation for that day.
func resummarizeExistingDay(cfg config.Config, dateStr string, logger *zap.Logger) int {
	if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("cdrgen: parse --resummarize: %w", err))
		return exitConfigError
	}
	dayDir := cfg.Out + "/" + dateStr
	summary, err := statsagg.ReduceFromDisk(dayDir, dateStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIOError
	}
	if err := statsagg.WriteSummary(dayDir, summary); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIOError
	}
	logger.Info("day resummarized from disk",
		zap.String("day", dateStr),
		zap.Int("shards", summary.Shards),
	)
	return exitOK
}

func startEpochMillis(startDate string) (int64, error) {
	if startDate == "" {
		return 0, fmt.Errorf("cdrgen: --start is required")
	}
	t, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0, fmt.Errorf("cdrgen: parse --start: %w", err)
	}
	return t.UTC().UnixMilli(), nil
}

func runGeneration(ctx context.Context, cfg config.Config, cleanupAfterArchive bool, logger *zap.Logger, metrics *observability.Metrics) int {
	if cfg.Days == 0 {
		logger.Info("days=0, nothing to generate")
		return exitOK
	}
	startDay, err := time.Parse("2006-01-02", cfg.Start)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("cdrgen: parse --start: %w", err))
		return exitConfigError
	}

	bootstrapRng := rand.New(rand.NewSource(cfg.Seed))

	var population []models.Subscriber
	var resolver events.IdentityResolver
	if cfg.SubscriberDB != "" {
		evts, err := subscriberdb.LoadCSV(cfg.SubscriberDB)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIOError
		}
		store, err := subscriberdb.Build(evts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitValidationErr
		}
		resolver.Store = store
		population = subscriberdb.PopulationFromStore(store, bootstrapRng, cfg.ContactPoolSize, cfg.ZipfExponent)
	} else {
		population = identity.BootstrapSubscribers(bootstrapRng, cfg.Subs, cfg.Prefixes, cfg.MCCMNCPool,
			cfg.IMSILength, cfg.MSISDNLength, cfg.ContactPoolSize, cfg.ZipfExponent)
	}

	catalogPath := cfg.Out + "/cells.csv"
	ratWeights := []cells.RATWeight{
		{RAT: models.RATWCDMA, Weight: 0.3},
		{RAT: models.RATLTE, Weight: 0.5},
		{RAT: models.RATNR, Weight: 0.2},
	}
	cellCatalog, err := cells.EnsureCatalog(catalogPath, rand.New(rand.NewSource(cfg.Seed)),
		cfg.Cells, cfg.CellCenterLat, cfg.CellCenterLon, cfg.CellRadiusKm, ratWeights)
	if err != nil {
		logger.Error("cell catalog failed", zap.Error(err))
		return exitIOError
	}
	cellIDs := make([]string, len(cellCatalog))
	for i, c := range cellCatalog {
		cellIDs[i] = c.ID
	}

	shaper, err := temporal.NewShaper(cfg.Tz, cfg.WeekdayDiurnal, cfg.WeekendDiurnal, cfg.Seasonality, cfg.SpecialDays)
	if err != nil {
		logger.Error("timezone setup failed", zap.Error(err))
		return exitConfigError
	}

	orchCfg := orchestrator.Config{
		OutDir:            cfg.Out,
		RotateBytes:       cfg.RotateBytes,
		Workers:           cfg.Workers,
		Seed:              cfg.Seed,
		MOShareCall:       cfg.MOShareCall,
		MOShareSMS:        cfg.MOShareSMS,
		CallDurationP50:   cfg.CallDurationP50,
		CallDurationP90:   cfg.CallDurationP90,
		Prefixes:          cfg.Prefixes,
		ForeignPrefixes:   cfg.ForeignPrefixes,
		InterconnectShare: cfg.InterconnectShare,
		MSISDNLength:      cfg.MSISDNLength,
		APNs:              cfg.APNs,
		APNWeights:        cfg.APNWeights,
		CallRatePerDay:    cfg.CallRatePerDay,
		SMSRatePerDay:     cfg.SMSRatePerDay,
		DataRatePerDay:    cfg.DataRatePerDay,
	}

	failed := false
	for d := 0; d < cfg.Days; d++ {
		day := startDay.AddDate(0, 0, d)
		summary, err := orchestrator.RunDay(ctx, orchCfg, day, d, population, shaper, &resolver, cellIDs, logger)
		if err != nil {
			logger.Error("day generation had shard failures", zap.String("day", summary.Day), zap.Error(err))
			failed = true
		}
		metrics.EventsGenerated.WithLabelValues("CALL").Add(float64(summary.Events.Call))
		metrics.EventsGenerated.WithLabelValues("SMS").Add(float64(summary.Events.SMS))
		metrics.EventsGenerated.WithLabelValues("DATA").Add(float64(summary.Events.Data))
		metrics.BytesWritten.Add(float64(summary.BytesInTotal + summary.BytesOutTotal))

		dayDir := cfg.Out + "/" + day.Format("2006-01-02")
		if _, err := archive.BundleDay(dayDir, cleanupAfterArchive); err != nil {
			logger.Warn("archive failed, raw outputs remain on disk", zap.String("day", summary.Day), zap.Error(err))
		}
	}

	if err := metrics.WriteSnapshot(cfg.Out); err != nil {
		logger.Warn("metrics snapshot failed", zap.Error(err))
	}

	if failed {
		return exitIOError
	}
	return exitOK
}
