// Package statsagg accumulates per-shard stats and reduces them into
// the day's summary.json, adapted from a map-keyed aggregation pattern
// generalized from per-path metric buckets to per-event-type counters.
package statsagg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shiimaxx/cdrgen/internal/models"
)

// WriteShardStats persists each shard's stats to
// stats_shard<ddd>.json in dayDir.
func WriteShardStats(dayDir string, shards []models.ShardStats) error {
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return fmt.Errorf("statsagg: mkdir day dir: %w", err)
	}
	for _, s := range shards {
		name := fmt.Sprintf("stats_shard%03d.json", s.ShardIndex)
		if err := writeJSON(filepath.Join(dayDir, name), s); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary persists the reduced day summary to summary.json.
func WriteSummary(dayDir string, summary models.DaySummary) error {
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return fmt.Errorf("statsagg: mkdir day dir: %w", err)
	}
	return writeJSON(filepath.Join(dayDir, "summary.json"), summary)
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("statsagg: create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("statsagg: encode %s: %w", path, err)
	}
	return nil
}

// ReduceFromDisk rebuilds a DaySummary by scanning previously written
// stats_shard*.json files in dayDir. Used when re-summarizing a day
// without re-running generation.
func ReduceFromDisk(dayDir, dateStr string) (models.DaySummary, error) {
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		return models.DaySummary{}, fmt.Errorf("statsagg: read day dir: %w", err)
	}
	summary := models.DaySummary{Day: dateStr}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matched, err := filepath.Match("stats_shard*.json", e.Name())
		if err != nil {
			return summary, err
		}
		if !matched {
			continue
		}
		var s models.ShardStats
		data, err := os.ReadFile(filepath.Join(dayDir, e.Name()))
		if err != nil {
			return summary, fmt.Errorf("statsagg: read %s: %w", e.Name(), err)
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return summary, fmt.Errorf("statsagg: parse %s: %w", e.Name(), err)
		}
		summary.Shards++
		summary.Merge(s)
	}
	return summary, nil
}
