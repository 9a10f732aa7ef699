package statsagg

import (
	"path/filepath"
	"testing"

	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteShardStatsAndSummaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dayDir := filepath.Join(dir, "2025-01-01")
	shards := []models.ShardStats{
		{ShardIndex: 0, Events: models.EventCounts{Call: 10, SMS: 5, Data: 2}, BytesInTotal: 100, BytesOutTotal: 50, DurationSecTotal: 300},
		{ShardIndex: 1, Events: models.EventCounts{Call: 8, SMS: 4, Data: 3}, BytesInTotal: 200, BytesOutTotal: 90, DurationSecTotal: 250},
	}
	require.NoError(t, WriteShardStats(dayDir, shards))

	summary := models.DaySummary{Day: "2025-01-01", Shards: 2}
	for _, s := range shards {
		summary.Merge(s)
	}
	require.NoError(t, WriteSummary(dayDir, summary))

	reduced, err := ReduceFromDisk(dayDir, "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(18), reduced.Events.Call)
	assert.Equal(t, int64(9), reduced.Events.SMS)
	assert.Equal(t, int64(5), reduced.Events.Data)
	assert.Equal(t, int64(300), reduced.BytesInTotal)
	assert.Equal(t, int64(140), reduced.BytesOutTotal)
	assert.Equal(t, int64(550), reduced.DurationSecTotal)
	assert.Equal(t, 2, reduced.Shards)
}

func TestSummaryRecordsFailedShards(t *testing.T) {
	summary := models.DaySummary{Day: "2025-01-01"}
	summary.Merge(models.ShardStats{ShardIndex: 3, Failed: true, FailureReason: "disk full"})
	assert.Equal(t, []int{3}, summary.FailedShards)
}
