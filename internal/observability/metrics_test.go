package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshotProducesTextExposition(t *testing.T) {
	m := NewMetrics()
	m.EventsGenerated.WithLabelValues("CALL").Add(3)
	m.BytesWritten.Add(1024)
	m.SubscribersSkipped.Inc()
	m.ShardDuration.Observe(1.5)

	dir := t.TempDir()
	require.NoError(t, m.WriteSnapshot(dir))

	data, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "cdrgen_events_generated_total")
	assert.Contains(t, string(data), "cdrgen_bytes_written_total")
}
