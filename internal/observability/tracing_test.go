package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProviderWritesTraceFile(t *testing.T) {
	dir := t.TempDir()
	tp, err := NewTracerProvider(dir, "test-run")
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "unit-of-work")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "trace.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "unit-of-work")
}
