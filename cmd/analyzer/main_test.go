package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatrisk/internal/app/bootstrap"
	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

func TestSplitDates(t *testing.T) {
	assert.Nil(t, splitDates(""))
	assert.Equal(t, []string{"2026-01-13", "2026-01-14"}, splitDates(" 2026-01-13, ,2026-01-14 "))
}

func TestRunClassifiesSourceDir(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	day := `[{"id": 9, "messages": [{"time": "10:01", "sender": "Service", "content": "加我微信"}]}]`
	require.NoError(t, os.WriteFile(filepath.Join(src, "2026-01-13.json"), []byte(day), 0o644))

	cfg := &appconfig.Config{
		SourceDir:           src,
		DataDir:             out,
		StoreBackend:        bootstrap.BackendFS,
		LockBackend:         bootstrap.LockLocal,
		LockTimeout:         time.Second,
		Classifier:          "rules",
		AnalyzerConcurrency: 1,
	}
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	runner, cleanup, err := buildRunner(context.Background(), cfg, bootstrap.NewAWSLoader(cfg), prometheus.NewRegistry(), logger)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, runOnce(context.Background(), runner, nil, logger))

	data, err := os.ReadFile(filepath.Join(out, "2026-01-13.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"is_risk": true`)

	err = runOnce(context.Background(), runner, []string{"2026-02-30"}, logger)
	assert.Error(t, err)
}

func TestRunUnknownMode(t *testing.T) {
	cfg := &appconfig.Config{StoreBackend: bootstrap.BackendFS, LockBackend: bootstrap.LockLocal, DataDir: t.TempDir()}
	err := run(context.Background(), cfg, "sideways", nil, prometheus.NewRegistry(), logging.NewWithWriter("error", &bytes.Buffer{}))
	assert.ErrorContains(t, err, "unknown mode")
}

func TestWorkerRequiresQueueURL(t *testing.T) {
	cfg := &appconfig.Config{StoreBackend: bootstrap.BackendFS, LockBackend: bootstrap.LockLocal, DataDir: t.TempDir()}
	err := run(context.Background(), cfg, "worker", nil, prometheus.NewRegistry(), logging.NewWithWriter("error", &bytes.Buffer{}))
	assert.ErrorContains(t, err, "ANALYZER_QUEUE_URL")
}
