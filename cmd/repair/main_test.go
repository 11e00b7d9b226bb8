package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

func TestRepairDays(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	raw := `{"info": "ID：7390012", "date": "2026-01-13 14:50", "messages": [
		{"time": "", "sender": "System", "type": "system", "content": "姓名：\n黄*"},
		{"time": "14:42:56", "sender": "User", "content": "在吗"},
		{"time": "", "sender": "Service", "content": "在的"}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(src, "2026-01-13.json"), []byte(raw), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "2026-01-14.json"), []byte(`not json`), 0o644))

	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	repaired, failed, err := repairDays(context.Background(), daystore.NewFSBackend(src), daystore.NewFSBackend(out), logger)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, 1, failed)

	data, err := os.ReadFile(filepath.Join(out, "2026-01-13.json"))
	require.NoError(t, err)
	var convs []map[string]any
	require.NoError(t, json.Unmarshal(data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "7390012", convs[0]["id"])
	assert.Equal(t, "2026-01-13 14:50", convs[0]["last_time"])
	assert.Equal(t, "黄*", convs[0]["customer_name"])

	msgs := convs[0]["messages"].([]any)
	assert.Equal(t, "00:00", msgs[0].(map[string]any)["time"])
	assert.Equal(t, "14:42", msgs[1].(map[string]any)["time"])
	assert.Equal(t, "14:42", msgs[2].(map[string]any)["time"])

	_, err = os.Stat(filepath.Join(out, "2026-01-14.json"))
	assert.True(t, os.IsNotExist(err))
}
