package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: false, Writer: &out})
	Error("nothing to see")
	require.Zero(t, out.Len())
}

func TestInitJSONWithAttrs(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, JSON: true, Level: slog.LevelInfo, Writer: &out, Attrs: []any{"instance", "abc"}})
	t.Cleanup(func() { Init(Options{}) })

	Debug("filtered")
	Info("ramdisk created", "size", 4096)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	require.Equal(t, "ramdisk created", rec["msg"])
	require.Equal(t, "abc", rec["instance"])
	require.EqualValues(t, 4096, rec["size"])
}

func TestInitTextLevel(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, Level: slog.LevelWarn, Writer: &out})
	t.Cleanup(func() { Init(Options{}) })

	Info("quiet")
	require.Zero(t, out.Len())
	Warn("loud", "code", -12)
	require.Contains(t, out.String(), "loud")
	require.Contains(t, out.String(), "code=-12")
}
