package logger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_WritesStructuredEntriesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	l := New(Config{Level: "info", Format: "json", Output: path, MaxSize: 1})
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "Order terminated", map[string]interface{}{"orderID": "o-1", "closeType": "STOP_LOSS"})
	l.WithComponent("controller").Warn(ctx, "Order to cancel was not found")
	l.Error(ctx, errors.New("boom"), "Failed to cancel order", nil)
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 3)

	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "Order terminated", entries[0]["msg"])
	assert.Equal(t, "o-1", entries[0]["orderID"])
	assert.Equal(t, "STOP_LOSS", entries[0]["closeType"])

	assert.Equal(t, "warning", entries[1]["level"])
	assert.Equal(t, "controller", entries[1]["component"])

	assert.Equal(t, "error", entries[2]["level"])
	assert.Equal(t, "boom", entries[2]["error"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"DEBUG":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"Warning": logrus.WarnLevel,
		"WARN":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
		"":        logrus.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_StdoutHasNothingToClose(t *testing.T) {
	l := New(Config{Level: "debug"})
	assert.NoError(t, l.Close())
}
