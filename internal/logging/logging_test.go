package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_ConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "scaffold.log")

	l, err := Init(Config{Level: "info", File: logFile, Output: &buf, NoColor: true})
	require.NoError(t, err)
	l.Info("File created: out/sess/a.txt")
	l.Debug("hidden")
	Sync(l)

	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "File created: out/sess/a.txt")
	assert.NotContains(t, buf.String(), "hidden")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"File created: out/sess/a.txt"`)

	assert.Same(t, l, zap.L())
}

func TestInit_BadLevel(t *testing.T) {
	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestSink_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewSink(zap.New(core))
	s.Info("created")
	s.Warn("syntax")
	s.Error("failed")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "failed", entries[2].Message)
}
