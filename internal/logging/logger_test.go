package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestNew_FileSinkAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Config{Level: "info", Format: "console", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible", zap.String("channel", "1111"))

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, "debug", logger.Level())
	logger.Debug("now visible")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"channel":"1111"`)
	assert.Contains(t, out, "now visible")

	assert.Error(t, logger.SetLevel("nope"))
	assert.Equal(t, "debug", logger.Level())
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	assert.NoError(t, l.SetLevel("error"))
}
