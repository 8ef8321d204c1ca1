package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config uses defaults", cfg: nil},
		{name: "json at debug", cfg: &Config{Level: "debug", Format: "json", OutputPaths: []string{"stderr"}}},
		{name: "console at warn", cfg: &Config{Level: "warn", Format: "console"}},
		{name: "bad level", cfg: &Config{Level: "loud", Format: "json"}, wantErr: true},
		{name: "bad format", cfg: &Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestNewTestLogger(t *testing.T) {
	logger, logs := NewTestLogger()

	logger.Info("recorded failure", zap.String("id", "fail_1"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "recorded failure", entry.Message)
	assert.Equal(t, "fail_1", entry.ContextMap()["id"])
}
