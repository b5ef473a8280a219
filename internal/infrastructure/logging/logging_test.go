package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/ptyd/internal/shared/id"
)

func TestFromConfigLevels(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		wantLevel zapcore.Level
	}{
		{name: "empty level is info", cfg: Config{}, wantLevel: zapcore.InfoLevel},
		{name: "development", cfg: Config{Level: "debug", Development: true}, wantLevel: zapcore.DebugLevel},
		{name: "warn level", cfg: Config{Level: "warn"}, wantLevel: zapcore.WarnLevel},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := FromConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Error(t, tt.cfg.Validate())
				return
			}
			require.NoError(t, err)
			assert.NoError(t, tt.cfg.Validate())
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestJSONOutputCarriesSessionFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptyd.log")
	logger, err := FromConfig(Config{Level: "info", Output: path})
	require.NoError(t, err)

	sub := id.SubscriberID("sub_01")
	logger.Named("stream").Info("Stream subscriber added",
		Segment("seg-1"),
		Subscriber(sub),
		Generation(3),
	)
	logger.Debug("filtered out", Segment("seg-1"))
	logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, sonic.Unmarshal(data, &entry))
	assert.Equal(t, "Stream subscriber added", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "stream", entry["logger"])
	assert.Equal(t, "seg-1", entry[SegmentKey])
	assert.Equal(t, "sub_01", entry[SubscriberKey])
	assert.EqualValues(t, 3, entry[GenerationKey])
	assert.Contains(t, entry, "timestamp")
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, zap.String("segment_id", "abc"), Segment("abc"))
	assert.Equal(t, zap.Uint64("generation", 7), Generation(7))
	assert.Equal(t, "subscriber_id", Subscriber(id.SubscriberID("x")).Key)
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	require.NotNil(t, logger)
	logger.Info("discarded", Segment("seg"))
	logger.Sync()
}
