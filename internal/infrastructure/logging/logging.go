package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the logging section of the daemon configuration.
type Config struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
	// Output is "stderr", "stdout" or a file path. Empty means stderr.
	Output string `envconfig:"LOG_OUTPUT" yaml:"output"`
}

// Validate reports an unknown level.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.level()); err != nil {
		return fmt.Errorf("invalid config: log level %q", c.Level)
	}
	return nil
}

func (c Config) level() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Logger is the daemon logger.
type Logger struct {
	*zap.Logger
}

// FromConfig builds the logger described by cfg. Production logs are JSON;
// development logs are coloured console lines with stack traces on warnings.
func FromConfig(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.level())
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	output := cfg.Output
	if output == "" {
		output = "stderr"
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig = jsonEncoder()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: logger}, nil
}

// jsonEncoder keeps the field names log shippers already index on.
func jsonEncoder() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Sync flushes buffered entries. Errors from syncing a terminal
// (ENOTTY, EINVAL) are expected and ignored.
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

// Field keys shared by every component that logs about a session.
const (
	SegmentKey    = "segment_id"
	SubscriberKey = "subscriber_id"
	GenerationKey = "generation"
)

// Segment tags an entry with a segment id.
func Segment(id string) zap.Field {
	return zap.String(SegmentKey, id)
}

// Subscriber tags an entry with a stream subscriber id.
func Subscriber(id fmt.Stringer) zap.Field {
	return zap.Stringer(SubscriberKey, id)
}

// Generation tags an entry with a session generation.
func Generation(gen uint64) zap.Field {
	return zap.Uint64(GenerationKey, gen)
}
