package main

import (
	"os"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/histdb/tdigest/frame"
)

// Config is the file form of the command line options. Flags given on the
// command line win over the file.
type Config struct {
	Compression float64   `yaml:"compression"`
	Quantiles   []float64 `yaml:"quantiles"`
	Codec       string    `yaml:"codec"` // binary or msgpack
	Frame       string    `yaml:"frame"` // none, lz4 or zstd
	LogLevel    string    `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Compression: 100,
		Quantiles:   []float64{0.5, 0.9, 0.99},
		Codec:       codecBinary,
		Frame:       "none",
		LogLevel:    "warn",
	}
}

// loadConfig reads path over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errs.Wrap(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Errorf("parsing %s: %v", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !(c.Compression > 0) {
		return errs.Errorf("compression must be positive: %v", c.Compression)
	}
	if len(c.Quantiles) == 0 {
		return errs.Errorf("no quantiles configured")
	}
	for _, q := range c.Quantiles {
		if !(q >= 0 && q <= 1) {
			return errs.Errorf("quantile out of range: %v", q)
		}
	}
	switch c.Codec {
	case codecBinary, codecMsgpack:
	default:
		return errs.Errorf("unknown codec: %q", c.Codec)
	}
	if _, err := frame.ParseKind(c.Frame); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errs.Wrap(err)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	return log, errs.Wrap(err)
}
