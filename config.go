package fcs

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of the environment variables read by LoadConfig.
const EnvPrefix = "FCS"

// Config holds the decoder settings that can be set from a file or the environment.
type Config struct {
	// MaxFileSize accepts human readable sizes, e.g. "512MiB" or "2GB".
	MaxFileSize string `mapstructure:"max_file_size"`
	MaxEvents   int    `mapstructure:"max_events"`
	// Workers of 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_file_size", humanize.IBytes(uint64(DefaultMaxFileSize)))
	v.SetDefault("max_events", DefaultMaxEvents)
	v.SetDefault("workers", 0)
}

// LoadConfig reads the settings from the file at path, when path is not empty,
// and from FCS_* environment variables, which take precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if _, err := c.maxFileSize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) maxFileSize() (int64, error) {
	if c.MaxFileSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid max_file_size %q", c.MaxFileSize)
	}
	return int64(n), nil
}

// Options returns the decoder options for c, followed by extra.
func (c *Config) Options(log *zap.Logger, extra ...Option) ([]Option, error) {
	n, err := c.maxFileSize()
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithLogger(log),
		WithMaxFileSize(n),
		WithMaxEvents(c.MaxEvents),
		WithWorkers(c.Workers),
	}
	return append(opts, extra...), nil
}
