// Package config holds the runner settings.
//
// Values are resolved from, by increasing precedence: defaults, a YAML file, the environment (optionally filled
// from a .env file) and command line flags. Flags are applied by the caller.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"

	"github.com/ufal/udpipe/pkg/udpipe"
)

// Backend names.
const (
	BackendAuto = "auto"
	BackendExec = "exec"
	BackendREST = "rest"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "UDPIPE_"

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrUnknownEncoding = errors.New("unknown encoding")
	ErrNegative        = errors.New("must not be negative")
)

// Config is the runner configuration.
type Config struct {
	Backend string `yaml:"backend"`
	Binary  string `yaml:"binary"`
	// Tagger and Parser hold the stage options. nil keeps the pipeline default, an empty string skips the stage.
	Tagger    *string       `yaml:"tagger"`
	Parser    *string       `yaml:"parser"`
	KeepEmpty bool          `yaml:"keep_empty"`
	Encoding  string        `yaml:"encoding"`
	Timeout   time.Duration `yaml:"timeout"`
	Rate      float64       `yaml:"rate"`
	LogLevel  string        `yaml:"log_level"`
	Tee       string        `yaml:"tee"`
	Stats     bool          `yaml:"stats"`
	Graph     string        `yaml:"graph"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:  BackendAuto,
		Binary:   "udpipe",
		Encoding: "utf-8",
		LogLevel: logrus.WarnLevel.String(),
	}
}

// Load returns the defaults overridden by the YAML file at path. An empty path gives the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "unable to read config")
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to parse config %s", path)
	}

	return cfg, nil
}

// LoadDotEnv adds the variables of the given .env files, ".env" by default, to the environment. Missing files are
// ignored and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "unable to load %s", path)
		}
	}

	return nil
}

// ApplyEnv overrides cfg with the UDPIPE_* variables found by lookup, os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(key string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("BACKEND", &c.Backend)
	str("BINARY", &c.Binary)
	str("ENCODING", &c.Encoding)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup(EnvPrefix + "KEEP_EMPTY"); ok {
		keep, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %sKEEP_EMPTY", EnvPrefix)
		}
		c.KeepEmpty = keep
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %sTIMEOUT", EnvPrefix)
		}
		c.Timeout = timeout
	}
	if v, ok := lookup(EnvPrefix + "RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %sRATE", EnvPrefix)
		}
		c.Rate = rate
	}

	return nil
}

// Validate checks the values that can not be checked while parsing.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendExec, BackendREST:
	default:
		return errors.Wrapf(ErrUnknownBackend, "%q", c.Backend)
	}
	if _, err := c.TextEncoding(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if c.Timeout < 0 {
		return errors.Wrap(ErrNegative, "timeout")
	}
	if c.Rate < 0 {
		return errors.Wrap(ErrNegative, "rate")
	}

	return nil
}

// TextEncoding returns the encoding of stdin and stdout, nil when it is UTF-8 and needs no conversion.
func (c Config) TextEncoding() (encoding.Encoding, error) {
	enc, err := htmlindex.Get(c.Encoding)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownEncoding, "%q", c.Encoding)
	}
	name, err := htmlindex.Name(enc)
	if err == nil && name == "utf-8" {
		return nil, nil
	}

	return enc, nil
}

// Pipeline returns the pipeline configuration for the given formats.
func (c Config) Pipeline(input, output string) udpipe.PipelineConfig {
	return udpipe.PipelineConfig{
		Input:  input,
		Tagger: stage(c.Tagger),
		Parser: stage(c.Parser),
		Output: output,
	}
}

func stage(opts *string) udpipe.Option {
	if opts == nil {
		return udpipe.Default
	}

	return udpipe.Explicit(*opts)
}
