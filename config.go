package introspector

import (
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/introspector/scope"
	"github.com/sarchlab/introspector/taint"
)

// Environment variables that override the configuration file.
const (
	EnvRecordingPath  = "INTROSPECTOR_RECORDING_PATH"
	EnvCaptureContext = "INTROSPECTOR_CAPTURE_CONTEXT"
	EnvTaintHeader    = "INTROSPECTOR_TAINT_HEADER"
	EnvLogVerbosity   = "INTROSPECTOR_LOG_VERBOSITY"
)

// DefaultTraceHeader is the request header that names the trace of a
// request.
const DefaultTraceHeader = "X-Introspector-Trace"

// TraceConfig configures execution tracing.
type TraceConfig struct {
	Scope          map[string]any `yaml:"scope"`
	CaptureContext bool           `yaml:"capture_context"`
	WithSource     bool           `yaml:"with_source"`
	Header         string         `yaml:"header"`
}

// CoverageConfig configures coverage aggregation.
type CoverageConfig struct {
	Scope       map[string]any `yaml:"scope"`
	Parallelism int            `yaml:"parallelism"`
}

// SiteConfig names an instrumented call site.
type SiteConfig struct {
	Type   string `yaml:"type"`
	Method string `yaml:"method"`
}

// TaintConfig configures taint tracking.
type TaintConfig struct {
	Scope        map[string]any `yaml:"scope"`
	Sites        []SiteConfig   `yaml:"sites"`
	MaxDepth     int            `yaml:"max_depth"`
	MarkerHeader string         `yaml:"marker_header"`
}

// RecordingConfig configures where artifacts are recorded. An empty path
// disables recording.
type RecordingConfig struct {
	Path string `yaml:"path"`
}

// Config is the configuration of an Engine.
type Config struct {
	Trace     TraceConfig     `yaml:"trace"`
	Coverage  CoverageConfig  `yaml:"coverage"`
	Taint     TaintConfig     `yaml:"taint"`
	Recording RecordingConfig `yaml:"recording"`

	// LogVerbosity enables logr V-levels up to this value.
	LogVerbosity int `yaml:"log_verbosity"`
}

// DefaultConfig returns the configuration used for missing fields.
func DefaultConfig() Config {
	return Config{
		Trace:    TraceConfig{Header: DefaultTraceHeader},
		Coverage: CoverageConfig{Parallelism: 8},
		Taint: TaintConfig{
			MaxDepth:     taint.DefaultMaxDepth,
			MarkerHeader: taint.DefaultMarkerHeader,
		},
	}
}

// ParseConfig decodes a YAML configuration over the defaults and checks the
// scopes.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()

	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "decoding configuration")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// LoadConfig reads the YAML file at path, then applies the overrides found
// in the environment and in envFiles. Missing env files are ignored; an
// empty path gives the defaults.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	c := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading %s", path)
		}

		c, err = ParseConfig(data)
		if err != nil {
			return Config{}, errors.Wrapf(err, "loading %s", path)
		}
	}

	env, err := readEnv(envFiles)
	if err != nil {
		return Config{}, err
	}

	if err := c.applyEnv(env); err != nil {
		return Config{}, err
	}

	return c, nil
}

// readEnv merges the env files with the process environment. The process
// environment wins.
func readEnv(files []string) (map[string]string, error) {
	env := map[string]string{}

	for _, f := range files {
		values, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", f)
		}

		for k, v := range values {
			env[k] = v
		}
	}

	for _, k := range []string{
		EnvRecordingPath, EnvCaptureContext, EnvTaintHeader, EnvLogVerbosity,
	} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}

	return env, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v, ok := env[EnvRecordingPath]; ok {
		c.Recording.Path = v
	}

	if v, ok := env[EnvTaintHeader]; ok && v != "" {
		c.Taint.MarkerHeader = v
	}

	if v, ok := env[EnvCaptureContext]; ok {
		capture, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvCaptureContext)
		}

		c.Trace.CaptureContext = capture
	}

	if v, ok := env[EnvLogVerbosity]; ok {
		verbosity, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvLogVerbosity)
		}

		c.LogVerbosity = verbosity
	}

	return nil
}

// Validate checks that every scope of the configuration can be built.
func (c Config) Validate() error {
	_, err := c.scopes()
	return err
}

type scopes struct {
	trace, coverage, taint *scope.Scope
}

func (c Config) scopes() (scopes, error) {
	var (
		s   scopes
		err error
	)

	if s.trace, err = scope.New(c.Trace.Scope); err != nil {
		return s, errors.Wrap(err, "trace scope")
	}

	if s.coverage, err = scope.New(c.Coverage.Scope); err != nil {
		return s, errors.Wrap(err, "coverage scope")
	}

	if s.taint, err = scope.New(c.Taint.Scope); err != nil {
		return s, errors.Wrap(err, "taint scope")
	}

	return s, nil
}
