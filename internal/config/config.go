// Package config loads the martian configuration file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-martian/internal/objectstore"
)

// DefaultPath is read when neither --config nor MARTIAN_CONFIG is set.
const DefaultPath = "martian.yaml"

var (
	ErrEmptySearchPath    = errors.New("mropath must list at least one directory")
	ErrInvalidParallelism = errors.New("registry parallelism must be positive")
	ErrInvalidConcurrency = errors.New("run concurrency must be positive")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
)

// Config holds all martian settings.
type Config struct {
	MROPath     []string    `yaml:"mropath"`
	Registry    Registry    `yaml:"registry"`
	Run         Run         `yaml:"run"`
	Logging     Logging     `yaml:"logging"`
	ObjectStore ObjectStore `yaml:"objectstore"`
}

type Registry struct {
	// SkipInvalid logs and skips files that fail to parse instead of failing the load.
	SkipInvalid bool `yaml:"skip_invalid"`
	Parallelism int  `yaml:"parallelism"`
}

type Run struct {
	FilesDir    string `yaml:"files_dir"`
	Concurrency int    `yaml:"concurrency"`
	// Interpreter allows loading Go sources found in stage source directories.
	Interpreter bool `yaml:"interpreter"`
}

type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type ObjectStore struct {
	objectstore.Config `yaml:",inline"`

	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MROPath: []string{"./mro"},
		Registry: Registry{
			Parallelism: 4,
		},
		Run: Run{
			FilesDir:    ".",
			Concurrency: 4,
			Interpreter: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		ObjectStore: ObjectStore{
			Config: objectstore.Config{
				Endpoint: "localhost:9000",
				Bucket:   "martian-outs",
				Prefix:   "runs",
			},
		},
	}
}

// Path returns the configuration file to read: explicit, then MARTIAN_CONFIG, then DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return String("MARTIAN_CONFIG", DefaultPath)
}

// Load reads the YAML file at path on top of the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrapf(err, "unable to read config %s", path)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "unable to parse config %s", path)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "unable to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "unable to marshal config")
	}

	return errors.Wrap(os.WriteFile(path, data, 0o600), "unable to write config")
}

func (c *Config) applyEnvOverrides() error {
	if v := String("MROPATH", ""); v != "" {
		c.MROPath = filepath.SplitList(v)
	}
	c.Logging.Level = String("MARTIAN_LOG_LEVEL", c.Logging.Level)
	c.Run.FilesDir = String("MARTIAN_FILES_DIR", c.Run.FilesDir)

	concurrency, err := Int("MARTIAN_CONCURRENCY", c.Run.Concurrency)
	if err != nil {
		return err
	}
	c.Run.Concurrency = concurrency

	store := &c.ObjectStore
	store.Endpoint = String("MARTIAN_S3_ENDPOINT", store.Endpoint)
	store.AccessKey = String("MARTIAN_S3_ACCESS_KEY", store.AccessKey)
	store.SecretKey = String("MARTIAN_S3_SECRET_KEY", store.SecretKey)
	store.Bucket = String("MARTIAN_S3_BUCKET", store.Bucket)

	enabled, err := Bool("MARTIAN_S3_ENABLED", store.Enabled)
	if err != nil {
		return err
	}
	store.Enabled = enabled

	return nil
}

// Validate checks the configuration. Object store settings are only checked when enabled.
func (c *Config) Validate() error {
	if len(nonEmpty(c.MROPath)) == 0 {
		return ErrEmptySearchPath
	}
	if c.Registry.Parallelism <= 0 {
		return errors.Wrapf(ErrInvalidParallelism, "got %d", c.Registry.Parallelism)
	}
	if c.Run.Concurrency <= 0 {
		return errors.Wrapf(ErrInvalidConcurrency, "got %d", c.Run.Concurrency)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(ErrInvalidLogLevel, "%q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalidLogFormat, "%q", c.Logging.Format)
	}

	if c.ObjectStore.Enabled {
		return errors.Wrap(c.ObjectStore.Config.Validate(), "objectstore")
	}
	return nil
}

func nonEmpty(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if strings.TrimSpace(d) != "" {
			out = append(out, d)
		}
	}
	return out
}
