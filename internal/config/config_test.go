package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/internal/config"
	"github.com/askiada/go-martian/internal/objectstore"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "martian.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mropath: [/a, /b]
registry:
  skip_invalid: true
run:
  concurrency: 8
logging:
  level: debug
  format: json
objectstore:
  enabled: true
  access_key: key
  secret_key: secret
  prefix: out
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/b"}, cfg.MROPath)
	assert.True(t, cfg.Registry.SkipInvalid)
	assert.Equal(t, 4, cfg.Registry.Parallelism)
	assert.Equal(t, 8, cfg.Run.Concurrency)
	assert.Equal(t, ".", cfg.Run.FilesDir)
	assert.Equal(t, config.Logging{Level: "debug", Format: "json"}, cfg.Logging)
	assert.True(t, cfg.ObjectStore.Enabled)
	assert.Equal(t, objectstore.Config{
		Endpoint:  "localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "martian-outs",
		Prefix:    "out",
	}, cfg.ObjectStore.Config)
	require.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "martian.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mropath: [unterminated"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MROPATH", "/x"+string(os.PathListSeparator)+"/y")
	t.Setenv("MARTIAN_LOG_LEVEL", "warn")
	t.Setenv("MARTIAN_FILES_DIR", "/work")
	t.Setenv("MARTIAN_CONCURRENCY", "2")
	t.Setenv("MARTIAN_S3_ENDPOINT", "s3.local:9000")
	t.Setenv("MARTIAN_S3_ACCESS_KEY", "ak")
	t.Setenv("MARTIAN_S3_SECRET_KEY", "sk")
	t.Setenv("MARTIAN_S3_BUCKET", "bucket")
	t.Setenv("MARTIAN_S3_ENABLED", "true")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"/x", "/y"}, cfg.MROPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/work", cfg.Run.FilesDir)
	assert.Equal(t, 2, cfg.Run.Concurrency)
	assert.True(t, cfg.ObjectStore.Enabled)
	assert.Equal(t, "s3.local:9000", cfg.ObjectStore.Endpoint)
	assert.Equal(t, "ak", cfg.ObjectStore.AccessKey)
	assert.Equal(t, "sk", cfg.ObjectStore.SecretKey)
	assert.Equal(t, "bucket", cfg.ObjectStore.Bucket)
}

func TestEnvOverridesInvalid(t *testing.T) {
	t.Setenv("MARTIAN_CONCURRENCY", "many")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARTIAN_CONCURRENCY")
}

func TestPath(t *testing.T) {
	t.Setenv("MARTIAN_CONFIG", "")
	assert.Equal(t, config.DefaultPath, config.Path(""))

	t.Setenv("MARTIAN_CONFIG", "/etc/martian.yaml")
	assert.Equal(t, "/etc/martian.yaml", config.Path(""))
	assert.Equal(t, "explicit.yaml", config.Path("explicit.yaml"))
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "martian.yaml")
	cfg := config.DefaultConfig()
	cfg.MROPath = []string{"/pipelines"}
	cfg.ObjectStore.Enabled = true
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bucket: martian-outs")
	assert.Contains(t, string(data), "enabled: true")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(c *config.Config)
		wantErr error
	}{
		"defaults": {
			mutate: func(*config.Config) {},
		},
		"empty search path": {
			mutate:  func(c *config.Config) { c.MROPath = []string{" "} },
			wantErr: config.ErrEmptySearchPath,
		},
		"zero parallelism": {
			mutate:  func(c *config.Config) { c.Registry.Parallelism = 0 },
			wantErr: config.ErrInvalidParallelism,
		},
		"negative concurrency": {
			mutate:  func(c *config.Config) { c.Run.Concurrency = -1 },
			wantErr: config.ErrInvalidConcurrency,
		},
		"bad level": {
			mutate:  func(c *config.Config) { c.Logging.Level = "loud" },
			wantErr: config.ErrInvalidLogLevel,
		},
		"bad format": {
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: config.ErrInvalidLogFormat,
		},
		"object store enabled without credentials": {
			mutate:  func(c *config.Config) { c.ObjectStore.Enabled = true },
			wantErr: objectstore.ErrAccessKeyRequired,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
