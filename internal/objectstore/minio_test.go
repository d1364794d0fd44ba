package objectstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/internal/objectstore"
	"github.com/askiada/go-martian/pkg/stage"
)

func validConfig() objectstore.Config {
	return objectstore.Config{
		Endpoint:  "localhost:9000",
		AccessKey: "martian",
		SecretKey: "martian-secret",
		Bucket:    "outs",
		Prefix:    "runs",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate  func(c *objectstore.Config)
		wantErr error
	}{
		"valid": {
			mutate: func(*objectstore.Config) {},
		},
		"no endpoint": {
			mutate:  func(c *objectstore.Config) { c.Endpoint = " " },
			wantErr: objectstore.ErrEndpointRequired,
		},
		"no access key": {
			mutate:  func(c *objectstore.Config) { c.AccessKey = "" },
			wantErr: objectstore.ErrAccessKeyRequired,
		},
		"no secret key": {
			mutate:  func(c *objectstore.Config) { c.SecretKey = "" },
			wantErr: objectstore.ErrSecretKeyRequired,
		},
		"no bucket": {
			mutate:  func(c *objectstore.Config) { c.Bucket = "" },
			wantErr: objectstore.ErrBucketRequired,
		},
		"endpoint with scheme": {
			mutate:  func(c *objectstore.Config) { c.Endpoint = "http://localhost:9000" },
			wantErr: objectstore.ErrEndpointScheme,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewMinIO(t *testing.T) {
	t.Parallel()

	m, err := objectstore.NewMinIO(validConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, m)

	cfg := validConfig()
	cfg.Bucket = ""
	_, err = objectstore.NewMinIO(cfg, nil)
	require.ErrorIs(t, err, objectstore.ErrBucketRequired)
}

func TestKey(t *testing.T) {
	t.Parallel()

	md := stage.Metadata{RunID: "0f2a", Stage: "SORT_BY_BC"}
	chunk := stage.Metadata{RunID: "0f2a", Stage: "SORT_BY_BC", Phase: "main", Chunk: "chnk1"}

	tcs := map[string]struct {
		prefix string
		md     stage.Metadata
		path   string
		want   string
	}{
		"with prefix": {
			prefix: "runs",
			md:     md,
			path:   "/work/sorted.bam",
			want:   "runs/SORT_BY_BC/0f2a/sorted.bam",
		},
		"slashes trimmed": {
			prefix: "/runs/",
			md:     md,
			path:   "count",
			want:   "runs/SORT_BY_BC/0f2a/count",
		},
		"no prefix": {
			md:   md,
			path: "/work/count",
			want: "SORT_BY_BC/0f2a/count",
		},
		"chunk": {
			prefix: "runs",
			md:     chunk,
			path:   "/work/chnk1/sorted.bam",
			want:   "runs/SORT_BY_BC/0f2a/chnk1/sorted.bam",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, objectstore.Key(tc.prefix, tc.md, tc.path))
		})
	}
}

func TestKeyChunksAndJoinDiffer(t *testing.T) {
	t.Parallel()

	keys := map[string]bool{}
	for _, c := range []string{"chnk0", "chnk1", ""} {
		md := stage.Metadata{RunID: "0f2a", Stage: "SUM", Chunk: c}
		keys[objectstore.Key("runs", md, "/work/"+c+"/total")] = true
	}
	assert.Len(t, keys, 3)
}
