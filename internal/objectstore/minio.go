// Package objectstore publishes stage output files to an S3 compatible bucket.
package objectstore

import (
	"context"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-martian/pkg/stage"
)

// MinIO uploads every published file under <prefix>/<stage>/<run_id>/<file>.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewMinIO validates cfg and builds a client. No request is sent until EnsureBucket or Publish.
func NewMinIO(cfg Config, logger *zap.Logger) (*MinIO, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create minio client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MinIO{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return errors.Wrapf(err, "unable to check bucket %s", m.bucket)
	}
	if exists {
		return nil
	}

	err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region})
	return errors.Wrapf(err, "unable to create bucket %s", m.bucket)
}

// Publish uploads the file at p.
func (m *MinIO) Publish(ctx context.Context, md stage.Metadata, p string) error {
	key := Key(m.prefix, md, p)
	info, err := m.client.FPutObject(ctx, m.bucket, key, p, minio.PutObjectOptions{ContentType: contentType(p)})
	if err != nil {
		return errors.Wrapf(err, "unable to upload %s", key)
	}

	m.logger.Debug("output published",
		zap.String("run_id", md.RunID),
		zap.String("bucket", m.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size),
	)
	return nil
}

// Key is the object key of the file at p: <prefix>/<stage>/<run_id>/[<chunk>/]<file name>. An
// empty prefix is omitted; chunk mains land under their chunk name so they never overwrite each
// other or the join.
func Key(prefix string, md stage.Metadata, p string) string {
	parts := []string{md.Stage, md.RunID}
	if md.Chunk != "" {
		parts = append(parts, md.Chunk)
	}
	parts = append(parts, filepath.Base(p))
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case "", ".json":
		// outs written by the writer carry no extension and hold JSON
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".html":
		return "text/html"
	}
	return "application/octet-stream"
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

var _ stage.Publisher = (*MinIO)(nil)
