package objectstore

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrEndpointRequired  = errors.New("endpoint is required")
	ErrAccessKeyRequired = errors.New("access key is required")
	ErrSecretKeyRequired = errors.New("secret key is required")
	ErrBucketRequired    = errors.New("bucket is required")
	ErrEndpointScheme    = errors.New("endpoint must not include scheme")
)

// Config locates the bucket outputs are published to.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return ErrEndpointRequired
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return ErrAccessKeyRequired
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return ErrSecretKeyRequired
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return ErrBucketRequired
	}
	if strings.Contains(c.Endpoint, "://") {
		return errors.Wrapf(ErrEndpointScheme, "%q", c.Endpoint)
	}
	return nil
}
