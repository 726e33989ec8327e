package s3

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/aclsync/backend"
)

// S3Backend maps containers onto buckets of an S3 compatible object store.
// Directories are zero-byte objects with a trailing slash, the access control
// state of every object is kept in its user metadata. The root of a bucket is
// represented by the RootMarker object.
type S3Backend struct {
	mu sync.RWMutex

	client *minio.Client
	config *S3BackendConfig
}

// S3BackendConfig contains configuration options for the S3 backend
type S3BackendConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// Connection tuning of the HTTP transport (optional)
	Connection *backend.ConnectionOptions
}

func NewS3Backend(config *S3BackendConfig) (*S3Backend, error) {
	if config == nil || config.Endpoint == "" {
		return nil, fmt.Errorf("missing s3 endpoint")
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	}
	if config.Connection != nil {
		options.Transport = config.Connection.RoundTripper()
	}

	client, err := minio.New(config.Endpoint, options)
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client: client,
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Listing buckets verifies both connectivity and credentials
	if _, err := sb.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to reach s3 endpoint '%s': %w", sb.config.Endpoint, err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityACL,
			backend.CapabilityContainers,
			backend.CapabilityRecursiveList,
		},
	}
}
