package address

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/backend/consul"
	"github.com/mwantia/aclsync/backend/local"
	"github.com/mwantia/aclsync/backend/memory"
	"github.com/mwantia/aclsync/backend/postgres"
	"github.com/mwantia/aclsync/backend/s3"
	"github.com/mwantia/aclsync/backend/sqlite"
	"github.com/mwantia/aclsync/data"
)

// Options are applied to the storage built from an address.
type Options struct {
	// Connection tuning for HTTP based backends (optional)
	Connection *backend.ConnectionOptions

	// AccountName overrides the access key of s3 addresses
	AccountName string
	// AccessKey overrides the secret key of s3 addresses and the consul token
	AccessKey string
}

// Parse builds the storage addressed by address. The storage is not opened yet.
func Parse(ctx context.Context, address string, opts *Options) (backend.Storage, error) {
	if opts == nil {
		opts = &Options{}
	}

	// Format address
	address = strings.TrimSpace(address)
	// Quick check to identify if we work with a possibly valid address
	if !strings.Contains(address, "://") {
		return nil, fmt.Errorf("failed to parse address '%s': %w", address, data.ErrMalformedBackendAddress)
	}

	// Protocol-based parsing
	switch {
	// memory://
	case strings.HasPrefix(address, "memory://"):
		return memory.NewMemoryBackend(), nil
	// local://<directory>
	case strings.HasPrefix(address, "local://"):
		return parseLocalAddress(strings.TrimPrefix(address, "local://"))
	// consul://<address>:<port>?<token>&<prefix>&<scheme>&<datacenter>
	case strings.HasPrefix(address, "consul://"):
		return parseConsulAddress(strings.TrimPrefix(address, "consul://"), opts)
	// postgres://<user>:<pass>@<address>:<port>/<database>
	case strings.HasPrefix(address, "postgres://"), strings.HasPrefix(address, "postgresql://"):
		return postgres.NewPostgresBackend(ctx, address)
	case strings.HasPrefix(address, "psql://"):
		return postgres.NewPostgresBackend(ctx, "postgres://"+strings.TrimPrefix(address, "psql://"))
	// sqlite://<file>
	case strings.HasPrefix(address, "sqlite://"):
		return parseSqliteAddress(strings.TrimPrefix(address, "sqlite://"))
	// s3://<address>:<port>?<access_key>&<secret_key>&<ssl>&<region>
	case strings.HasPrefix(address, "s3://"):
		return parseS3Address(strings.TrimPrefix(address, "s3://"), opts)
	case strings.HasPrefix(address, "minio://"):
		return parseS3Address(strings.TrimPrefix(address, "minio://"), opts)
	}

	return nil, fmt.Errorf("failed to parse address '%s': %w", address, data.ErrUnknownBackendProtocolAddress)
}

func parseConsulAddress(address string, opts *Options) (backend.Storage, error) {
	host, query, err := splitQuery(address)
	if err != nil {
		return nil, err
	}

	config := &consul.ConsulBackendConfig{
		Address:    host,
		Scheme:     query.Get("scheme"),
		Token:      query.Get("token"),
		Datacenter: query.Get("datacenter"),
		Namespace:  query.Get("namespace"),
		Prefix:     query.Get("prefix"),
		Connection: opts.Connection,
	}
	if opts.AccessKey != "" {
		config.Token = opts.AccessKey
	}

	return consul.NewConsulBackend(config)
}

func parseLocalAddress(address string) (backend.Storage, error) {
	path, _, err := splitQuery(address)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("missing local root directory: %w", data.ErrMalformedBackendAddress)
	}

	return local.NewLocalBackend(path), nil
}

func parseSqliteAddress(address string) (backend.Storage, error) {
	path, _, err := splitQuery(address)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("missing sqlite database path: %w", data.ErrMalformedBackendAddress)
	}

	return sqlite.NewSQLiteBackend(path)
}

func parseS3Address(address string, opts *Options) (backend.Storage, error) {
	host, query, err := splitQuery(address)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, fmt.Errorf("missing s3 endpoint: %w", data.ErrMalformedBackendAddress)
	}

	config := &s3.S3BackendConfig{
		Endpoint:   host,
		AccessKey:  query.Get("access_key"),
		SecretKey:  query.Get("secret_key"),
		Region:     query.Get("region"),
		Connection: opts.Connection,
	}
	if opts.AccountName != "" {
		config.AccessKey = opts.AccountName
	}
	if opts.AccessKey != "" {
		config.SecretKey = opts.AccessKey
	}

	if ssl := query.Get("ssl"); ssl != "" {
		config.UseSSL, err = strconv.ParseBool(ssl)
		if err != nil {
			return nil, fmt.Errorf("invalid ssl value '%s': %w", ssl, data.ErrMalformedBackendAddress)
		}
	}

	return s3.NewS3Backend(config)
}

// splitQuery separates the address part from its optional query.
func splitQuery(address string) (string, url.Values, error) {
	host, rawQuery, _ := strings.Cut(address, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse query '%s': %w", rawQuery, data.ErrMalformedBackendAddress)
	}

	return strings.TrimSuffix(host, "/"), query, nil
}
