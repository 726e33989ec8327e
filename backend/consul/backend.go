package consul

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// ConsulBackend stores the access control state in the HashiCorp Consul KV store.
//
// Architecture:
// - Every container, directory and file is one KV entry keyed by its full path below Prefix
// - The value is a JSON encoded backend.Record (folder flag, owner, group and both ACL lists)
// - Principal names are stored below PrincipalPrefix, keyed by object id
// - Writes use check-and-set so concurrent modifications fail instead of overwriting
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Scheme used to reach the Consul server (default: "http")
	Scheme string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Namespace for Consul Enterprise (optional)
	Namespace string

	// Prefix for all item keys in Consul KV (default: "aclsync")
	Prefix string

	// PrincipalPrefix for principal name keys (default: "<prefix>-principals")
	PrincipalPrefix string

	// Connection tuning of the HTTP transport (optional)
	Connection *backend.ConnectionOptions
}

// NewConsulBackend creates a new Consul-backed storage
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	config.Prefix = strings.Trim(config.Prefix, data.Separator)
	if config.Prefix == "" {
		config.Prefix = "aclsync"
	}

	config.PrincipalPrefix = strings.Trim(config.PrincipalPrefix, data.Separator)
	if config.PrincipalPrefix == "" {
		config.PrincipalPrefix = config.Prefix + "-principals"
	}

	if config.PrincipalPrefix == config.Prefix {
		return nil, fmt.Errorf("principal prefix must differ from prefix '%s'", config.Prefix)
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Scheme != "" {
		clientConfig.Scheme = config.Scheme
	}
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}
	if config.Connection != nil {
		clientConfig.Transport = config.Connection.Transport()
		if enabled := config.Connection.Expect100Continue; enabled != nil && *enabled {
			clientConfig.HttpClient = &http.Client{Transport: config.Connection.RoundTripper()}
		}
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	backend := &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}

	return backend, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// Verify the agent is reachable before the first reconciliation
	if _, err := cb.client.Status().Leader(); err != nil {
		return fmt.Errorf("failed to reach consul at '%s': %w", cb.config.Address, err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.Capabilities {
	return backend.GetAllCapabilities()
}

// buildKey constructs the full Consul KV key from an item path
func (cb *ConsulBackend) buildKey(path string) string {
	return cb.config.Prefix + data.Separator + strings.Trim(path, data.Separator)
}

// pathFromKey strips the prefix of a Consul KV key again
func (cb *ConsulBackend) pathFromKey(key string) string {
	return strings.TrimPrefix(key, cb.config.Prefix+data.Separator)
}

// buildPrincipalKey constructs the Consul KV key of a principal name
func (cb *ConsulBackend) buildPrincipalKey(id string) string {
	return cb.config.PrincipalPrefix + data.Separator + id
}
