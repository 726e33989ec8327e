package backend

import (
	"context"

	"github.com/mwantia/aclsync/data"
)

// Storage is the complete boundary towards a hierarchical blob store.
// Paths are '/'-delimited and start with the container name; a path
// without separator addresses the root of a container.
type Storage interface {
	Backend

	// Exists reports whether the directory or file at path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// CreateContainer creates a new container (filesystem).
	CreateContainer(ctx context.Context, name string) error

	// CreateDirectory creates the directory at path including missing parents.
	// The container itself must already exist.
	CreateDirectory(ctx context.Context, path string) error

	// GetAccessControl returns a copy of the access control state of path.
	// With upn set, identities are resolved to user principal names where known.
	GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error)

	// SetAccessControl replaces the access control state of path.
	SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error

	// List returns the items below path, either immediate children or, when
	// recursive is set, all descendants. maxResults <= 0 means unlimited.
	List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error)

	// ListContainers returns the names of all containers.
	ListContainers(ctx context.Context) ([]string, error)
}
