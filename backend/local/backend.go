package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// StateDir is the hidden directory below the root holding the access
// control records. It mirrors the item tree, the record of an item is
// stored as "<path>" + RecordSuffix.
const (
	StateDir     = ".aclsync"
	RecordSuffix = ".acl.json"
)

// LocalBackend maps containers onto top-level directories of a local
// filesystem root. Items without a record inherit the state of their
// parent like newly created items do.
type LocalBackend struct {
	mu   sync.RWMutex
	path string
}

func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{
		path: filepath.Clean(path),
	}
}

// Name returns the identifier name defined for this backend
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Verify the root directory exists
	info, err := os.Stat(lb.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: root '%s'", data.ErrNotExist, lb.path)
		}
		return err
	}

	// Ensure the root is a directory
	if !info.IsDir() {
		return fmt.Errorf("%w: root '%s'", data.ErrNotDirectory, lb.path)
	}

	return os.MkdirAll(filepath.Join(lb.path, StateDir), 0o755)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityACL,
			backend.CapabilityContainers,
			backend.CapabilityRecursiveList,
		},
	}
}

// resolvePath joins the backend root with the item path.
func (lb *LocalBackend) resolvePath(path string) string {
	return filepath.Join(lb.path, filepath.FromSlash(path))
}

// resolveRecord returns the location of the record of path.
func (lb *LocalBackend) resolveRecord(path string) string {
	return filepath.Join(lb.path, StateDir, filepath.FromSlash(path)+RecordSuffix)
}
