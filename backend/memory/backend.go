package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
	"github.com/tidwall/btree"
)

// MemoryBackend keeps containers, directories and files in an ordered
// in-memory index. Container roots are stored under their plain name,
// every other item under its full path.
type MemoryBackend struct {
	mu sync.RWMutex

	items      *btree.Map[string, *memoryItem]
	principals map[string]string
}

type memoryItem struct {
	id     string
	folder bool
	access *data.AccessControl
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items:      btree.NewMap[string, *memoryItem](0),
		principals: make(map[string]string),
	}
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.items.Clear()
	for k := range mb.principals {
		delete(mb.principals, k)
	}

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.Capabilities {
	return backend.GetAllCapabilities()
}

// AddPrincipal registers the user principal name of an object id. Access
// control states store the object id; reading with upn resolution returns
// the principal name instead.
func (mb *MemoryBackend) AddPrincipal(ctx context.Context, id, upn string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.principals[id] = upn
	return nil
}

func newMemoryItem(folder bool, access *data.AccessControl) *memoryItem {
	return &memoryItem{
		id:     uuid.Must(uuid.NewV7()).String(),
		folder: folder,
		access: access,
	}
}
