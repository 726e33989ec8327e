package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

func (mb *MemoryBackend) Exists(ctx context.Context, path string) (bool, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	_, exists := mb.items.Get(path)
	return exists, nil
}

func (mb *MemoryBackend) CreateContainer(ctx context.Context, name string) error {
	if err := backend.ValidateContainer(name); err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	// Creating an existing container again is a no-op
	if _, exists := mb.items.Get(name); exists {
		return nil
	}

	mb.items.Set(name, newMemoryItem(true, backend.NewAccessControl(nil, true)))
	return nil
}

func (mb *MemoryBackend) CreateDirectory(ctx context.Context, path string) error {
	return mb.create(path, true)
}

// CreateFile creates an empty file at path including missing parent directories.
func (mb *MemoryBackend) CreateFile(ctx context.Context, path string) error {
	return mb.create(path, false)
}

func (mb *MemoryBackend) create(path string, folder bool) error {
	if err := data.ValidatePath(path); err != nil {
		return err
	}
	if data.IsContainerPath(path) {
		return fmt.Errorf("%w: '%s' is a container root", data.ErrInvalidPath, path)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	container, rel := data.SplitPath(path)
	parent, exists := mb.items.Get(container)
	if !exists {
		return fmt.Errorf("%w: '%s'", data.ErrContainerNotExist, container)
	}

	current := container
	segments := strings.Split(rel, data.Separator)
	for i, segment := range segments {
		current = data.JoinPath(current, segment)
		last := i == len(segments)-1

		item, exists := mb.items.Get(current)
		if exists {
			if !item.folder {
				if last && !folder {
					return nil
				}
				return fmt.Errorf("%w: '%s'", data.ErrNotDirectory, current)
			}
			if last && !folder {
				return fmt.Errorf("%w: '%s' is a directory", data.ErrExist, current)
			}

			parent = item
			continue
		}

		isFolder := folder || !last
		item = newMemoryItem(isFolder, backend.NewAccessControl(parent.access, isFolder))
		mb.items.Set(current, item)
		parent = item
	}

	return nil
}

func (mb *MemoryBackend) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	item, exists := mb.items.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	ac := item.access.Clone()
	if upn {
		backend.ResolvePrincipals(ac, func(id string) (string, bool) {
			name, ok := mb.principals[id]
			return name, ok
		})
	}

	return ac, nil
}

func (mb *MemoryBackend) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	item, exists := mb.items.Get(path)
	if !exists {
		return fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	prepared, err := backend.PrepareAccessControl(path, ac, item.folder)
	if err != nil {
		return err
	}

	backend.ResolveObjectIDs(prepared, mb.principals)
	item.access = prepared
	return nil
}

func (mb *MemoryBackend) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	item, exists := mb.items.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}
	if !item.folder {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotDirectory, path)
	}

	prefix := path + data.Separator
	items := make([]*data.Item, 0)

	mb.items.Ascend(prefix, func(key string, value *memoryItem) bool {
		if !data.HasPrefix(key, path) {
			return false
		}
		if !recursive && strings.Contains(key[len(prefix):], data.Separator) {
			return true
		}

		items = append(items, &data.Item{
			FullPath: key,
			IsFolder: value.folder,
		})
		return maxResults <= 0 || len(items) < maxResults
	})

	return items, nil
}

func (mb *MemoryBackend) ListContainers(ctx context.Context) ([]string, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	containers := make([]string, 0)
	mb.items.Scan(func(key string, value *memoryItem) bool {
		if data.IsContainerPath(key) {
			containers = append(containers, key)
		}
		return true
	})

	return containers, nil
}
