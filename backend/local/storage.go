package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

func (lb *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	if err := lb.validate(path); err != nil {
		return false, err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if _, err := os.Stat(lb.resolvePath(path)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (lb *LocalBackend) CreateContainer(ctx context.Context, name string) error {
	if err := backend.ValidateContainer(name); err != nil {
		return err
	}
	if name == StateDir {
		return fmt.Errorf("%w: '%s' is reserved", data.ErrInvalidContainer, name)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	fullPath := lb.resolvePath(name)
	if err := os.Mkdir(fullPath, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}

	// Creating an existing container again keeps its record
	if _, err := os.Stat(lb.resolveRecord(name)); err == nil {
		return nil
	}

	record, err := backend.NewRecord(genID(), true, backend.NewAccessControl(nil, true))
	if err != nil {
		return err
	}

	return lb.writeRecord(name, record)
}

func (lb *LocalBackend) CreateDirectory(ctx context.Context, path string) error {
	return lb.create(path, true)
}

// CreateFile creates an empty file at path including missing parent directories.
func (lb *LocalBackend) CreateFile(ctx context.Context, path string) error {
	return lb.create(path, false)
}

func (lb *LocalBackend) create(path string, folder bool) error {
	if err := lb.validate(path); err != nil {
		return err
	}
	if data.IsContainerPath(path) {
		return fmt.Errorf("%w: '%s' is a container root", data.ErrInvalidPath, path)
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	container, rel := data.SplitPath(path)
	if info, err := os.Stat(lb.resolvePath(container)); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: '%s'", data.ErrContainerNotExist, container)
	}

	parent, err := lb.readAccess(container, true)
	if err != nil {
		return err
	}

	current := container
	segments := strings.Split(rel, data.Separator)
	for i, segment := range segments {
		current = data.JoinPath(current, segment)
		last := i == len(segments)-1
		isFolder := folder || !last

		info, err := os.Stat(lb.resolvePath(current))
		if err == nil {
			if !info.IsDir() {
				if last && !folder {
					return nil
				}
				return fmt.Errorf("%w: '%s'", data.ErrNotDirectory, current)
			}
			if last && !folder {
				return fmt.Errorf("%w: '%s' is a directory", data.ErrExist, current)
			}

			if parent, err = lb.readAccess(current, true); err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if isFolder {
			err = os.Mkdir(lb.resolvePath(current), 0o755)
		} else {
			err = os.WriteFile(lb.resolvePath(current), nil, 0o644)
		}
		if err != nil {
			return err
		}

		ac := backend.NewAccessControl(parent, isFolder)
		record, err := backend.NewRecord(genID(), isFolder, ac)
		if err != nil {
			return err
		}
		if err := lb.writeRecord(current, record); err != nil {
			return err
		}
		parent = ac
	}

	return nil
}

func (lb *LocalBackend) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	if err := lb.validate(path); err != nil {
		return nil, err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	info, err := lb.stat(path)
	if err != nil {
		return nil, err
	}

	// Local records have no principal table, identities are returned as stored
	return lb.readAccess(path, info.IsDir())
}

func (lb *LocalBackend) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	if err := lb.validate(path); err != nil {
		return err
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	info, err := lb.stat(path)
	if err != nil {
		return err
	}

	prepared, err := backend.PrepareAccessControl(path, ac, info.IsDir())
	if err != nil {
		return err
	}

	id := genID()
	if record, err := lb.readRecord(path); err == nil {
		id = record.ID
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	record, err := backend.NewRecord(id, info.IsDir(), prepared)
	if err != nil {
		return err
	}

	return lb.writeRecord(path, record)
}

func (lb *LocalBackend) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	if err := lb.validate(path); err != nil {
		return nil, err
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	info, err := lb.stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotDirectory, path)
	}

	root := lb.resolvePath(path)
	items := make([]*data.Item, 0)

	err = filepath.WalkDir(root, func(fullPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if fullPath == root {
			return nil
		}

		rel, err := filepath.Rel(root, fullPath)
		if err != nil {
			return err
		}

		items = append(items, &data.Item{
			FullPath: data.JoinPath(path, filepath.ToSlash(rel)),
			IsFolder: entry.IsDir(),
		})

		if entry.IsDir() && !recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keep the byte order of full paths like every other backend
	slices.SortFunc(items, func(a, b *data.Item) int {
		return strings.Compare(a.FullPath, b.FullPath)
	})

	return backend.LimitItems(items, maxResults), nil
}

func (lb *LocalBackend) ListContainers(ctx context.Context) ([]string, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	entries, err := os.ReadDir(lb.path)
	if err != nil {
		return nil, err
	}

	containers := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != StateDir {
			containers = append(containers, entry.Name())
		}
	}

	return containers, nil
}

func (lb *LocalBackend) validate(path string) error {
	if err := data.ValidatePath(path); err != nil {
		return err
	}

	container, _ := data.SplitPath(path)
	if container == StateDir {
		return fmt.Errorf("%w: '%s' is reserved", data.ErrInvalidPath, path)
	}

	return nil
}

func (lb *LocalBackend) stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(lb.resolvePath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
		}
		return nil, err
	}

	return info, nil
}

// readAccess returns the recorded state of path or, without a record,
// the state inherited from its parent.
func (lb *LocalBackend) readAccess(path string, folder bool) (*data.AccessControl, error) {
	record, err := lb.readRecord(path)
	if err == nil {
		return record.AccessControl()
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	parent := data.ParentPath(path)
	if parent == "" {
		return backend.NewAccessControl(nil, folder), nil
	}

	parentAccess, err := lb.readAccess(parent, true)
	if err != nil {
		return nil, err
	}

	return backend.NewAccessControl(parentAccess, folder), nil
}

func (lb *LocalBackend) readRecord(path string) (*backend.Record, error) {
	content, err := os.ReadFile(lb.resolveRecord(path))
	if err != nil {
		return nil, err
	}

	var record backend.Record
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record of '%s': %w", path, err)
	}

	return &record, nil
}

// writeRecord replaces the record of path through a rename.
func (lb *LocalBackend) writeRecord(path string, record *backend.Record) error {
	record.ModifyTime = time.Now().Unix()

	content, err := json.Marshal(record)
	if err != nil {
		return err
	}

	target := lb.resolveRecord(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, target)
}

func genID() string {
	return uuid.Must(uuid.NewV7()).String()
}
