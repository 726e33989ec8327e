package consul

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// ErrConcurrentModification is returned when a check-and-set write lost a race.
var ErrConcurrentModification = errors.New("aclsync: concurrent modification detected")

func (cb *ConsulBackend) Exists(ctx context.Context, path string) (bool, error) {
	pair, _, err := cb.kv.Get(cb.buildKey(path), cb.queryOptions(ctx))
	if err != nil {
		return false, err
	}

	return pair != nil, nil
}

func (cb *ConsulBackend) CreateContainer(ctx context.Context, name string) error {
	if err := backend.ValidateContainer(name); err != nil {
		return err
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	_, err := cb.createRecord(ctx, name, nil, true)
	return err
}

func (cb *ConsulBackend) CreateDirectory(ctx context.Context, path string) error {
	return cb.create(ctx, path, true)
}

// CreateFile creates an empty file entry at path including missing parent directories.
func (cb *ConsulBackend) CreateFile(ctx context.Context, path string) error {
	return cb.create(ctx, path, false)
}

func (cb *ConsulBackend) create(ctx context.Context, path string, folder bool) error {
	if err := data.ValidatePath(path); err != nil {
		return err
	}
	if data.IsContainerPath(path) {
		return fmt.Errorf("%w: '%s' is a container root", data.ErrInvalidPath, path)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	container, rel := data.SplitPath(path)
	parent, _, err := cb.readRecord(ctx, container)
	if err != nil {
		if errors.Is(err, data.ErrNotExist) {
			return fmt.Errorf("%w: '%s'", data.ErrContainerNotExist, container)
		}
		return err
	}

	current := container
	segments := strings.Split(rel, data.Separator)
	for i, segment := range segments {
		current = data.JoinPath(current, segment)
		last := i == len(segments)-1

		record, _, err := cb.readRecord(ctx, current)
		if err != nil && !errors.Is(err, data.ErrNotExist) {
			return err
		}

		if record != nil {
			if !record.Folder {
				if last && !folder {
					return nil
				}
				return fmt.Errorf("%w: '%s'", data.ErrNotDirectory, current)
			}
			if last && !folder {
				return fmt.Errorf("%w: '%s' is a directory", data.ErrExist, current)
			}

			parent = record
			continue
		}

		parentAccess, err := parent.AccessControl()
		if err != nil {
			return err
		}

		if parent, err = cb.createRecord(ctx, current, parentAccess, folder || !last); err != nil {
			return err
		}
	}

	return nil
}

func (cb *ConsulBackend) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	record, _, err := cb.readRecord(ctx, path)
	if err != nil {
		return nil, err
	}

	ac, err := record.AccessControl()
	if err != nil {
		return nil, err
	}

	if upn {
		var lookupErr error
		backend.ResolvePrincipals(ac, func(id string) (string, bool) {
			pair, _, err := cb.kv.Get(cb.buildPrincipalKey(id), cb.queryOptions(ctx))
			if err != nil {
				lookupErr = err
				return "", false
			}
			if pair == nil {
				return "", false
			}
			return string(pair.Value), true
		})

		if lookupErr != nil {
			return nil, fmt.Errorf("failed to resolve principals of '%s': %w", path, lookupErr)
		}
	}

	return ac, nil
}

func (cb *ConsulBackend) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	current, modifyIndex, err := cb.readRecord(ctx, path)
	if err != nil {
		return err
	}

	prepared, err := backend.PrepareAccessControl(path, ac, current.Folder)
	if err != nil {
		return err
	}

	principals, err := cb.readPrincipals(ctx)
	if err != nil {
		return fmt.Errorf("failed to read principals: %w", err)
	}
	backend.ResolveObjectIDs(prepared, principals)

	record, err := backend.NewRecord(current.ID, current.Folder, prepared)
	if err != nil {
		return err
	}
	ok, err := cb.writeRecord(ctx, path, record, modifyIndex)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrConcurrentModification, path)
	}

	return nil
}

func (cb *ConsulBackend) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	record, _, err := cb.readRecord(ctx, path)
	if err != nil {
		return nil, err
	}
	if !record.Folder {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotDirectory, path)
	}

	prefix := cb.buildKey(path) + data.Separator
	pairs, _, err := cb.kv.List(prefix, cb.queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	items := make([]*data.Item, 0, len(pairs))
	for _, pair := range pairs {
		childPath := cb.pathFromKey(pair.Key)
		if !data.HasPrefix(childPath, path) {
			continue
		}
		if !recursive && strings.Contains(strings.TrimPrefix(pair.Key, prefix), data.Separator) {
			continue
		}

		var child backend.Record
		if err := json.Unmarshal(pair.Value, &child); err != nil {
			return nil, fmt.Errorf("failed to decode '%s': %w", pair.Key, err)
		}

		items = append(items, &data.Item{
			FullPath: childPath,
			IsFolder: child.Folder,
		})
	}

	return backend.LimitItems(items, maxResults), nil
}

func (cb *ConsulBackend) ListContainers(ctx context.Context) ([]string, error) {
	keys, _, err := cb.kv.Keys(cb.config.Prefix+data.Separator, data.Separator, cb.queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	containers := make([]string, 0, len(keys))
	for _, key := range keys {
		// Keys ending with the separator are nested prefixes, not entries
		if strings.HasSuffix(key, data.Separator) {
			continue
		}
		containers = append(containers, cb.pathFromKey(key))
	}

	return containers, nil
}

// AddPrincipal registers the user principal name of an object id.
func (cb *ConsulBackend) AddPrincipal(ctx context.Context, id, upn string) error {
	_, err := cb.kv.Put(&api.KVPair{
		Key:   cb.buildPrincipalKey(id),
		Value: []byte(upn),
	}, cb.writeOptions(ctx))

	return err
}

// readPrincipals returns every registered principal keyed by object id.
func (cb *ConsulBackend) readPrincipals(ctx context.Context) (map[string]string, error) {
	prefix := cb.config.PrincipalPrefix + data.Separator
	pairs, _, err := cb.kv.List(prefix, cb.queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	principals := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		principals[strings.TrimPrefix(pair.Key, prefix)] = string(pair.Value)
	}

	return principals, nil
}

func (cb *ConsulBackend) createRecord(ctx context.Context, path string, parent *data.AccessControl, folder bool) (*backend.Record, error) {
	record, err := backend.NewRecord(uuid.Must(uuid.NewV7()).String(), folder, backend.NewAccessControl(parent, folder))
	if err != nil {
		return nil, err
	}

	// A modify index of 0 only succeeds when the key does not exist yet
	ok, err := cb.writeRecord(ctx, path, record, 0)
	if err != nil {
		return nil, err
	}

	if !ok {
		existing, _, err := cb.readRecord(ctx, path)
		if err != nil {
			return nil, err
		}
		if existing.Folder != folder {
			return nil, fmt.Errorf("%w: '%s'", data.ErrExist, path)
		}
		return existing, nil
	}

	return record, nil
}

func (cb *ConsulBackend) readRecord(ctx context.Context, path string) (*backend.Record, uint64, error) {
	pair, _, err := cb.kv.Get(cb.buildKey(path), cb.queryOptions(ctx))
	if err != nil {
		return nil, 0, err
	}
	if pair == nil {
		return nil, 0, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	var record backend.Record
	if err := json.Unmarshal(pair.Value, &record); err != nil {
		return nil, 0, fmt.Errorf("failed to decode '%s': %w", pair.Key, err)
	}

	return &record, pair.ModifyIndex, nil
}

func (cb *ConsulBackend) writeRecord(ctx context.Context, path string, record *backend.Record, modifyIndex uint64) (bool, error) {
	record.ModifyTime = time.Now().Unix()

	value, err := json.Marshal(record)
	if err != nil {
		return false, err
	}

	ok, _, err := cb.kv.CAS(&api.KVPair{
		Key:         cb.buildKey(path),
		Value:       value,
		ModifyIndex: modifyIndex,
	}, cb.writeOptions(ctx))

	return ok, err
}

func (cb *ConsulBackend) queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func (cb *ConsulBackend) writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
