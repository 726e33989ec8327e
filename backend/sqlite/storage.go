package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (sb *SQLiteBackend) Exists(ctx context.Context, path string) (bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	_, exists := sb.keys.Get(path)
	return exists, nil
}

func (sb *SQLiteBackend) CreateContainer(ctx context.Context, name string) error {
	if err := backend.ValidateContainer(name); err != nil {
		return err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Creating an existing container again is a no-op
	if _, exists := sb.keys.Get(name); exists {
		return nil
	}

	record, err := backend.NewRecord(genID(), true, backend.NewAccessControl(nil, true))
	if err != nil {
		return err
	}
	if err := sb.insertRecord(ctx, sb.db, name, record); err != nil {
		return err
	}

	sb.keys.Set(name, record.ID)
	return nil
}

func (sb *SQLiteBackend) CreateDirectory(ctx context.Context, path string) error {
	return sb.create(ctx, path, true)
}

// CreateFile creates an empty file at path including missing parent directories.
func (sb *SQLiteBackend) CreateFile(ctx context.Context, path string) error {
	return sb.create(ctx, path, false)
}

func (sb *SQLiteBackend) create(ctx context.Context, path string, folder bool) error {
	if err := data.ValidatePath(path); err != nil {
		return err
	}
	if data.IsContainerPath(path) {
		return fmt.Errorf("%w: '%s' is a container root", data.ErrInvalidPath, path)
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	container, rel := data.SplitPath(path)
	parentID, exists := sb.keys.Get(container)
	if !exists {
		return fmt.Errorf("%w: '%s'", data.ErrContainerNotExist, container)
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	parent, err := sb.readRecord(ctx, tx, parentID)
	if err != nil {
		return err
	}

	created := make(map[string]string)
	current := container
	segments := strings.Split(rel, data.Separator)
	for i, segment := range segments {
		current = data.JoinPath(current, segment)
		last := i == len(segments)-1

		if id, exists := sb.keys.Get(current); exists {
			record, err := sb.readRecord(ctx, tx, id)
			if err != nil {
				return err
			}
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

		isFolder := folder || !last
		record, err := backend.NewRecord(genID(), isFolder, backend.NewAccessControl(parentAccess, isFolder))
		if err != nil {
			return err
		}
		if err := sb.insertRecord(ctx, tx, current, record); err != nil {
			return err
		}

		created[current] = record.ID
		parent = record
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for key, id := range created {
		sb.keys.Set(key, id)
	}

	return nil
}

func (sb *SQLiteBackend) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	id, exists := sb.keys.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	record, err := sb.readRecord(ctx, sb.db, id)
	if err != nil {
		return nil, err
	}

	ac, err := record.AccessControl()
	if err != nil {
		return nil, err
	}

	if upn {
		principals, err := sb.readPrincipals(ctx)
		if err != nil {
			return nil, err
		}
		backend.ResolvePrincipals(ac, func(id string) (string, bool) {
			name, ok := principals[id]
			return name, ok
		})
	}

	return ac, nil
}

func (sb *SQLiteBackend) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	id, exists := sb.keys.Get(path)
	if !exists {
		return fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	current, err := sb.readRecord(ctx, sb.db, id)
	if err != nil {
		return err
	}

	prepared, err := backend.PrepareAccessControl(path, ac, current.Folder)
	if err != nil {
		return err
	}

	principals, err := sb.readPrincipals(ctx)
	if err != nil {
		return err
	}
	backend.ResolveObjectIDs(prepared, principals)

	record, err := backend.NewRecord(id, current.Folder, prepared)
	if err != nil {
		return err
	}
	_, err = sb.db.ExecContext(ctx, `
		UPDATE acl_items
		SET owner = ?, owning_group = ?, permissions = ?, acl = ?, default_acl = ?, modify_time = ?
		WHERE id = ?
	`, record.Owner, record.Group, record.Permissions, record.Acl, record.DefaultAcl, time.Now().Unix(), id)

	return err
}

func (sb *SQLiteBackend) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	id, exists := sb.keys.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	record, err := sb.readRecord(ctx, sb.db, id)
	if err != nil {
		return nil, err
	}
	if !record.Folder {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotDirectory, path)
	}

	// All descendants sort between "<path>/" and "<path>0"
	prefix := path + data.Separator
	rows, err := sb.db.QueryContext(ctx, `
		SELECT path, folder FROM acl_items
		WHERE path >= ? AND path < ?
		ORDER BY path
	`, prefix, path+"0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*data.Item, 0)
	for rows.Next() {
		var item data.Item
		if err := rows.Scan(&item.FullPath, &item.IsFolder); err != nil {
			return nil, err
		}
		if !recursive && strings.Contains(item.FullPath[len(prefix):], data.Separator) {
			continue
		}

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return backend.LimitItems(items, maxResults), nil
}

func (sb *SQLiteBackend) ListContainers(ctx context.Context) ([]string, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	containers := make([]string, 0)
	sb.keys.Scan(func(key, id string) bool {
		if data.IsContainerPath(key) {
			containers = append(containers, key)
		}
		return true
	})

	return containers, nil
}

// AddPrincipal registers the user principal name of an object id.
func (sb *SQLiteBackend) AddPrincipal(ctx context.Context, id, upn string) error {
	_, err := sb.db.ExecContext(ctx, `
		INSERT INTO acl_principals (id, upn) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET upn = excluded.upn
	`, id, upn)

	return err
}

func (sb *SQLiteBackend) readPrincipals(ctx context.Context) (map[string]string, error) {
	rows, err := sb.db.QueryContext(ctx, "SELECT id, upn FROM acl_principals")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	principals := make(map[string]string)
	for rows.Next() {
		var id, upn string
		if err := rows.Scan(&id, &upn); err != nil {
			return nil, err
		}
		principals[id] = upn
	}

	return principals, rows.Err()
}

func (sb *SQLiteBackend) readRecord(ctx context.Context, q querier, id string) (*backend.Record, error) {
	var record backend.Record
	err := q.QueryRowContext(ctx, `
		SELECT id, folder, owner, owning_group, permissions, acl, default_acl, modify_time
		FROM acl_items WHERE id = ?
	`, id).Scan(&record.ID, &record.Folder, &record.Owner, &record.Group,
		&record.Permissions, &record.Acl, &record.DefaultAcl, &record.ModifyTime)

	if err == sql.ErrNoRows {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (sb *SQLiteBackend) insertRecord(ctx context.Context, tx execer, path string, record *backend.Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO acl_items (id, path, folder, owner, owning_group, permissions, acl, default_acl, modify_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, path, record.Folder, record.Owner, record.Group,
		record.Permissions, record.Acl, record.DefaultAcl, time.Now().Unix())

	return err
}

func genID() string {
	return uuid.Must(uuid.NewV7()).String()
}
