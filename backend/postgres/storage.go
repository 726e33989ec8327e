package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (pb *PostgresBackend) Exists(ctx context.Context, path string) (bool, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	_, exists := pb.keys.Get(path)
	return exists, nil
}

func (pb *PostgresBackend) CreateContainer(ctx context.Context, name string) error {
	if err := backend.ValidateContainer(name); err != nil {
		return err
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	// Creating an existing container again is a no-op
	if _, exists := pb.keys.Get(name); exists {
		return nil
	}

	record, err := backend.NewRecord(genID(), true, backend.NewAccessControl(nil, true))
	if err != nil {
		return err
	}
	if err := insertRecord(ctx, pb.pool, name, record); err != nil {
		return err
	}

	pb.keys.Set(name, record.ID)
	return nil
}

func (pb *PostgresBackend) CreateDirectory(ctx context.Context, path string) error {
	return pb.create(ctx, path, true)
}

// CreateFile creates an empty file at path including missing parent directories.
func (pb *PostgresBackend) CreateFile(ctx context.Context, path string) error {
	return pb.create(ctx, path, false)
}

func (pb *PostgresBackend) create(ctx context.Context, path string, folder bool) error {
	if err := data.ValidatePath(path); err != nil {
		return err
	}
	if data.IsContainerPath(path) {
		return fmt.Errorf("%w: '%s' is a container root", data.ErrInvalidPath, path)
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	container, rel := data.SplitPath(path)
	parentID, exists := pb.keys.Get(container)
	if !exists {
		return fmt.Errorf("%w: '%s'", data.ErrContainerNotExist, container)
	}

	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	parent, err := readRecord(ctx, tx, parentID)
	if err != nil {
		return err
	}

	created := make(map[string]string)
	current := container
	segments := strings.Split(rel, data.Separator)
	for i, segment := range segments {
		current = data.JoinPath(current, segment)
		last := i == len(segments)-1

		if id, exists := pb.keys.Get(current); exists {
			record, err := readRecord(ctx, tx, id)
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
		if err := insertRecord(ctx, tx, current, record); err != nil {
			return err
		}

		created[current] = record.ID
		parent = record
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for key, id := range created {
		pb.keys.Set(key, id)
	}

	return nil
}

func (pb *PostgresBackend) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	id, exists := pb.keys.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	record, err := readRecord(ctx, pb.pool, id)
	if err != nil {
		return nil, err
	}

	ac, err := record.AccessControl()
	if err != nil {
		return nil, err
	}

	if upn {
		principals, err := pb.readPrincipals(ctx)
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

func (pb *PostgresBackend) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	id, exists := pb.keys.Get(path)
	if !exists {
		return fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	current, err := readRecord(ctx, pb.pool, id)
	if err != nil {
		return err
	}

	prepared, err := backend.PrepareAccessControl(path, ac, current.Folder)
	if err != nil {
		return err
	}

	principals, err := pb.readPrincipals(ctx)
	if err != nil {
		return err
	}
	backend.ResolveObjectIDs(prepared, principals)

	record, err := backend.NewRecord(id, current.Folder, prepared)
	if err != nil {
		return err
	}
	_, err = pb.pool.Exec(ctx, `
		UPDATE acl_items
		SET owner = $1, owning_group = $2, permissions = $3, acl = $4, default_acl = $5, modify_time = $6
		WHERE id = $7
	`, record.Owner, record.Group, record.Permissions, record.Acl, record.DefaultAcl, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update access control: %w", err)
	}

	return nil
}

func (pb *PostgresBackend) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	id, exists := pb.keys.Get(path)
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
	}

	record, err := readRecord(ctx, pb.pool, id)
	if err != nil {
		return nil, err
	}
	if !record.Folder {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotDirectory, path)
	}

	prefix := path + data.Separator
	rows, err := pb.pool.Query(ctx, `
		SELECT path, folder FROM acl_items
		WHERE starts_with(path, $1)
		ORDER BY path COLLATE "C"
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*data.Item, 0)
	for rows.Next() {
		var item data.Item
		if err := rows.Scan(&item.FullPath, &item.IsFolder); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
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

func (pb *PostgresBackend) ListContainers(ctx context.Context) ([]string, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	containers := make([]string, 0)
	pb.keys.Scan(func(key, id string) bool {
		if data.IsContainerPath(key) {
			containers = append(containers, key)
		}
		return true
	})

	return containers, nil
}

// AddPrincipal registers the user principal name of an object id.
func (pb *PostgresBackend) AddPrincipal(ctx context.Context, id, upn string) error {
	_, err := pb.pool.Exec(ctx, `
		INSERT INTO acl_principals (id, upn) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET upn = EXCLUDED.upn
	`, id, upn)

	return err
}

func (pb *PostgresBackend) readPrincipals(ctx context.Context) (map[string]string, error) {
	rows, err := pb.pool.Query(ctx, "SELECT id, upn FROM acl_principals")
	if err != nil {
		return nil, fmt.Errorf("failed to query principals: %w", err)
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

func readRecord(ctx context.Context, q querier, id string) (*backend.Record, error) {
	var record backend.Record
	err := q.QueryRow(ctx, `
		SELECT id, folder, owner, owning_group, permissions, acl, default_acl, modify_time
		FROM acl_items WHERE id = $1
	`, id).Scan(&record.ID, &record.Folder, &record.Owner, &record.Group,
		&record.Permissions, &record.Acl, &record.DefaultAcl, &record.ModifyTime)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, data.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}

	return &record, nil
}

func insertRecord(ctx context.Context, q querier, path string, record *backend.Record) error {
	_, err := q.Exec(ctx, `
		INSERT INTO acl_items (id, path, folder, owner, owning_group, permissions, acl, default_acl, modify_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, record.ID, path, record.Folder, record.Owner, record.Group,
		record.Permissions, record.Acl, record.DefaultAcl, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

func genID() string {
	return uuid.Must(uuid.NewV7()).String()
}
