package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// object describes a resolved path inside a bucket. Implicit directories
// only exist as a common prefix and have no marker object yet.
type object struct {
	bucket   string
	key      string
	folder   bool
	implicit bool
	meta     map[string]string
}

func (sb *S3Backend) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := sb.resolve(ctx, path); err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (sb *S3Backend) CreateContainer(ctx context.Context, name string) error {
	if err := backend.ValidateContainer(name); err != nil {
		return err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	exists, err := sb.client.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check bucket '%s': %w", name, err)
	}

	if !exists {
		if err := sb.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: sb.config.Region}); err != nil {
			return fmt.Errorf("failed to create bucket '%s': %w", name, err)
		}
	}

	// Buckets created by other clients get their root marker on first use
	if _, err := sb.stat(ctx, name, RootMarker); err == nil {
		return nil
	} else if !isNotFound(err) {
		return err
	}

	return sb.put(ctx, name, RootMarker, "", backend.NewAccessControl(nil, true))
}

func (sb *S3Backend) CreateDirectory(ctx context.Context, path string) error {
	if err := data.ValidatePath(path); err != nil {
		return err
	}
	if data.IsContainerPath(path) {
		return fmt.Errorf("%w: '%s' is a container root", data.ErrInvalidPath, path)
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	bucket, rel := data.SplitPath(path)
	root, err := sb.resolve(ctx, bucket)
	if err != nil {
		if errors.Is(err, data.ErrNotExist) {
			return fmt.Errorf("%w: '%s'", data.ErrContainerNotExist, bucket)
		}
		return err
	}

	parent, err := decodeMetadata(root.meta, true)
	if err != nil {
		return err
	}

	current := ""
	for segment := range strings.SplitSeq(rel, data.Separator) {
		current = data.JoinPath(current, segment)
		dirKey, fileKey := objectKeys(current)

		if _, err := sb.stat(ctx, bucket, fileKey); err == nil {
			return fmt.Errorf("%w: '%s'", data.ErrNotDirectory, data.JoinPath(bucket, current))
		} else if !isNotFound(err) {
			return err
		}

		info, err := sb.stat(ctx, bucket, dirKey)
		if err == nil {
			if parent, err = decodeMetadata(info.UserMetadata, true); err != nil {
				return err
			}
			continue
		}
		if !isNotFound(err) {
			return err
		}

		ac := backend.NewAccessControl(parent, true)
		if err := sb.put(ctx, bucket, dirKey, DirectoryContentType, ac); err != nil {
			return err
		}
		parent = ac
	}

	return nil
}

func (sb *S3Backend) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	obj, err := sb.resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	// Object stores have no principal table, identities are returned as stored
	return decodeMetadata(obj.meta, obj.folder)
}

func (sb *S3Backend) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	obj, err := sb.resolve(ctx, path)
	if err != nil {
		return err
	}

	prepared, err := backend.PrepareAccessControl(path, ac, obj.folder)
	if err != nil {
		return err
	}

	contentType := ""
	if obj.folder && obj.key != RootMarker {
		contentType = DirectoryContentType
	}

	if obj.implicit {
		return sb.put(ctx, obj.bucket, obj.key, contentType, prepared)
	}

	meta, err := encodeMetadata(prepared)
	if err != nil {
		return err
	}
	if contentType != "" {
		meta["Content-Type"] = contentType
	}

	_, err = sb.client.CopyObject(ctx, minio.CopyDestOptions{
		Bucket:          obj.bucket,
		Object:          obj.key,
		UserMetadata:    meta,
		ReplaceMetadata: true,
	}, minio.CopySrcOptions{
		Bucket: obj.bucket,
		Object: obj.key,
	})
	if err != nil {
		return fmt.Errorf("failed to update metadata of '%s': %w", path, err)
	}

	return nil
}

func (sb *S3Backend) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	obj, err := sb.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if !obj.folder {
		return nil, fmt.Errorf("%w: '%s'", data.ErrNotDirectory, path)
	}

	_, rel := data.SplitPath(path)
	prefix := ""
	if rel != "" {
		prefix = rel + data.Separator
	}

	seen := make(map[string]bool)
	add := func(key string, folder bool) {
		if key == "" || key == RootMarker {
			return
		}
		if _, exists := seen[key]; !exists || folder {
			seen[key] = folder
		}
	}

	for info := range sb.client.ListObjects(ctx, obj.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list '%s': %w", path, info.Err)
		}

		key := strings.TrimPrefix(info.Key, prefix)
		folder := strings.HasSuffix(key, data.Separator)
		key = strings.TrimSuffix(key, data.Separator)
		if !recursive {
			add(key, folder)
			continue
		}

		// Intermediate directories without marker objects are implied by their keys
		segments := strings.Split(key, data.Separator)
		for i := 1; i < len(segments); i++ {
			add(strings.Join(segments[:i], data.Separator), true)
		}
		add(key, folder)
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	items := make([]*data.Item, 0, len(keys))
	for _, key := range keys {
		items = append(items, &data.Item{
			FullPath: data.JoinPath(path, key),
			IsFolder: seen[key],
		})
	}

	return backend.LimitItems(items, maxResults), nil
}

func (sb *S3Backend) ListContainers(ctx context.Context) ([]string, error) {
	buckets, err := sb.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	containers := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		containers = append(containers, bucket.Name)
	}

	return containers, nil
}

// resolve locates path as bucket root, directory marker, plain file or implicit directory.
func (sb *S3Backend) resolve(ctx context.Context, path string) (*object, error) {
	if err := data.ValidatePath(path); err != nil {
		return nil, err
	}

	bucket, rel := data.SplitPath(path)
	if rel == "" {
		exists, err := sb.client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket '%s': %w", bucket, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
		}

		info, err := sb.stat(ctx, bucket, RootMarker)
		if err != nil {
			if !isNotFound(err) {
				return nil, err
			}
			return &object{bucket: bucket, key: RootMarker, folder: true, implicit: true}, nil
		}

		return &object{bucket: bucket, key: RootMarker, folder: true, meta: info.UserMetadata}, nil
	}

	dirKey, fileKey := objectKeys(rel)
	if info, err := sb.stat(ctx, bucket, dirKey); err == nil {
		return &object{bucket: bucket, key: dirKey, folder: true, meta: info.UserMetadata}, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	if info, err := sb.stat(ctx, bucket, fileKey); err == nil {
		return &object{bucket: bucket, key: fileKey, meta: info.UserMetadata}, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	for info := range sb.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:  dirKey,
		MaxKeys: 1,
	}) {
		if info.Err != nil {
			if isNotFound(info.Err) {
				break
			}
			return nil, fmt.Errorf("failed to list '%s': %w", path, info.Err)
		}
		return &object{bucket: bucket, key: dirKey, folder: true, implicit: true}, nil
	}

	return nil, fmt.Errorf("%w: '%s'", data.ErrNotExist, path)
}

func (sb *S3Backend) stat(ctx context.Context, bucket, key string) (minio.ObjectInfo, error) {
	return sb.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
}

func (sb *S3Backend) put(ctx context.Context, bucket, key, contentType string, ac *data.AccessControl) error {
	meta, err := encodeMetadata(ac)
	if err != nil {
		return err
	}

	_, err = sb.client.PutObject(ctx, bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("failed to write object '%s/%s': %w", bucket, key, err)
	}

	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}

	return resp.StatusCode == http.StatusNotFound
}

func isNotExist(err error) bool {
	return errors.Is(err, data.ErrNotExist) || isNotFound(err)
}
