package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// Storage wraps any backend.Storage and re-executes failed operations with
// a linear backoff. It holds no mutable state and is safe for concurrent use.
// Create and set operations are retried as well, the wrapped backend must
// tolerate repeated identical calls.
type Storage struct {
	storage backend.Storage
	options *RetryOptions

	// sleep waits for d or until ctx is done
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new retrying wrapper around the given storage.
func New(storage backend.Storage, opts ...RetryOption) (*Storage, error) {
	options := newDefaultRetryOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return &Storage{
		storage: storage,
		options: options,
		sleep:   sleep,
	}, nil
}

// Unwrap returns the wrapped storage.
func (s *Storage) Unwrap() backend.Storage {
	return s.storage
}

func (s *Storage) Name() string {
	return s.storage.Name()
}

func (s *Storage) Open(ctx context.Context) error {
	return s.storage.Open(ctx)
}

func (s *Storage) Close(ctx context.Context) error {
	return s.storage.Close(ctx)
}

func (s *Storage) GetCapabilities() *backend.Capabilities {
	return s.storage.GetCapabilities()
}

func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	return do(ctx, s, "exists", func(ctx context.Context) (bool, error) {
		return s.storage.Exists(ctx, path)
	})
}

func (s *Storage) CreateContainer(ctx context.Context, name string) error {
	_, err := do(ctx, s, "create_container", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.storage.CreateContainer(ctx, name)
	})
	return err
}

func (s *Storage) CreateDirectory(ctx context.Context, path string) error {
	_, err := do(ctx, s, "create_directory", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.storage.CreateDirectory(ctx, path)
	})
	return err
}

func (s *Storage) GetAccessControl(ctx context.Context, path string, upn bool) (*data.AccessControl, error) {
	return do(ctx, s, "get_access_control", func(ctx context.Context) (*data.AccessControl, error) {
		return s.storage.GetAccessControl(ctx, path, upn)
	})
}

func (s *Storage) SetAccessControl(ctx context.Context, path string, ac *data.AccessControl) error {
	_, err := do(ctx, s, "set_access_control", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.storage.SetAccessControl(ctx, path, ac)
	})
	return err
}

func (s *Storage) List(ctx context.Context, path string, recursive bool, maxResults int) ([]*data.Item, error) {
	return do(ctx, s, "list", func(ctx context.Context) ([]*data.Item, error) {
		return s.storage.List(ctx, path, recursive, maxResults)
	})
}

func (s *Storage) ListContainers(ctx context.Context) ([]string, error) {
	return do(ctx, s, "list_containers", func(ctx context.Context) ([]string, error) {
		return s.storage.ListContainers(ctx)
	})
}

// do runs fn up to Retries times. After a failed attempt n, except the last,
// it waits BaseDelay*n. No partial result is returned on failure.
func do[T any](ctx context.Context, s *Storage, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= s.options.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w", err, lastErr)
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == s.options.Retries {
			break
		}

		delay := s.options.BaseDelay * time.Duration(attempt)
		s.options.Logger.Warn("Attempt %d of %d for '%s' failed, retrying in %s: %v", attempt, s.options.Retries, op, delay, err)

		if err := s.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%w: %w", err, lastErr)
		}
	}

	return zero, &data.RetriesExhaustedError{
		Op:      op,
		Retries: s.options.Retries,
		Err:     lastErr,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
