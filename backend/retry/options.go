package retry

import (
	"fmt"
	"time"

	"github.com/mwantia/aclsync/log"
)

const (
	// DefaultRetries is the total number of attempts per operation.
	DefaultRetries = 3
	// DefaultBaseDelay is multiplied by the attempt number before each retry.
	DefaultBaseDelay = time.Second
)

type RetryOptions struct {
	Retries   int
	BaseDelay time.Duration
	Logger    *log.Logger
}

type RetryOption func(*RetryOptions) error

func newDefaultRetryOptions() *RetryOptions {
	return &RetryOptions{
		Retries:   DefaultRetries,
		BaseDelay: DefaultBaseDelay,
		Logger:    log.Discard(),
	}
}

func WithRetries(retries int) RetryOption {
	return func(opts *RetryOptions) error {
		if retries < 1 {
			return fmt.Errorf("retries must be at least 1, got %d", retries)
		}
		opts.Retries = retries
		return nil
	}
}

func WithBaseDelay(delay time.Duration) RetryOption {
	return func(opts *RetryOptions) error {
		if delay < 0 {
			return fmt.Errorf("base delay must not be negative, got %s", delay)
		}
		opts.BaseDelay = delay
		return nil
	}
}

func WithLogger(logger *log.Logger) RetryOption {
	return func(opts *RetryOptions) error {
		if logger != nil {
			opts.Logger = logger
		}
		return nil
	}
}
