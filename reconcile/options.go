package reconcile

import "fmt"

// DefaultBatchSize is the number of descendants applied concurrently.
const DefaultBatchSize = 15

type ReconcileOptions struct {
	BatchSize int
}

type ReconcileOption func(*ReconcileOptions) error

func newDefaultReconcileOptions() *ReconcileOptions {
	return &ReconcileOptions{
		BatchSize: DefaultBatchSize,
	}
}

func WithBatchSize(size int) ReconcileOption {
	return func(opts *ReconcileOptions) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		opts.BatchSize = size
		return nil
	}
}
