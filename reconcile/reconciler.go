package reconcile

import (
	"context"
	"fmt"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
	"github.com/mwantia/aclsync/log"
)

// Reconciler converges the access control state of declared directories.
// Directories are processed strictly in order, the first failure aborts the run.
type Reconciler struct {
	storage      backend.Storage
	capabilities *backend.Capabilities
	logger       *log.Logger
	options      *ReconcileOptions
}

// PathResult summarizes the reconciliation of a single declared directory.
type PathResult struct {
	Path      string
	Created   bool
	Different bool
	Forced    bool
	// Items is the number of descendants the expected state was applied to
	Items int
}

// Applied reports whether the path has been written.
func (pr *PathResult) Applied() bool {
	return pr.Different || pr.Forced
}

// Result summarizes a run. Paths holds one entry per processed directory.
type Result struct {
	Paths     []*PathResult
	Unchanged int
	Applied   int
	Items     int
}

func (r *Result) add(pr *PathResult) {
	r.Paths = append(r.Paths, pr)
	if pr.Applied() {
		r.Applied++
		r.Items += pr.Items
	} else {
		r.Unchanged++
	}
}

func New(storage backend.Storage, logger *log.Logger, opts ...ReconcileOption) (*Reconciler, error) {
	options := newDefaultReconcileOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if logger == nil {
		logger = log.Discard()
	}

	capabilities := storage.GetCapabilities()
	if capabilities == nil || !capabilities.Contains(backend.CapabilityACL) {
		return nil, fmt.Errorf("%w: backend '%s' does not support '%s'", data.ErrBackendUnsupported, storage.Name(), backend.CapabilityACL)
	}

	return &Reconciler{
		storage:      storage,
		capabilities: capabilities,
		logger:       logger,
		options:      options,
	}, nil
}

// Run reconciles every directory in order. On failure the error is logged
// once and returned unchanged, together with the results of the paths
// completed before it. Already applied changes are kept.
func (r *Reconciler) Run(ctx context.Context, directories []*data.DeclaredDirectory) (*Result, error) {
	result := &Result{
		Paths: make([]*PathResult, 0, len(directories)),
	}

	for _, directory := range directories {
		pr, err := r.reconcile(ctx, directory)
		if err != nil {
			r.logger.Error("%v", err)
			return result, err
		}

		result.add(pr)
	}

	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, directory *data.DeclaredDirectory) (*PathResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if directory.Upn && !r.capabilities.Contains(backend.CapabilityUPN) {
		r.logger.Warn("%s - Backend '%s' cannot resolve principal names, identities are compared as stored.", directory.Path, r.storage.Name())
	}

	dr := &directoryReconciler{
		storage:   r.storage,
		logger:    r.logger,
		batchSize: r.options.BatchSize,
		directory: directory,
	}

	return dr.process(ctx)
}
