package reconcile

import (
	"context"
	"slices"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
	"github.com/mwantia/aclsync/log"
	"golang.org/x/sync/errgroup"
)

// directoryReconciler runs the state machine of a single declared directory:
// ensure, fetch actual, compute expected, diff and, when different or
// forced, write itself before applying to every descendant.
type directoryReconciler struct {
	storage   backend.Storage
	logger    *log.Logger
	batchSize int
	directory *data.DeclaredDirectory

	actual     *data.AccessControl
	acl        []data.AclEntry
	defaultAcl []data.AclEntry
}

func (dr *directoryReconciler) process(ctx context.Context) (*PathResult, error) {
	result := &PathResult{
		Path:   dr.directory.Path,
		Forced: dr.directory.Force,
	}

	var err error
	if dr.directory.IsContainer() {
		result.Created, err = dr.ensureContainer(ctx)
	} else {
		result.Created, err = dr.ensureDirectory(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := dr.fetchActual(ctx); err != nil {
		return nil, err
	}

	dr.computeExpected()
	result.Different = dr.diff()

	if !result.Different && !dr.directory.Force {
		return result, nil
	}

	if err := dr.write(ctx); err != nil {
		return nil, err
	}

	result.Items, err = dr.applyItems(ctx)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (dr *directoryReconciler) ensureContainer(ctx context.Context) (bool, error) {
	containers, err := dr.storage.ListContainers(ctx)
	if err != nil {
		return false, err
	}

	if slices.Contains(containers, dr.directory.Path) {
		dr.logger.Info("%s - Exists.", dr.directory.Path)
		return false, nil
	}

	if err := dr.storage.CreateContainer(ctx, dr.directory.Path); err != nil {
		return false, err
	}

	dr.logger.Info("%s - Not exists: creating filesystem.", dr.directory.Path)
	return true, nil
}

func (dr *directoryReconciler) ensureDirectory(ctx context.Context) (bool, error) {
	exists, err := dr.storage.Exists(ctx, dr.directory.Path)
	if err != nil {
		return false, err
	}

	if exists {
		dr.logger.Info("%s - Exists.", dr.directory.Path)
		return false, nil
	}

	if err := dr.storage.CreateDirectory(ctx, dr.directory.Path); err != nil {
		return false, err
	}

	dr.logger.Info("%s - Not exists: creating directory.", dr.directory.Path)
	return true, nil
}

func (dr *directoryReconciler) fetchActual(ctx context.Context) error {
	actual, err := dr.storage.GetAccessControl(ctx, dr.directory.Path, dr.directory.Upn)
	if err != nil {
		return err
	}

	dr.actual = actual
	dr.logger.Info("%s - Actual: %s.", dr.directory.Path, data.FormatAcl(actual.Acl))
	dr.logger.Info("%s - Actual default: %s.", dr.directory.Path, data.FormatAcl(actual.DefaultAcl))

	return nil
}

func (dr *directoryReconciler) computeExpected() {
	dr.acl, dr.defaultAcl = dr.directory.Expected()

	dr.logger.Info("%s - Expected: %s.", dr.directory.Path, data.FormatAcl(dr.acl))
	dr.logger.Info("%s - Expected default: %s.", dr.directory.Path, data.FormatAcl(dr.defaultAcl))
}

// diff reports whether the effective or default lists differ structurally.
func (dr *directoryReconciler) diff() bool {
	differences := data.DiffAccessControl(dr.acl, dr.defaultAcl, dr.actual)

	dr.logger.Info("%s - Differences: %s", dr.directory.Path, differences.Effective())
	dr.logger.Info("%s - Differences default: %s", dr.directory.Path, differences.Defaults())

	return len(differences) > 0
}

func (dr *directoryReconciler) write(ctx context.Context) error {
	dr.actual.Replace(dr.acl, dr.defaultAcl, true)
	return dr.storage.SetAccessControl(ctx, dr.directory.Path, dr.actual)
}

// applyItems lists the descendants and applies the expected lists in
// sequential batches. A batch completes entirely before the next starts.
func (dr *directoryReconciler) applyItems(ctx context.Context) (int, error) {
	items, err := dr.storage.List(ctx, dr.directory.Path, dr.directory.Recurse, data.Unlimited)
	if err != nil {
		return 0, err
	}

	for batch := range slices.Chunk(items, dr.batchSize) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		// Siblings run to completion when one of them fails
		var g errgroup.Group
		for _, item := range batch {
			dr.logger.Info("%s - Applying to file: %s.", dr.directory.Path, item.FullPath)

			applier := &itemApplier{
				storage:    dr.storage,
				item:       item,
				acl:        dr.acl,
				defaultAcl: dr.defaultAcl,
				upn:        dr.directory.Upn,
			}
			g.Go(func() error {
				return applier.apply(ctx)
			})
		}

		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	return len(items), nil
}
