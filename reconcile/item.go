package reconcile

import (
	"context"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// itemApplier overwrites the access control state of one descendant with
// the expected lists of its owning directory. It never diffs.
type itemApplier struct {
	storage    backend.Storage
	item       *data.Item
	acl        []data.AclEntry
	defaultAcl []data.AclEntry
	upn        bool
}

func (ia *itemApplier) apply(ctx context.Context) error {
	ac, err := ia.storage.GetAccessControl(ctx, ia.item.FullPath, ia.upn)
	if err != nil {
		return err
	}

	// Files always end up without default entries, even if they had some
	ac.Replace(ia.acl, ia.defaultAcl, ia.item.IsFolder)

	return ia.storage.SetAccessControl(ctx, ia.item.FullPath, ac)
}
