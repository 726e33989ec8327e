package backend

import (
	"fmt"

	"github.com/mwantia/aclsync/data"
)

const (
	// DefaultOwner is assigned to items created without an explicit owner.
	DefaultOwner = "$superuser"
	// DefaultGroup is assigned to items created without an explicit group.
	DefaultGroup = "$superuser"
)

// NewAccessControl returns the initial state of an item created below parent.
// Like POSIX, the default ACL of the parent directory becomes the effective ACL
// of the child and, for directories, its default ACL as well.
func NewAccessControl(parent *data.AccessControl, isFolder bool) *data.AccessControl {
	ac := &data.AccessControl{
		Owner: DefaultOwner,
		Group: DefaultGroup,
		Acl: []data.AclEntry{
			data.NewAclEntry(data.ObjectTypeUser, "", true, true, true),
			data.NewAclEntry(data.ObjectTypeGroup, "", true, false, true),
			data.NewAclEntry(data.ObjectTypeOther, "", false, false, false),
		},
		DefaultAcl: make([]data.AclEntry, 0),
	}

	if parent != nil {
		ac.Owner = parent.Owner
		ac.Group = parent.Group

		if len(parent.DefaultAcl) > 0 {
			ac.Replace(parent.DefaultAcl, parent.DefaultAcl, isFolder)
		}
	}

	ac.Permissions = ac.Summary()
	return ac
}

// PrepareAccessControl validates ac before it is persisted for an item and
// returns a copy with a refreshed permission summary.
func PrepareAccessControl(path string, ac *data.AccessControl, isFolder bool) (*data.AccessControl, error) {
	if ac == nil {
		return nil, fmt.Errorf("%w: missing access control for '%s'", data.ErrInvalidEntry, path)
	}

	if !isFolder && len(ac.DefaultAcl) > 0 {
		return nil, fmt.Errorf("%w: '%s'", data.ErrDefaultAclOnFile, path)
	}

	for _, entries := range [][]data.AclEntry{ac.Acl, ac.DefaultAcl} {
		for _, entry := range entries {
			if !entry.ObjectType.Valid() {
				return nil, fmt.Errorf("%w: '%s' on '%s'", data.ErrInvalidObjectType, entry, path)
			}
		}
	}

	prepared := ac.Clone()
	prepared.Permissions = prepared.Summary()

	return prepared, nil
}

// ResolvePrincipals rewrites identities of ac to their principal names using
// lookup. Identities without a known principal name are kept as they are.
func ResolvePrincipals(ac *data.AccessControl, lookup func(id string) (string, bool)) {
	resolve := func(entries []data.AclEntry) {
		for i := range entries {
			if entries[i].Identity == "" {
				continue
			}
			if upn, ok := lookup(entries[i].Identity); ok {
				entries[i].Identity = upn
			}
		}
	}

	resolve(ac.Acl)
	resolve(ac.DefaultAcl)

	if upn, ok := lookup(ac.Owner); ok {
		ac.Owner = upn
	}
	if upn, ok := lookup(ac.Group); ok {
		ac.Group = upn
	}
}

// ResolveObjectIDs rewrites principal names of ac back to their object ids.
// principals maps object ids to names, as used by ResolvePrincipals, so a
// state read with upn resolution is stored with object ids again.
func ResolveObjectIDs(ac *data.AccessControl, principals map[string]string) {
	if len(principals) == 0 {
		return
	}

	ids := make(map[string]string, len(principals))
	for id, name := range principals {
		ids[name] = id
	}

	ResolvePrincipals(ac, func(name string) (string, bool) {
		id, ok := ids[name]
		return id, ok
	})
}

// LimitItems truncates items to maxResults, where maxResults <= 0 means unlimited.
func LimitItems(items []*data.Item, maxResults int) []*data.Item {
	if maxResults > 0 && len(items) > maxResults {
		return items[:maxResults]
	}

	return items
}

// ValidateContainer checks a container name, which must not contain a separator.
func ValidateContainer(name string) error {
	if name == "" || !data.IsContainerPath(name) {
		return fmt.Errorf("%w: '%s'", data.ErrInvalidContainer, name)
	}

	return nil
}
