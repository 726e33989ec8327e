package s3

import (
	"strings"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

const (
	// RootMarker holds the access control state of a bucket root.
	RootMarker = ".aclsync"
	// DirectoryContentType marks zero-byte directory objects.
	DirectoryContentType = "application/x-directory"

	metaOwner       = "Aclsync-Owner"
	metaGroup       = "Aclsync-Group"
	metaPermissions = "Aclsync-Permissions"
	metaAcl         = "Aclsync-Acl"
	metaDefaultAcl  = "Aclsync-Default-Acl"
)

// encodeMetadata renders the access control state as object user metadata.
func encodeMetadata(ac *data.AccessControl) (map[string]string, error) {
	acl, err := data.EncodeAcl(ac.Acl)
	if err != nil {
		return nil, err
	}

	defaultAcl, err := data.EncodeAcl(ac.DefaultAcl)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		metaOwner:       ac.Owner,
		metaGroup:       ac.Group,
		metaPermissions: ac.Permissions,
		metaAcl:         acl,
		metaDefaultAcl:  defaultAcl,
	}, nil
}

// decodeMetadata restores the access control state from object user metadata.
// Objects written by other clients carry no state and get the initial one.
func decodeMetadata(meta map[string]string, folder bool) (*data.AccessControl, error) {
	normalized := make(map[string]string, len(meta))
	for key, value := range meta {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, "x-amz-meta-")
		normalized[key] = value
	}

	lookup := func(key string) (string, bool) {
		value, ok := normalized[strings.ToLower(key)]
		return value, ok
	}

	raw, ok := lookup(metaAcl)
	if !ok {
		return backend.NewAccessControl(nil, folder), nil
	}

	acl, err := data.DecodeAcl(raw)
	if err != nil {
		return nil, err
	}

	rawDefault, _ := lookup(metaDefaultAcl)
	defaultAcl, err := data.DecodeAcl(rawDefault)
	if err != nil {
		return nil, err
	}

	owner, _ := lookup(metaOwner)
	group, _ := lookup(metaGroup)
	permissions, _ := lookup(metaPermissions)

	return &data.AccessControl{
		Owner:       owner,
		Group:       group,
		Permissions: permissions,
		Acl:         acl,
		DefaultAcl:  defaultAcl,
	}, nil
}

// objectKeys returns the candidate object keys of a path relative to its bucket:
// the directory marker first, then the plain file key.
func objectKeys(rel string) (string, string) {
	if rel == "" {
		return RootMarker, ""
	}

	return rel + data.Separator, rel
}
