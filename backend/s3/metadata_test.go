package s3

import (
	"testing"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/data"
)

// TestMetadata_RoundTrip verifies the access control state survives the
// header normalization applied by S3 compatible stores.
func TestMetadata_RoundTrip(t *testing.T) {
	acl, _ := data.ParseAcl("user::rwx,user:alice:r-x,group::r-x,mask::r-x,other::---")
	defaultAcl, _ := data.ParseAcl("user:alice:r-x")
	ac := &data.AccessControl{
		Owner:      "owner",
		Group:      "group",
		Acl:        acl,
		DefaultAcl: defaultAcl,
	}
	ac.Permissions = ac.Summary()

	encoded, err := encodeMetadata(ac)
	if err != nil {
		t.Fatalf("encodeMetadata failed: %v", err)
	}

	meta := make(map[string]string)
	for key, value := range encoded {
		meta["X-Amz-Meta-"+key] = value
	}

	decoded, err := decodeMetadata(meta, true)
	if err != nil {
		t.Fatalf("decodeMetadata failed: %v", err)
	}

	if decoded.Owner != "owner" || decoded.Group != "group" {
		t.Errorf("Expected owner/group, got %s/%s", decoded.Owner, decoded.Group)
	}
	if data.FormatAcl(decoded.Acl) != data.FormatAcl(acl) {
		t.Errorf("Expected %s, got %s", data.FormatAcl(acl), data.FormatAcl(decoded.Acl))
	}
	if data.FormatAcl(decoded.DefaultAcl) != "user:alice:r-x" {
		t.Errorf("Expected user:alice:r-x, got %s", data.FormatAcl(decoded.DefaultAcl))
	}
	if decoded.Permissions != ac.Permissions {
		t.Errorf("Expected %s, got %s", ac.Permissions, decoded.Permissions)
	}
}

// TestMetadata_Missing verifies foreign objects get the initial state.
func TestMetadata_Missing(t *testing.T) {
	decoded, err := decodeMetadata(map[string]string{"Content-Type": "text/csv"}, false)
	if err != nil {
		t.Fatalf("decodeMetadata failed: %v", err)
	}

	expected := backend.NewAccessControl(nil, false)
	if data.FormatAcl(decoded.Acl) != data.FormatAcl(expected.Acl) {
		t.Errorf("Expected %s, got %s", data.FormatAcl(expected.Acl), data.FormatAcl(decoded.Acl))
	}
	if len(decoded.DefaultAcl) != 0 {
		t.Errorf("Expected empty default acl, got %v", decoded.DefaultAcl)
	}
}

// TestMetadata_SeparatorIdentity verifies identities containing list and
// entry separators survive the metadata encoding.
func TestMetadata_SeparatorIdentity(t *testing.T) {
	ac := backend.NewAccessControl(nil, true)
	ac.Acl = append(ac.Acl, data.NewAclEntry(data.ObjectTypeGroup, "CN=Data Eng,OU=Groups", true, false, false))
	ac.DefaultAcl = []data.AclEntry{data.NewAclEntry(data.ObjectTypeUser, "urn:user:a", true, true, false)}

	encoded, err := encodeMetadata(ac)
	if err != nil {
		t.Fatalf("encodeMetadata failed: %v", err)
	}

	decoded, err := decodeMetadata(encoded, true)
	if err != nil {
		t.Fatalf("decodeMetadata failed: %v", err)
	}

	if len(data.Diff(ac.Acl, decoded.Acl, false)) != 0 {
		t.Errorf("Expected %s, got %s", data.FormatAcl(ac.Acl), data.FormatAcl(decoded.Acl))
	}
	if len(decoded.DefaultAcl) != 1 || decoded.DefaultAcl[0].Identity != "urn:user:a" {
		t.Errorf("Expected urn:user:a default entry, got %v", decoded.DefaultAcl)
	}
}

// TestMetadata_ListForm verifies metadata written in the comma separated
// list form is still readable.
func TestMetadata_ListForm(t *testing.T) {
	decoded, err := decodeMetadata(map[string]string{
		"X-Amz-Meta-Aclsync-Acl":         "user::rwx,group::r-x,other::---",
		"X-Amz-Meta-Aclsync-Default-Acl": "",
	}, true)
	if err != nil {
		t.Fatalf("decodeMetadata failed: %v", err)
	}

	if data.FormatAcl(decoded.Acl) != "user::rwx,group::r-x,other::---" {
		t.Errorf("Expected user::rwx,group::r-x,other::---, got %s", data.FormatAcl(decoded.Acl))
	}
}

// TestObjectKeys verifies marker and file keys of relative paths.
func TestObjectKeys(t *testing.T) {
	dir, file := objectKeys("a/b")
	if dir != "a/b/" || file != "a/b" {
		t.Errorf("Expected (a/b/, a/b), got (%s, %s)", dir, file)
	}

	dir, _ = objectKeys("")
	if dir != RootMarker {
		t.Errorf("Expected %s, got %s", RootMarker, dir)
	}
}
