package backend

import (
	"fmt"

	"github.com/mwantia/aclsync/data"
)

// Record is the persisted form of an item shared by the database and
// key-value backends. ACL lists are kept as JSON arrays of entries.
type Record struct {
	ID          string `json:"id"`
	Folder      bool   `json:"folder"`
	Owner       string `json:"owner"`
	Group       string `json:"group"`
	Permissions string `json:"permissions"`
	Acl         string `json:"acl"`
	DefaultAcl  string `json:"default_acl"`
	ModifyTime  int64  `json:"modify_time"`
}

// NewRecord builds the persisted form of an access control state.
func NewRecord(id string, folder bool, ac *data.AccessControl) (*Record, error) {
	acl, err := data.EncodeAcl(ac.Acl)
	if err != nil {
		return nil, fmt.Errorf("failed to encode acl of '%s': %w", id, err)
	}

	defaultAcl, err := data.EncodeAcl(ac.DefaultAcl)
	if err != nil {
		return nil, fmt.Errorf("failed to encode default acl of '%s': %w", id, err)
	}

	return &Record{
		ID:          id,
		Folder:      folder,
		Owner:       ac.Owner,
		Group:       ac.Group,
		Permissions: ac.Permissions,
		Acl:         acl,
		DefaultAcl:  defaultAcl,
	}, nil
}

// AccessControl decodes the access control state held by the record.
func (r *Record) AccessControl() (*data.AccessControl, error) {
	acl, err := data.DecodeAcl(r.Acl)
	if err != nil {
		return nil, fmt.Errorf("failed to decode acl of '%s': %w", r.ID, err)
	}

	defaultAcl, err := data.DecodeAcl(r.DefaultAcl)
	if err != nil {
		return nil, fmt.Errorf("failed to decode default acl of '%s': %w", r.ID, err)
	}

	return &data.AccessControl{
		Owner:       r.Owner,
		Group:       r.Group,
		Permissions: r.Permissions,
		Acl:         acl,
		DefaultAcl:  defaultAcl,
	}, nil
}
