package data

import "slices"

// AccessControl is the access control state of a single path.
// DefaultAcl is only ever populated for directories.
type AccessControl struct {
	Owner       string     `json:"owner"`
	Group       string     `json:"group"`
	Permissions string     `json:"permissions"`
	Acl         []AclEntry `json:"acl"`
	DefaultAcl  []AclEntry `json:"default_acl"`
}

// Replace overwrites both ACL lists in place with the given entries.
// For non-directories the default ACL is cleared instead.
func (ac *AccessControl) Replace(acl, defaultAcl []AclEntry, isDirectory bool) {
	ac.Acl = cloneEntries(acl)

	if isDirectory {
		ac.DefaultAcl = cloneEntries(defaultAcl)
	} else {
		ac.DefaultAcl = make([]AclEntry, 0)
	}
}

// Clone returns a deep copy so callers never share the entry slices.
func (ac *AccessControl) Clone() *AccessControl {
	if ac == nil {
		return nil
	}

	return &AccessControl{
		Owner:       ac.Owner,
		Group:       ac.Group,
		Permissions: ac.Permissions,
		Acl:         cloneEntries(ac.Acl),
		DefaultAcl:  cloneEntries(ac.DefaultAcl),
	}
}

// Summary derives the `rwxr-x---` style summary from the unnamed user, group
// (or mask, when present) and other entries.
func (ac *AccessControl) Summary() string {
	var user, group, mask, other *AclEntry
	for i := range ac.Acl {
		entry := &ac.Acl[i]
		if entry.Identity != "" {
			continue
		}

		switch entry.ObjectType {
		case ObjectTypeUser:
			user = entry
		case ObjectTypeGroup:
			group = entry
		case ObjectTypeMask:
			mask = entry
		case ObjectTypeOther:
			other = entry
		}
	}

	if mask != nil {
		group = mask
	}

	summary := ""
	for _, entry := range []*AclEntry{user, group, other} {
		if entry == nil {
			summary += "---"
			continue
		}
		summary += entry.Permissions()
	}

	if mask != nil {
		summary += "+"
	}

	return summary
}

func cloneEntries(entries []AclEntry) []AclEntry {
	if entries == nil {
		return make([]AclEntry, 0)
	}
	return slices.Clone(entries)
}
