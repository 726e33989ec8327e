package data

import "fmt"

// DeclaredDirectory is the desired state of a single container or directory.
type DeclaredDirectory struct {
	Path    string        `json:"path" yaml:"path"`
	Upn     bool          `json:"upn" yaml:"upn"`
	Recurse bool          `json:"recurse" yaml:"recurse"`
	Force   bool          `json:"force" yaml:"force"`
	Acls    []DeclaredAcl `json:"acls" yaml:"acls"`
}

// DeclaredAcl declares the effective and default permissions of one principal.
type DeclaredAcl struct {
	ObjectType     ObjectType `json:"objectType" yaml:"object_type"`
	Identity       string     `json:"identity" yaml:"identity"`
	Read           bool       `json:"read" yaml:"read"`
	Write          bool       `json:"write" yaml:"write"`
	Execute        bool       `json:"execute" yaml:"execute"`
	DefaultRead    bool       `json:"defaultRead" yaml:"default_read"`
	DefaultWrite   bool       `json:"defaultWrite" yaml:"default_write"`
	DefaultExecute bool       `json:"defaultExecute" yaml:"default_execute"`
}

// Effective projects the declaration onto its effective entry.
func (da DeclaredAcl) Effective() AclEntry {
	return NewAclEntry(da.ObjectType, da.Identity, da.Read, da.Write, da.Execute)
}

// Default projects the declaration onto its default entry.
func (da DeclaredAcl) Default() AclEntry {
	return NewAclEntry(da.ObjectType, da.Identity, da.DefaultRead, da.DefaultWrite, da.DefaultExecute)
}

// Expected expands the declared ACLs into the effective and default entry
// lists, both in declaration order.
func (dd *DeclaredDirectory) Expected() ([]AclEntry, []AclEntry) {
	acl := make([]AclEntry, 0, len(dd.Acls))
	defaultAcl := make([]AclEntry, 0, len(dd.Acls))

	for _, declared := range dd.Acls {
		acl = append(acl, declared.Effective())
		defaultAcl = append(defaultAcl, declared.Default())
	}

	return acl, defaultAcl
}

// IsContainer reports whether the declared path denotes a container root.
func (dd *DeclaredDirectory) IsContainer() bool {
	return IsContainerPath(dd.Path)
}

// Validate checks the declaration for malformed paths and object types.
func (dd *DeclaredDirectory) Validate() error {
	if err := ValidatePath(dd.Path); err != nil {
		return err
	}

	for i, declared := range dd.Acls {
		if !declared.ObjectType.Valid() {
			return fmt.Errorf("%w: acl #%d of '%s'", ErrInvalidObjectType, i, dd.Path)
		}
	}

	return nil
}
