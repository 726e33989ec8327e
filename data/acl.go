package data

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ObjectType identifies which kind of principal an AclEntry applies to.
type ObjectType int

const (
	ObjectTypeUser ObjectType = iota
	ObjectTypeGroup
	ObjectTypeMask
	ObjectTypeOther
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeUser:
		return "user"
	case ObjectTypeGroup:
		return "group"
	case ObjectTypeMask:
		return "mask"
	case ObjectTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	return t >= ObjectTypeUser && t <= ObjectTypeOther
}

// ParseObjectType parses the name of an object type, ignoring case.
func ParseObjectType(s string) (ObjectType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return ObjectTypeUser, nil
	case "group":
		return ObjectTypeGroup, nil
	case "mask":
		return ObjectTypeMask, nil
	case "other":
		return ObjectTypeOther, nil
	}

	return 0, fmt.Errorf("%w: '%s'", ErrInvalidObjectType, s)
}

func (t ObjectType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidObjectType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts both the name and the numeric value of an object type.
func (t *ObjectType) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectType(string(text))
	if err == nil {
		*t = parsed
		return nil
	}

	n, convErr := strconv.Atoi(strings.TrimSpace(string(text)))
	if convErr != nil {
		return err
	}
	if !ObjectType(n).Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidObjectType, n)
	}

	*t = ObjectType(n)
	return nil
}

func (t *ObjectType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		return t.UnmarshalText([]byte(name))
	}

	return t.UnmarshalText(b)
}

// AclEntry is a single POSIX-like access control entry.
// An empty Identity denotes the unnamed (owning) entry of its type.
type AclEntry struct {
	ObjectType ObjectType `json:"object_type"`
	Identity   string     `json:"identity"`
	Read       bool       `json:"read"`
	Write      bool       `json:"write"`
	Execute    bool       `json:"execute"`
}

// NewAclEntry creates a new entry for the given principal and permissions.
func NewAclEntry(objectType ObjectType, identity string, read, write, execute bool) AclEntry {
	return AclEntry{
		ObjectType: objectType,
		Identity:   identity,
		Read:       read,
		Write:      write,
		Execute:    execute,
	}
}

// Permissions returns the rwx mask of the entry, e.g. "r-x".
func (e AclEntry) Permissions() string {
	buf := []byte("---")
	if e.Read {
		buf[0] = 'r'
	}
	if e.Write {
		buf[1] = 'w'
	}
	if e.Execute {
		buf[2] = 'x'
	}

	return string(buf)
}

// String returns the canonical form `type:identity:rwx`.
// Example: "user:c20047f4-79e8-4446-b441-b1ea03a8e17d:rwx" or "other::r-x".
func (e AclEntry) String() string {
	return fmt.Sprintf("%s:%s:%s", e.ObjectType, e.Identity, e.Permissions())
}

// ParseAclEntry parses the canonical form produced by String.
// The short form `type:rwx` is accepted for unnamed entries.
func ParseAclEntry(s string) (AclEntry, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")

	var typ, identity, perms string
	switch len(parts) {
	case 2:
		typ, perms = parts[0], parts[1]
	case 3:
		typ, identity, perms = parts[0], parts[1], parts[2]
	default:
		return AclEntry{}, fmt.Errorf("%w: '%s'", ErrInvalidEntry, s)
	}

	objectType, err := ParseObjectType(typ)
	if err != nil {
		return AclEntry{}, err
	}

	if len(perms) != 3 {
		return AclEntry{}, fmt.Errorf("%w: '%s' has malformed permissions", ErrInvalidEntry, s)
	}

	entry := AclEntry{
		ObjectType: objectType,
		Identity:   identity,
	}

	for i, want := range []byte("rwx") {
		switch perms[i] {
		case want:
			switch i {
			case 0:
				entry.Read = true
			case 1:
				entry.Write = true
			case 2:
				entry.Execute = true
			}
		case '-':
		default:
			return AclEntry{}, fmt.Errorf("%w: '%s' has malformed permissions", ErrInvalidEntry, s)
		}
	}

	return entry, nil
}

// FormatAcl renders entries as a comma separated list of canonical entries.
func FormatAcl(entries []AclEntry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		parts = append(parts, entry.String())
	}

	return strings.Join(parts, ",")
}

// ParseAcl parses a list produced by FormatAcl. An empty string yields no entries.
func ParseAcl(s string) ([]AclEntry, error) {
	entries := make([]AclEntry, 0)
	if strings.TrimSpace(s) == "" {
		return entries, nil
	}

	for part := range strings.SplitSeq(s, ",") {
		entry, err := ParseAclEntry(part)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// EncodeAcl renders entries as a JSON array for persistence. Unlike FormatAcl
// the result round trips identities containing separators.
func EncodeAcl(entries []AclEntry) (string, error) {
	if entries == nil {
		entries = make([]AclEntry, 0)
	}

	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// DecodeAcl restores entries written by EncodeAcl. Values in the list form
// of FormatAcl are still accepted.
func DecodeAcl(s string) ([]AclEntry, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") {
		return ParseAcl(trimmed)
	}

	entries := make([]AclEntry, 0)
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	for _, entry := range entries {
		if !entry.ObjectType.Valid() {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidObjectType, entry)
		}
	}

	return entries, nil
}
