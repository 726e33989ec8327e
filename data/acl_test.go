package data

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestAclEntry_String verifies the canonical rendering of named and unnamed entries.
func TestAclEntry_String(t *testing.T) {
	tests := []struct {
		entry AclEntry
		want  string
	}{
		{NewAclEntry(ObjectTypeUser, "c20047f4-79e8-4446-b441-b1ea03a8e17d", true, true, true), "user:c20047f4-79e8-4446-b441-b1ea03a8e17d:rwx"},
		{NewAclEntry(ObjectTypeUser, "", true, true, true), "user::rwx"},
		{NewAclEntry(ObjectTypeGroup, "", true, false, true), "group::r-x"},
		{NewAclEntry(ObjectTypeMask, "", true, false, false), "mask::r--"},
		{NewAclEntry(ObjectTypeOther, "", false, false, false), "other::---"},
	}

	for _, tt := range tests {
		if got := tt.entry.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

// TestParseAclEntry verifies that rendered entries parse back into the same entry.
func TestParseAclEntry(t *testing.T) {
	entries := []AclEntry{
		NewAclEntry(ObjectTypeUser, "ea6be951-d694-4b49-bd5c-fef06e7b9a59", true, false, true),
		NewAclEntry(ObjectTypeGroup, "", false, true, false),
		NewAclEntry(ObjectTypeOther, "", false, false, false),
	}

	for _, entry := range entries {
		parsed, err := ParseAclEntry(entry.String())
		if err != nil {
			t.Fatalf("ParseAclEntry(%q) failed: %v", entry, err)
		}
		if parsed != entry {
			t.Errorf("Expected %v, got %v", entry, parsed)
		}
	}

	short, err := ParseAclEntry("mask:rw-")
	if err != nil {
		t.Fatalf("ParseAclEntry short form failed: %v", err)
	}
	if short != NewAclEntry(ObjectTypeMask, "", true, true, false) {
		t.Errorf("Unexpected short form result: %v", short)
	}
}

// TestParseAclEntry_Invalid verifies malformed entries are rejected.
func TestParseAclEntry_Invalid(t *testing.T) {
	for _, input := range []string{"", "user", "nobody::rwx", "user::rw", "user::wrx", "a:b:c:d"} {
		if _, err := ParseAclEntry(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}

	if _, err := ParseAclEntry("user::rwz"); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

// TestParseAcl verifies list formatting and parsing including the empty list.
func TestParseAcl(t *testing.T) {
	entries := []AclEntry{
		NewAclEntry(ObjectTypeUser, "", true, true, true),
		NewAclEntry(ObjectTypeUser, "alice@contoso.com", true, false, false),
		NewAclEntry(ObjectTypeOther, "", false, false, false),
	}

	formatted := FormatAcl(entries)
	if formatted != "user::rwx,user:alice@contoso.com:r--,other::---" {
		t.Errorf("Unexpected format result: %q", formatted)
	}

	parsed, err := ParseAcl(formatted)
	if err != nil {
		t.Fatalf("ParseAcl failed: %v", err)
	}
	if len(parsed) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(parsed))
	}
	for i := range entries {
		if parsed[i] != entries[i] {
			t.Errorf("Entry %d: expected %v, got %v", i, entries[i], parsed[i])
		}
	}

	empty, err := ParseAcl("")
	if err != nil {
		t.Fatalf("ParseAcl empty failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", empty)
	}
}

// TestObjectType_UnmarshalJSON verifies names and numeric values are accepted.
func TestObjectType_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  ObjectType
	}{
		{`"User"`, ObjectTypeUser},
		{`"group"`, ObjectTypeGroup},
		{`"MASK"`, ObjectTypeMask},
		{`3`, ObjectTypeOther},
		{`0`, ObjectTypeUser},
	}

	for _, tt := range tests {
		var got ObjectType
		if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Unmarshal %s: expected %v, got %v", tt.input, tt.want, got)
		}
	}

	var invalid ObjectType
	for _, input := range []string{`"nobody"`, `7`, `-1`, `true`} {
		if err := json.Unmarshal([]byte(input), &invalid); err == nil {
			t.Errorf("Expected error for %s", input)
		}
	}
}

// TestAccessControl_Replace verifies full replace semantics for files and directories.
func TestAccessControl_Replace(t *testing.T) {
	acl := []AclEntry{NewAclEntry(ObjectTypeUser, "a", true, true, true)}
	defaultAcl := []AclEntry{NewAclEntry(ObjectTypeUser, "a", true, false, false)}

	file := &AccessControl{
		Acl: []AclEntry{
			NewAclEntry(ObjectTypeUser, "b", true, false, false),
			NewAclEntry(ObjectTypeUser, "c", true, false, false),
		},
		DefaultAcl: []AclEntry{NewAclEntry(ObjectTypeUser, "b", true, false, false)},
	}
	file.Replace(acl, defaultAcl, false)

	if len(file.Acl) != 1 || file.Acl[0] != acl[0] {
		t.Errorf("Expected effective acl %v, got %v", acl, file.Acl)
	}
	if file.DefaultAcl == nil || len(file.DefaultAcl) != 0 {
		t.Errorf("Expected cleared default acl, got %v", file.DefaultAcl)
	}

	dir := &AccessControl{}
	dir.Replace(acl, defaultAcl, true)

	if len(dir.DefaultAcl) != 1 || dir.DefaultAcl[0] != defaultAcl[0] {
		t.Errorf("Expected default acl %v, got %v", defaultAcl, dir.DefaultAcl)
	}

	// Mutating the source must not leak into the replaced state
	acl[0].Write = false
	if !dir.Acl[0].Write {
		t.Error("Replace shares the source slice")
	}
}

// TestAccessControl_Summary verifies the derived rwx summary.
func TestAccessControl_Summary(t *testing.T) {
	ac := &AccessControl{
		Acl: []AclEntry{
			NewAclEntry(ObjectTypeUser, "", true, true, true),
			NewAclEntry(ObjectTypeGroup, "", true, false, true),
			NewAclEntry(ObjectTypeOther, "", false, false, false),
			NewAclEntry(ObjectTypeUser, "someone", true, true, false),
		},
	}

	if got := ac.Summary(); got != "rwxr-x---" {
		t.Errorf("Expected rwxr-x---, got %q", got)
	}

	ac.Acl = append(ac.Acl, NewAclEntry(ObjectTypeMask, "", true, true, false))
	if got := ac.Summary(); got != "rwxrw----+" {
		t.Errorf("Expected rwxrw----+, got %q", got)
	}
}

// TestEncodeAcl verifies the persisted form keeps identities with separators
// and the list form is still decoded.
func TestEncodeAcl(t *testing.T) {
	entries := []AclEntry{
		NewAclEntry(ObjectTypeUser, "", true, true, true),
		NewAclEntry(ObjectTypeGroup, "CN=Data Eng,OU=Groups", true, false, false),
		NewAclEntry(ObjectTypeUser, "urn:user:alice", true, false, true),
	}

	encoded, err := EncodeAcl(entries)
	if err != nil {
		t.Fatalf("EncodeAcl failed: %v", err)
	}

	decoded, err := DecodeAcl(encoded)
	if err != nil {
		t.Fatalf("DecodeAcl failed: %v", err)
	}
	if diff := Diff(entries, decoded, false); len(diff) != 0 {
		t.Errorf("Expected no differences, got %s", diff)
	}

	if empty, _ := EncodeAcl(nil); empty != "[]" {
		t.Errorf("Expected [], got %s", empty)
	}

	legacy, err := DecodeAcl("user::rwx,other::---")
	if err != nil || len(legacy) != 2 {
		t.Errorf("Expected 2 entries from list form, got %v (%v)", legacy, err)
	}
	if none, err := DecodeAcl(""); err != nil || len(none) != 0 {
		t.Errorf("Expected no entries, got %v (%v)", none, err)
	}

	if _, err := DecodeAcl(`[{"object_type":"owner"}]`); err == nil {
		t.Error("Expected error for unknown object type")
	}
}
