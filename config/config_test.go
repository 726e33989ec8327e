package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/aclsync/data"
)

const jsoncDocument = `[
	// Container root
	{
		"Path": "raw",
		"Acls": [
			{"ObjectType": "user", "Read": true, "Write": true, "Execute": true},
		],
	},
	{
		"Path": "raw/directory",
		"Upn": true,
		"Recurse": true,
		"Force": false,
		"Acls": [
			{"ObjectType": 0, "Identity": "c20047f4", "Read": true, "Execute": true, "DefaultRead": true, "DefaultExecute": true},
			/* numeric object types */
			{"ObjectType": 3},
		],
	},
]`

const yamlDocument = `
- path: raw
  acls:
    - object_type: user
      read: true
      write: true
      execute: true
- path: raw/directory
  upn: true
  recurse: true
  acls:
    - object_type: user
      identity: c20047f4
      read: true
      execute: true
      default_read: true
      default_execute: true
    - object_type: 3
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// TestLoadDirectories verifies JSONC and YAML documents decode to the same
// declarations in document order.
func TestLoadDirectories(t *testing.T) {
	for name, content := range map[string]string{
		"directories.jsonc": jsoncDocument,
		"directories.yaml":  yamlDocument,
	} {
		t.Run(name, func(t *testing.T) {
			directories, err := LoadDirectories(writeFile(t, name, content))
			if err != nil {
				t.Fatalf("LoadDirectories failed: %v", err)
			}

			if len(directories) != 2 {
				t.Fatalf("Expected 2 directories, got %d", len(directories))
			}
			if directories[0].Path != "raw" || !directories[0].IsContainer() {
				t.Errorf("Unexpected first directory: %+v", directories[0])
			}

			dir := directories[1]
			if dir.Path != "raw/directory" || !dir.Upn || !dir.Recurse || dir.Force {
				t.Errorf("Unexpected second directory: %+v", dir)
			}

			acl, defaultAcl := dir.Expected()
			if data.FormatAcl(acl) != "user:c20047f4:r-x,other::---" {
				t.Errorf("Unexpected acl: %s", data.FormatAcl(acl))
			}
			if data.FormatAcl(defaultAcl) != "user:c20047f4:r-x,other::---" {
				t.Errorf("Unexpected default acl: %s", data.FormatAcl(defaultAcl))
			}
		})
	}
}

// TestLoadDirectories_Invalid verifies malformed documents are rejected.
func TestLoadDirectories_Invalid(t *testing.T) {
	if _, err := LoadDirectories(writeFile(t, "directories.toml", "")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	duplicate := `[{"Path": "raw"}, {"Path": "raw/dir"}, {"Path": "raw"}]`
	if _, err := LoadDirectories(writeFile(t, "duplicate.json", duplicate)); !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("Expected ErrDuplicatePath, got %v", err)
	}

	invalidType := `[{"Path": "raw", "Acls": [{"ObjectType": "nobody"}]}]`
	if _, err := LoadDirectories(writeFile(t, "type.json", invalidType)); !errors.Is(err, data.ErrInvalidObjectType) {
		t.Errorf("Expected ErrInvalidObjectType, got %v", err)
	}

	invalidPath := "- path: raw//dir\n"
	if _, err := LoadDirectories(writeFile(t, "path.yml", invalidPath)); !errors.Is(err, data.ErrInvalidPath) {
		t.Errorf("Expected ErrInvalidPath, got %v", err)
	}

	unknown := `[{"Path": "raw", "Recursive": true}]`
	if _, err := LoadDirectories(writeFile(t, "unknown.json", unknown)); err == nil {
		t.Error("Expected error for unknown field")
	}

	if _, err := LoadDirectories(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

// TestParse_Empty verifies an empty YAML document yields no directories.
func TestParse_Empty(t *testing.T) {
	directories, err := Parse([]byte(""), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(directories) != 0 {
		t.Errorf("Expected no directories, got %d", len(directories))
	}
}
