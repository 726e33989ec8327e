package consul

import "testing"

// TestNewConsulBackend_Defaults verifies prefix defaults and key construction.
func TestNewConsulBackend_Defaults(t *testing.T) {
	cb, err := NewConsulBackend(&ConsulBackendConfig{Prefix: "/acl/"})
	if err != nil {
		t.Fatalf("NewConsulBackend failed: %v", err)
	}

	if cb.config.Address != "127.0.0.1:8500" {
		t.Errorf("Expected default address, got %s", cb.config.Address)
	}
	if cb.config.PrincipalPrefix != "acl-principals" {
		t.Errorf("Expected acl-principals, got %s", cb.config.PrincipalPrefix)
	}

	key := cb.buildKey("raw/directory")
	if key != "acl/raw/directory" {
		t.Errorf("Expected acl/raw/directory, got %s", key)
	}
	if path := cb.pathFromKey(key); path != "raw/directory" {
		t.Errorf("Expected raw/directory, got %s", path)
	}
	if key := cb.buildPrincipalKey("id"); key != "acl-principals/id" {
		t.Errorf("Expected acl-principals/id, got %s", key)
	}
}

// TestNewConsulBackend_PrefixConflict verifies principals cannot share the item prefix.
func TestNewConsulBackend_PrefixConflict(t *testing.T) {
	if _, err := NewConsulBackend(&ConsulBackendConfig{Prefix: "acl", PrincipalPrefix: "acl"}); err == nil {
		t.Error("Expected error for identical prefixes")
	}
}
