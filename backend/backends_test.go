package backend_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/backend/local"
	"github.com/mwantia/aclsync/backend/memory"
	"github.com/mwantia/aclsync/backend/sqlite"
	"github.com/mwantia/aclsync/data"
)

// fileCreator is implemented by backends able to create plain files.
type fileCreator interface {
	CreateFile(ctx context.Context, path string) error
}

// principalRegistry is implemented by backends with a principal table.
type principalRegistry interface {
	AddPrincipal(ctx context.Context, id, upn string) error
}

// TestBackendFactory creates a new backend instance for testing.
type TestBackendFactory func(t *testing.T) (backend.Storage, error)

// GetTestBackendFactories returns all backend implementations to test.
func GetTestBackendFactories() map[string]TestBackendFactory {
	return map[string]TestBackendFactory{
		"memory": func(t *testing.T) (backend.Storage, error) {
			return memory.NewMemoryBackend(), nil
		},
		"sqlite": func(t *testing.T) (backend.Storage, error) {
			return sqlite.NewSQLiteBackend(":memory:")
		},
		"local": func(t *testing.T) (backend.Storage, error) {
			return local.NewLocalBackend(t.TempDir()), nil
		},
	}
}

// openStorage opens a backend with a single container "raw".
func openStorage(t *testing.T, factory TestBackendFactory) backend.Storage {
	t.Helper()

	storage, err := factory(t)
	if err != nil {
		t.Fatalf("Backend init failed: %v", err)
	}
	if err := storage.Open(t.Context()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		storage.Close(context.Background())
	})

	if err := storage.CreateContainer(t.Context(), "raw"); err != nil {
		t.Fatalf("CreateContainer failed: %v", err)
	}

	return storage
}

func createFile(t *testing.T, storage backend.Storage, path string) {
	t.Helper()

	creator, ok := storage.(fileCreator)
	if !ok {
		t.Fatalf("Backend '%s' cannot create files", storage.Name())
	}
	if err := creator.CreateFile(t.Context(), path); err != nil {
		t.Fatalf("CreateFile(%q) failed: %v", path, err)
	}
}

// TestAllBackends_Containers verifies container creation is idempotent and listed.
func TestAllBackends_Containers(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			storage := openStorage(tst, factory)

			if err := storage.CreateContainer(ctx, "raw"); err != nil {
				tst.Errorf("Repeated CreateContainer failed: %v", err)
			}
			if err := storage.CreateContainer(ctx, "curated"); err != nil {
				tst.Fatalf("CreateContainer failed: %v", err)
			}
			if err := storage.CreateContainer(ctx, "raw/dir"); !errors.Is(err, data.ErrInvalidContainer) {
				tst.Errorf("Expected ErrInvalidContainer, got %v", err)
			}

			containers, err := storage.ListContainers(ctx)
			if err != nil {
				tst.Fatalf("ListContainers failed: %v", err)
			}
			slices.Sort(containers)
			if !slices.Equal(containers, []string{"curated", "raw"}) {
				tst.Errorf("Expected [curated raw], got %v", containers)
			}

			exists, err := storage.Exists(ctx, "raw")
			if err != nil || !exists {
				tst.Errorf("Expected container to exist, got %v (%v)", exists, err)
			}
		})
	}
}

// TestAllBackends_CreateDirectory verifies parents are created and the
// container must exist.
func TestAllBackends_CreateDirectory(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			storage := openStorage(tst, factory)

			if err := storage.CreateDirectory(ctx, "raw/a/b/c"); err != nil {
				tst.Fatalf("CreateDirectory failed: %v", err)
			}
			if err := storage.CreateDirectory(ctx, "raw/a/b/c"); err != nil {
				tst.Errorf("Repeated CreateDirectory failed: %v", err)
			}

			for _, path := range []string{"raw/a", "raw/a/b", "raw/a/b/c"} {
				exists, err := storage.Exists(ctx, path)
				if err != nil || !exists {
					tst.Errorf("Expected %q to exist, got %v (%v)", path, exists, err)
				}
			}

			exists, err := storage.Exists(ctx, "raw/missing")
			if err != nil || exists {
				tst.Errorf("Expected raw/missing to be absent, got %v (%v)", exists, err)
			}

			if err := storage.CreateDirectory(ctx, "missing/dir"); !errors.Is(err, data.ErrContainerNotExist) {
				tst.Errorf("Expected ErrContainerNotExist, got %v", err)
			}

			createFile(tst, storage, "raw/a/file.csv")
			if err := storage.CreateDirectory(ctx, "raw/a/file.csv/sub"); !errors.Is(err, data.ErrNotDirectory) {
				tst.Errorf("Expected ErrNotDirectory, got %v", err)
			}
		})
	}
}

// TestAllBackends_AccessControl verifies access control state is replaced
// as a whole and files reject default entries.
func TestAllBackends_AccessControl(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			storage := openStorage(tst, factory)

			if err := storage.CreateDirectory(ctx, "raw/dir"); err != nil {
				tst.Fatalf("CreateDirectory failed: %v", err)
			}

			initial, err := storage.GetAccessControl(ctx, "raw/dir", false)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			if data.FormatAcl(initial.Acl) != "user::rwx,group::r-x,other::---" {
				tst.Errorf("Unexpected initial acl: %s", data.FormatAcl(initial.Acl))
			}

			acl, _ := data.ParseAcl("user::rwx,user:alice:r-x,group::r-x,mask::r-x,other::---")
			defaultAcl, _ := data.ParseAcl("user:alice:r-x")

			ac := initial.Clone()
			ac.Replace(acl, defaultAcl, true)
			if err := storage.SetAccessControl(ctx, "raw/dir", ac); err != nil {
				tst.Fatalf("SetAccessControl failed: %v", err)
			}

			actual, err := storage.GetAccessControl(ctx, "raw/dir", false)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			if diff := data.DiffAccessControl(acl, defaultAcl, actual); len(diff) != 0 {
				tst.Errorf("Expected no differences, got %s", diff)
			}
			if actual.Permissions != "rwxr-x---+" {
				tst.Errorf("Expected rwxr-x---+, got %s", actual.Permissions)
			}

			// Mutating the returned copy must not affect the stored state
			actual.Acl[0].Read = false
			again, _ := storage.GetAccessControl(ctx, "raw/dir", false)
			if !again.Acl[0].Read {
				tst.Error("GetAccessControl must return a copy")
			}

			createFile(tst, storage, "raw/dir/file.csv")
			file, err := storage.GetAccessControl(ctx, "raw/dir/file.csv", false)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			if data.FormatAcl(file.Acl) != "user:alice:r-x" {
				tst.Errorf("Expected inherited acl user:alice:r-x, got %s", data.FormatAcl(file.Acl))
			}
			if len(file.DefaultAcl) != 0 {
				tst.Errorf("Expected no default acl on file, got %s", data.FormatAcl(file.DefaultAcl))
			}

			if err := storage.SetAccessControl(ctx, "raw/dir/file.csv", ac); !errors.Is(err, data.ErrDefaultAclOnFile) {
				tst.Errorf("Expected ErrDefaultAclOnFile, got %v", err)
			}
			if _, err := storage.GetAccessControl(ctx, "raw/missing", false); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist, got %v", err)
			}
			if err := storage.SetAccessControl(ctx, "raw/missing", ac); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist, got %v", err)
			}
		})
	}
}

// TestAllBackends_SeparatorIdentities verifies identities containing the
// separators of the rendered entry form are stored and read back unchanged.
func TestAllBackends_SeparatorIdentities(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			storage := openStorage(tst, factory)

			if err := storage.CreateDirectory(ctx, "raw/dir"); err != nil {
				tst.Fatalf("CreateDirectory failed: %v", err)
			}

			dd := &data.DeclaredDirectory{
				Path: "raw/dir",
				Acls: []data.DeclaredAcl{
					{ObjectType: data.ObjectTypeGroup, Identity: "CN=Data Eng,OU=Groups", Read: true, DefaultRead: true},
					{ObjectType: data.ObjectTypeUser, Identity: "urn:user:alice", Read: true, Execute: true},
				},
			}
			if err := dd.Validate(); err != nil {
				tst.Fatalf("Validate failed: %v", err)
			}
			acl, defaultAcl := dd.Expected()

			ac, err := storage.GetAccessControl(ctx, "raw/dir", false)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			ac.Replace(acl, defaultAcl, true)
			if err := storage.SetAccessControl(ctx, "raw/dir", ac); err != nil {
				tst.Fatalf("SetAccessControl failed: %v", err)
			}

			actual, err := storage.GetAccessControl(ctx, "raw/dir", false)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			if diff := data.DiffAccessControl(acl, defaultAcl, actual); len(diff) != 0 {
				tst.Errorf("Expected no differences, got %s", diff)
			}

			createFile(tst, storage, "raw/dir/file.csv")
			file, err := storage.GetAccessControl(ctx, "raw/dir/file.csv", false)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			if diff := data.Diff(defaultAcl, file.Acl, false); len(diff) != 0 {
				tst.Errorf("Expected inherited acl, got differences %s", diff)
			}
		})
	}
}

// TestAllBackends_PrincipalRoundTrip verifies a state read with principal
// names is stored with object ids when written back.
func TestAllBackends_PrincipalRoundTrip(t *testing.T) {
	const id = "c20047f4-79e8-4446-b441-b1ea03a8e17d"

	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			storage := openStorage(tst, factory)

			registry, ok := storage.(principalRegistry)
			if !ok {
				tst.Skipf("Backend '%s' has no principal table", storage.Name())
			}
			if err := registry.AddPrincipal(ctx, id, "alice@example.com"); err != nil {
				tst.Fatalf("AddPrincipal failed: %v", err)
			}

			if err := storage.CreateDirectory(ctx, "raw/dir"); err != nil {
				tst.Fatalf("CreateDirectory failed: %v", err)
			}

			ac, _ := storage.GetAccessControl(ctx, "raw/dir", false)
			ac.Acl = append(ac.Acl, data.NewAclEntry(data.ObjectTypeUser, id, true, false, false))
			if err := storage.SetAccessControl(ctx, "raw/dir", ac); err != nil {
				tst.Fatalf("SetAccessControl failed: %v", err)
			}

			resolved, err := storage.GetAccessControl(ctx, "raw/dir", true)
			if err != nil {
				tst.Fatalf("GetAccessControl failed: %v", err)
			}
			if got := resolved.Acl[len(resolved.Acl)-1].Identity; got != "alice@example.com" {
				tst.Errorf("Expected alice@example.com, got %s", got)
			}

			if err := storage.SetAccessControl(ctx, "raw/dir", resolved); err != nil {
				tst.Fatalf("SetAccessControl failed: %v", err)
			}

			stored, _ := storage.GetAccessControl(ctx, "raw/dir", false)
			if got := stored.Acl[len(stored.Acl)-1].Identity; got != id {
				tst.Errorf("Expected identity %s, got %s", id, got)
			}
		})
	}
}

// TestAllBackends_List verifies immediate and recursive listings in path order.
func TestAllBackends_List(t *testing.T) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			storage := openStorage(tst, factory)

			if err := storage.CreateDirectory(ctx, "raw/dir/sub"); err != nil {
				tst.Fatalf("CreateDirectory failed: %v", err)
			}
			if err := storage.CreateDirectory(ctx, "raw/directory"); err != nil {
				tst.Fatalf("CreateDirectory failed: %v", err)
			}
			createFile(tst, storage, "raw/dir/a.csv")
			createFile(tst, storage, "raw/dir/sub/b.csv")

			immediate, err := storage.List(ctx, "raw/dir", false, data.Unlimited)
			if err != nil {
				tst.Fatalf("List failed: %v", err)
			}
			if got := paths(immediate); !slices.Equal(got, []string{"raw/dir/a.csv", "raw/dir/sub"}) {
				tst.Errorf("Unexpected immediate listing: %v", got)
			}

			recursive, err := storage.List(ctx, "raw/dir", true, data.Unlimited)
			if err != nil {
				tst.Fatalf("List failed: %v", err)
			}
			if got := paths(recursive); !slices.Equal(got, []string{"raw/dir/a.csv", "raw/dir/sub", "raw/dir/sub/b.csv"}) {
				tst.Errorf("Unexpected recursive listing: %v", got)
			}
			for _, item := range recursive {
				if item.IsFolder != (item.FullPath == "raw/dir/sub") {
					tst.Errorf("Unexpected folder flag for %s: %v", item.FullPath, item.IsFolder)
				}
			}

			limited, err := storage.List(ctx, "raw/dir", true, 2)
			if err != nil {
				tst.Fatalf("List failed: %v", err)
			}
			if len(limited) != 2 {
				tst.Errorf("Expected 2 items, got %d", len(limited))
			}

			if _, err := storage.List(ctx, "raw/dir/a.csv", false, data.Unlimited); !errors.Is(err, data.ErrNotDirectory) {
				tst.Errorf("Expected ErrNotDirectory, got %v", err)
			}
		})
	}
}

func paths(items []*data.Item) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		result = append(result, item.FullPath)
	}

	return result
}
