package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"symptobuddy/internal/state", true},
		{"symptobuddy/pkg/domain", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestBackendPredicates(t *testing.T) {
	if !InfraImportForbidden("symptobuddy/internal/infra/persistence/badger") {
		t.Fatalf("infra backend should be forbidden")
	}
	if InfraImportForbidden("symptobuddy/internal/core") {
		t.Fatalf("core should be allowed")
	}
	if !StorageDriverImportForbidden("github.com/dgraph-io/badger/v4") || !StorageDriverImportForbidden("modernc.org/sqlite") {
		t.Fatalf("storage drivers should be forbidden")
	}
	if StorageDriverImportForbidden("github.com/google/uuid") {
		t.Fatalf("uuid is not a storage driver")
	}
	combined := AnyOf(InfraImportForbidden, StorageDriverImportForbidden)
	if !combined("github.com/jackc/pgx/v5/stdlib") || combined("context") {
		t.Fatalf("AnyOf mismatch")
	}
}

// TestAssertNoDirectImports exercises the success path by creating a tiny temp package with safe imports.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport _ \"modernc.org/sqlite\"\n")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, StorageDriverImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("expected one violation, got %v", viols)
	}
	rec := &recordingFatal{}
	failIfDirectViolations(rec, "drivers", viols)
	if rec.msg == "" {
		t.Fatalf("expected failure message")
	}
}

func TestDirectImportViolationsMissingDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
