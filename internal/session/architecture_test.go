package session

import (
	"testing"

	"symptobuddy/testutil"
)

func TestNoBackendImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InfraImportForbidden, testutil.StorageDriverImportForbidden),
		"session talks to storage only through domain.DurableStore")
}
