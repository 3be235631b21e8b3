package state

import (
	"testing"

	"symptobuddy/testutil"
)

func TestNoBackendImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InfraImportForbidden, testutil.StorageDriverImportForbidden),
		"state talks to storage only through domain.DurableStore")
}
