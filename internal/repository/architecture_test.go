package repository

import (
	"testing"

	"symptobuddy/testutil"
)

func TestNoBackendImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InfraImportForbidden, testutil.StorageDriverImportForbidden),
		"repository talks to storage only through domain.DurableStore")
}
