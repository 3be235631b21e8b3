package domain

import (
	"testing"

	"symptobuddy/testutil"
)

// TestDomainDoesNotImportInternal keeps the storage contract free of any
// backend or application package.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must stay backend agnostic")
}
