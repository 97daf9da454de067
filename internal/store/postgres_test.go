package store_test

import (
	"testing"

	"balloon-duel/internal/store"
	"balloon-duel/internal/testutil"
)

func TestPostgresStoreContract(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	store.RunBackendSuite(t, st)
}
