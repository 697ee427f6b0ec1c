package testsupport

import (
	"testing"

	"spectra/internal/config"
	"spectra/internal/jobs"
)

// MustOpenStore opens a job store for the configuration, failing the test on
// error and closing the store on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
