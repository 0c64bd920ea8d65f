package testsupport

import (
	"context"
	"testing"
	"time"

	"haul/internal/config"
	"haul/internal/database"
)

// MustOpenBackend creates and starts a backend for tests and registers a
// cleanup that shuts it down.
func MustOpenBackend(t testing.TB, cfg *config.Config, opts ...database.Option) *database.Backend {
	t.Helper()

	backend, err := database.New(cfg, opts...)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	if err := backend.Setup(context.Background()); err != nil {
		t.Fatalf("backend.Setup: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := backend.Shutdown(ctx); err != nil {
			t.Errorf("backend.Shutdown: %v", err)
		}
	})
	return backend
}
