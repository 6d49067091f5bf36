package wire

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestVerifyPassesWhenEveryDeclaredTagIsRegistered(t *testing.T) {
	path := writeManifest(t, "types:\n  - RequireState\n  - StateUpdate\n  - Ping\n  - Pong\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	r := NewRegistry()
	if err := r.Discover(Builtins()...); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if err := r.Verify(m); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifyReportsMissingTags(t *testing.T) {
	path := writeManifest(t, "types:\n  - Ping\n  - FooState\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	r := NewRegistry()
	if err := r.Discover(Builtins()...); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	err = r.Verify(m)
	if err == nil {
		t.Fatal("Verify returned no error for a manifest naming an unregistered type")
	}
}
