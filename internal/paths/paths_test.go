package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	valid := []string{"u1@x.io", "first.last@example.com", "a@b.co"}
	for _, id := range valid {
		if err := ValidateUserID(id); err != nil {
			t.Errorf("ValidateUserID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "nodomain", "@x.io", "user@", "user@nodot", "two@@x.io", "has space@x.io"}
	for _, id := range invalid {
		if err := ValidateUserID(id); err == nil {
			t.Errorf("ValidateUserID(%q) = nil, want error", id)
		}
	}
}

func TestResolverLayout(t *testing.T) {
	r := NewResolver("/srv/orion")

	if got := r.RawUploads("u@x.io"); got != filepath.Join("/srv/orion", "u@x.io", "raw_uploads") {
		t.Errorf("RawUploads = %q", got)
	}
	if got := r.ProcessedText("u@x.io"); got != filepath.Join("/srv/orion", "u@x.io", "processed_text") {
		t.Errorf("ProcessedText = %q", got)
	}
	if got := r.RawChunks("u@x.io"); got != filepath.Join("/srv/orion", "u@x.io", "raw_chunks") {
		t.Errorf("RawChunks = %q", got)
	}
	if got := r.ProcessedVectors("u@x.io"); got != filepath.Join("/srv/orion", "u@x.io", "processed_vectors") {
		t.Errorf("ProcessedVectors = %q", got)
	}
}

func TestEnsureUserCreatesAllDirs(t *testing.T) {
	base := t.TempDir()
	r := NewResolver(base)

	if err := r.EnsureUser("u@x.io"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	for _, dir := range []string{
		r.RawUploads("u@x.io"),
		r.ProcessedText("u@x.io"),
		r.RawChunks("u@x.io"),
		r.ProcessedVectors("u@x.io"),
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %q failed: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%q is not a directory", dir)
		}
	}

	// Idempotent.
	if err := r.EnsureUser("u@x.io"); err != nil {
		t.Fatalf("second EnsureUser failed: %v", err)
	}
}
