package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDocumentPath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		doc     string
		want    string
		wantErr error
	}{
		{name: "plain file", doc: "targets.json", want: filepath.Join(dir, "targets.json")},
		{name: "lock file", doc: "targets.json.lock", want: filepath.Join(dir, "targets.json.lock")},
		{name: "double dots inside name", doc: "a..b.json", want: filepath.Join(dir, "a..b.json")},
		{name: "empty", doc: "", wantErr: ErrInvalidDocumentName},
		{name: "dot", doc: ".", wantErr: ErrInvalidDocumentName},
		{name: "parent", doc: "..", wantErr: ErrInvalidDocumentName},
		{name: "subdirectory", doc: "sub/settings.json", wantErr: ErrInvalidDocumentName},
		{name: "traversal", doc: "../etc/passwd", wantErr: ErrInvalidDocumentName},
		{name: "backslash", doc: `..\settings.json`, wantErr: ErrInvalidDocumentName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentPath(dir, tt.doc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %q, %v", tt.wantErr, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DocumentPath: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocumentPathAllowsDotsInDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a..b")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := DocumentPath(dir, "settings.json")
	if err != nil {
		t.Fatalf("DocumentPath: %v", err)
	}
	if got != filepath.Join(dir, "settings.json") {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestDocumentPathRequiresDataDir(t *testing.T) {
	if _, err := DocumentPath(" ", "targets.json"); err == nil || !strings.Contains(err.Error(), "data directory is required") {
		t.Fatalf("expected data directory error, got %v", err)
	}
}

func TestDocumentPathSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(outside, []byte("[]"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(dir, "targets.json")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := DocumentPath(dir, "targets.json"); !errors.Is(err, ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape for a link leaving the data dir, got %v", err)
	}

	inside := filepath.Join(dir, "real.json")
	if err := os.WriteFile(inside, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(inside, filepath.Join(dir, "settings.json")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := DocumentPath(dir, "settings.json"); err != nil {
		t.Fatalf("link inside the data dir rejected: %v", err)
	}
}
