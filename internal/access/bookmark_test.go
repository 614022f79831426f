package access

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"live-translator/internal/domain"
)

// TestBookmarkResolveRoundTrip resolves an unchanged file.
func TestBookmarkResolveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	b := NewBookmarks()
	data, err := b.Bookmark(path)
	if err != nil {
		t.Fatalf("Bookmark() error = %v", err)
	}
	got, err := b.Resolve(data)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != path {
		t.Fatalf("Resolve() = %q, want %q", got, path)
	}
}

// TestBookmarkResolveStale denies changed or missing files.
func TestBookmarkResolveStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	b := NewBookmarks()
	data, err := b.Bookmark(path)
	if err != nil {
		t.Fatalf("Bookmark() error = %v", err)
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	assertAccessDenied(t, b, data)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertAccessDenied(t, b, data)
	assertAccessDenied(t, b, []byte("not json"))
}

// assertAccessDenied checks the error kind of a failed resolve.
func assertAccessDenied(t *testing.T, b *Bookmarks, data []byte) {
	t.Helper()
	_, err := b.Resolve(data)
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Kind != domain.ServiceAccessDenied {
		t.Fatalf("expected accessDenied, got %v", err)
	}
}
