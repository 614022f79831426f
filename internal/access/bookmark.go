// Package access persists re-openable references to user-selected files.
// A bookmark records the file identity at selection time; resolving it
// fails when the file is gone or has been replaced.
package access

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"live-translator/internal/domain"
)

type bookmark struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Bookmarks creates and resolves bookmarks.
type Bookmarks struct {
	stat func(name string) (os.FileInfo, error)
	open func(name string) (*os.File, error)
}

// NewBookmarks constructs the production bookmark resolver.
func NewBookmarks() *Bookmarks {
	return &Bookmarks{stat: os.Stat, open: os.Open}
}

// NewBookmarksForTests constructs a resolver with injectable OS calls.
func NewBookmarksForTests(stat func(name string) (os.FileInfo, error), open func(name string) (*os.File, error)) *Bookmarks {
	return &Bookmarks{stat: stat, open: open}
}

// Bookmark records path for later access.
func (b *Bookmarks) Bookmark(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := b.stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	return json.Marshal(bookmark{Path: abs, Size: info.Size(), ModTime: info.ModTime().UTC()})
}

// Resolve returns the bookmarked path once it is verified readable and
// unchanged. Failures are access-denied service errors.
func (b *Bookmarks) Resolve(data []byte) (string, error) {
	var bm bookmark
	if err := json.Unmarshal(data, &bm); err != nil || bm.Path == "" {
		return "", denied("invalid bookmark", err)
	}

	info, err := b.stat(bm.Path)
	if err != nil {
		return "", denied(bm.Path, err)
	}
	if info.Size() != bm.Size || !info.ModTime().UTC().Equal(bm.ModTime) {
		return "", denied(bm.Path+" changed since it was added", nil)
	}

	f, err := b.open(bm.Path)
	if err != nil {
		return "", denied(bm.Path, err)
	}
	_ = f.Close()
	return bm.Path, nil
}

func denied(detail string, err error) error {
	return &domain.ServiceError{
		Kind:     domain.ServiceAccessDenied,
		Detail:   detail,
		Recovery: "Add the file to the queue again.",
		Err:      err,
	}
}
