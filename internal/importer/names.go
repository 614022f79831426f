package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"live-translator/internal/domain"
)

const uuidLength = 36

// DisplayName strips a transport-added "<uuid>_" or "<uuid>-" prefix from a
// file name.
func DisplayName(name string) string {
	if len(name) <= uuidLength+1 {
		return name
	}
	if sep := name[uuidLength]; sep != '_' && sep != '-' {
		return name
	}
	if _, err := uuid.Parse(name[:uuidLength]); err != nil {
		return name
	}
	return name[uuidLength+1:]
}

// OutputName derives the subtitle file name from a display name.
func OutputName(displayName string, format domain.SubtitleFormat) string {
	base := strings.TrimSuffix(displayName, filepath.Ext(displayName))
	if base == "" {
		base = "subtitles"
	}
	return base + format.Extension()
}

// moveToOutput moves src to dir/name, replacing an existing file.
func (o *Orchestrator) moveToOutput(src, dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("output directory is not configured")
	}
	if err := o.mkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	dest := filepath.Join(dir, name)
	if err := o.remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("replace %s: %w", dest, err)
	}
	if err := o.rename(src, dest); err == nil {
		return dest, nil
	}

	// Rename fails across volumes; fall back to a copy.
	if err := copyFile(src, dest); err != nil {
		_ = o.remove(dest)
		return "", fmt.Errorf("move subtitles to %s: %w", dest, err)
	}
	_ = o.remove(src)
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
