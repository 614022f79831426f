package media

import (
	"path/filepath"
	"sort"
	"strings"

	"live-translator/internal/domain"
)

var supportedExtensions = map[string]domain.MediaKind{
	".mp4": domain.MediaKindVideo,
	".mov": domain.MediaKindVideo,
	".m4v": domain.MediaKindVideo,
	".mp3": domain.MediaKindAudio,
	".m4a": domain.MediaKindAudio,
	".wav": domain.MediaKindAudio,
	".aac": domain.MediaKindAudio,
}

// KindForPath classifies a file by extension. The second result is false for
// unsupported extensions.
func KindForPath(path string) (domain.MediaKind, bool) {
	kind, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// SupportedExtensions lists accepted extensions without the dot, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}
