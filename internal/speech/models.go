package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModelOption is one downloadable whisper.cpp model.
type ModelOption struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FileName     string `json:"fileName"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	Multilingual bool   `json:"multilingual"`
}

// DefaultModelID is downloaded when a locale is requested without a model.
const DefaultModelID = "base"

var modelCatalog = []ModelOption{
	{ID: "tiny", Name: "Tiny (Multilingual)", FileName: "ggml-tiny.bin", URL: modelURL("ggml-tiny.bin"), Size: 77_691_713, Multilingual: true},
	{ID: "base.en", Name: "Base (English)", FileName: "ggml-base.en.bin", URL: modelURL("ggml-base.en.bin"), Size: 147_964_211},
	{ID: "base", Name: "Base (Multilingual)", FileName: "ggml-base.bin", URL: modelURL("ggml-base.bin"), Size: 147_951_465, Multilingual: true},
	{ID: "small", Name: "Small (Multilingual)", FileName: "ggml-small.bin", URL: modelURL("ggml-small.bin"), Size: 487_601_967, Multilingual: true},
	{ID: "medium", Name: "Medium (Multilingual)", FileName: "ggml-medium.bin", URL: modelURL("ggml-medium.bin"), Size: 1_533_763_059, Multilingual: true},
	{ID: "large-v3-turbo", Name: "Large v3 Turbo", FileName: "ggml-large-v3-turbo.bin", URL: modelURL("ggml-large-v3-turbo.bin"), Size: 1_624_555_275, Multilingual: true},
}

func modelURL(file string) string {
	return "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/" + file
}

// Models returns the built-in model catalog.
func Models() []ModelOption {
	out := make([]ModelOption, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// ModelByID looks up a catalog entry.
func ModelByID(id string) (ModelOption, bool) {
	for _, m := range modelCatalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelOption{}, false
}

// IsEnglishOnlyModel reports whether a model file name is an .en variant.
func IsEnglishOnlyModel(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), ".en.")
}

// ResolveModelPath returns the model file for a configured file or
// directory. A directory resolves to its first .bin or .gguf file by name.
func ResolveModelPath(rawPath string, stat func(string) (os.FileInfo, error), readDir func(string) ([]os.DirEntry, error)) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path %s: %w", modelPath, err)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory %s: %w", modelPath, err)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// downloadTarget decides where the default model is written for a
// configured model path that may be empty, a directory, or a file.
func downloadTarget(modelPath string, model ModelOption) string {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".live-translator", "models", model.FileName)
		}
		return model.FileName
	}
	ext := strings.ToLower(filepath.Ext(trimmed))
	if ext == ".bin" || ext == ".gguf" {
		return filepath.Join(filepath.Dir(trimmed), model.FileName)
	}
	return filepath.Join(trimmed, model.FileName)
}

// progressWriter counts bytes written and reports them.
type progressWriter struct {
	w       io.Writer
	written int64
	report  func(written int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if n > 0 && p.report != nil {
		p.report(p.written)
	}
	return n, err
}

// downloadURLToFile downloads sourceURL into destinationPath through a
// temporary file, reporting bytes written and the expected total.
func downloadURLToFile(
	ctx context.Context,
	client *http.Client,
	destinationPath string,
	sourceURL string,
	report func(written, total int64),
) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "live-translator")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	total := resp.ContentLength
	pw := &progressWriter{w: file, report: func(written int64) {
		if report != nil {
			report(written, total)
		}
	}}
	_, copyErr := io.Copy(pw, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	return nil
}
