// Package diagnostics builds the startup readiness report shown before a
// conversation or import is started.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/locale"
	"live-translator/internal/speech"
)

// PairSupport reports translation pair availability.
type PairSupport interface {
	IsLanguagePairSupported(from, to string) bool
}

// PermissionRequester reports capture privileges.
type PermissionRequester interface {
	RequestPermissions(ctx context.Context) (audio.PermissionStatus, error)
}

// LanguageStatuser reports recognition readiness per locale.
type LanguageStatuser interface {
	LanguageStatus(ctx context.Context, locale string) (speech.Availability, error)
}

// Services are the optional runtime collaborators a report inspects. Nil
// fields skip their checks.
type Services struct {
	Translator  PairSupport
	Permissions PermissionRequester
	Speech      LanguageStatuser
}

// Checker validates external tools, required filesystem paths and the
// services a run depends on.
type Checker struct {
	services   Services
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(services Services) *Checker {
	return &Checker{
		services:   services,
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", settings.FFmpegPath),
		c.checkTool("ffprobe", settings.FFprobePath),
		c.checkTool("whisper.cpp", settings.WhisperPath),
		c.checkModelPath(settings.ModelPath, settings.SourceLocale),
		c.checkOutputDir(settings.OutputDir),
	}
	if c.services.Translator != nil {
		items = append(items, c.checkLanguagePair(settings.SourceLocale, settings.TargetLocale))
	}
	if c.services.Speech != nil {
		items = append(items, c.checkRecognition(ctx, settings.SourceLocale))
	}
	if c.services.Permissions != nil {
		items = append(items, c.checkPermissions(ctx, settings.InputMode)...)
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is configured or on PATH.
func (c *Checker) checkTool(name, configured string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "tool_" + name, Name: name}

	target := strings.TrimSpace(configured)
	if target == "" {
		target = name
	}
	path, err := c.lookPath(target)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if target == name {
			item.Message = fmt.Sprintf("Tool not found in PATH: %s", name)
		} else {
			item.Message = fmt.Sprintf("Configured %s is not executable: %s", name, target)
		}
		item.Hint = "Install it and ensure the binary is available on PATH before importing media."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkModelPath resolves the whisper model the import recognizer will load
// and warns when an English-only model meets a non-English source locale.
func (c *Checker) checkModelPath(modelPath, sourceLocale string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "model_path", Name: "Speech model"}

	resolved, err := speech.ResolveModelPath(modelPath, c.stat, c.readDir)
	switch {
	case err == nil:
	case strings.TrimSpace(modelPath) == "":
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model path is empty."
		item.Hint = "Download the speech model from diagnostics or configure the path in settings."
		return item
	case IsNotExist(err):
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model path does not exist: %s", modelPath)
		item.Hint = "Download the speech model from diagnostics or configure the path in settings."
		return item
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Place a .bin or .gguf whisper model in this directory or point to a model file directly."
		return item
	}

	if speech.IsEnglishOnlyModel(resolved) && locale.Language(sourceLocale) != "en" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("English-only model %s cannot transcribe %s", filepath.Base(resolved), sourceLocale)
		item.Hint = "Select a multilingual model in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", resolved)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Subtitle folder",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set a folder where subtitle files can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for subtitle export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

func (c *Checker) checkLanguagePair(from, to string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "language_pair", Name: "Translation languages"}
	if c.services.Translator.IsLanguagePairSupported(from, to) {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("%s to %s is supported", from, to)
		return item
	}
	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("Translation from %s to %s is not supported", from, to)
	item.Hint = "Choose another source or target language in settings."
	return item
}

func (c *Checker) checkRecognition(ctx context.Context, loc string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: "recognition_language", Name: "Speech recognition"}

	availability, err := c.services.Speech.LanguageStatus(ctx, loc)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot query recognition for %s: %v", loc, err)
		return item
	}

	switch availability.Status {
	case speech.StatusAvailable:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Recognition ready for %s", loc)
	case speech.StatusDownloading:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Recognition assets for %s are downloading (%.0f%%)", loc, availability.Progress*100)
	case speech.StatusDownloadRequired:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Recognition assets for %s must be downloaded (%d MB)", loc, availability.DownloadSize/(1<<20))
		item.Hint = "Use the fix action to download the speech model."
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Speech recognition does not support %s", loc)
		item.Hint = "Choose another source language in settings."
	}
	return item
}

// checkPermissions reports one item per capture source the input mode needs.
func (c *Checker) checkPermissions(ctx context.Context, mode domain.AudioInputMode) []domain.DiagnosticItem {
	status, err := c.services.Permissions.RequestPermissions(ctx)

	var items []domain.DiagnosticItem
	for _, source := range mode.Sources() {
		kind := audio.PermissionFor(source)
		item := domain.DiagnosticItem{
			ID:         "permission_" + string(kind),
			Name:       fmt.Sprintf("%s access", source),
			Permission: kind,
		}
		switch {
		case err != nil:
			item.Status = domain.DiagnosticStatusWarn
			item.Message = fmt.Sprintf("Cannot query capture permissions: %v", err)
		case status.Granted(source):
			item.Status = domain.DiagnosticStatusPass
			item.Message = "Granted"
		default:
			item.Status = domain.DiagnosticStatusFail
			item.Message = "Not granted"
			item.Hint = domain.RecoveryForPermission(kind)
		}
		items = append(items, item)
	}
	return items
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	services Services,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		services:   services,
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
