package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"live-translator/internal/audio"
	"live-translator/internal/config"
	"live-translator/internal/domain"
	"live-translator/internal/jobs"
)

const (
	installCommandTimeout = 45 * time.Minute
	modelDownloadTimeout  = 45 * time.Minute
	appDirName            = ".live-translator"
	downloadKey           = "download"
)

type installOption struct {
	manager  string
	commands [][]string
}

// toolInstaller installs missing CLI tools with the first available
// package manager.
type toolInstaller struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	homeDir  func() (string, error)
}

func newToolInstaller() *toolInstaller {
	return &toolInstaller{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		homeDir:  os.UserHomeDir,
	}
}

// FixDiagnostic applies the remediation for one failed diagnostic item and
// returns the refreshed report.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	stored, err := a.store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings := a.currentSettings()
	ctx := a.context()

	settingsChanged := false
	var fixErr error

	switch {
	case id == "tool_ffmpeg" || id == "tool_ffprobe":
		fixErr = a.installer.install(ctx, "ffmpeg", "ffmpeg", "ffprobe")
	case id == "tool_whisper.cpp":
		fixErr = a.installer.installWhisper(ctx)
	case id == "model_path" || id == "recognition_language":
		var modelPath string
		modelPath, fixErr = a.downloadSpeechModel(ctx, settings.SourceLocale)
		if fixErr == nil && modelPath != "" && modelPath != stored.ModelPath {
			stored.ModelPath = modelPath
			settingsChanged = true
		}
	case id == "output_dir":
		var fixed domain.Settings
		fixed, settingsChanged, fixErr = fixOutputDir(settings)
		stored.OutputDir = fixed.OutputDir
	case strings.HasPrefix(id, "permission_"):
		fixErr = a.fixPermissions(ctx, settings.InputMode)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.store.Save(stored); saveErr != nil {
			return a.refreshDiagnosticsFromSettings(settings), fmt.Errorf("save settings after fix: %w", saveErr)
		}
		if applied, err := a.loader.Apply(stored); err == nil {
			settings = applied
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		a.logger.Warn("diagnostic fix failed", zap.String("item", id), zap.Error(fixErr))
		return report, fixErr
	}
	a.logger.Info("diagnostic fixed", zap.String("item", id))
	return report, nil
}

// downloadSpeechModel fetches recognition assets for loc and relays progress
// as download events. It returns the model path the recognizer now uses.
func (a *App) downloadSpeechModel(ctx context.Context, loc string) (string, error) {
	recognizer := a.services.ImportRecognizer
	if recognizer == nil {
		return "", fmt.Errorf("speech recognizer is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, modelDownloadTimeout)
	defer cancel()

	progress, err := recognizer.DownloadLanguage(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("download speech model: %w", err)
	}

	var downloadErr error
	for p := range progress {
		event := jobs.Event{
			Source:   jobs.SourceApp,
			Type:     jobs.EventTypeDownload,
			Progress: p.Fraction,
			Message:  fmt.Sprintf("Downloading speech model for %s", p.Locale),
		}
		if p.Done || p.Err != nil {
			if p.Err != nil {
				downloadErr = p.Err
				event.Type = jobs.EventTypeError
				event.Message = fmt.Sprintf("speech model download failed: %v", p.Err)
			} else {
				event.Message = "Speech model ready"
			}
			a.appEvents.Now(downloadKey, event)
			continue
		}
		a.appEvents.Push(downloadKey, event)
	}
	if downloadErr != nil {
		if isCancellation(downloadErr) {
			return "", downloadErr
		}
		return "", fmt.Errorf("download speech model: %w", downloadErr)
	}

	if pather, ok := recognizer.(interface{ ModelPath() string }); ok {
		return pather.ModelPath(), nil
	}
	return "", nil
}

// fixPermissions requests capture privileges and reports what is still
// missing for mode.
func (a *App) fixPermissions(ctx context.Context, mode domain.AudioInputMode) error {
	status, err := a.conversation.RequestPermissions(ctx)
	if err != nil {
		return fmt.Errorf("request permissions: %w", err)
	}
	for _, source := range mode.Sources() {
		if !status.Granted(source) {
			return &domain.PermissionError{Kind: audio.PermissionFor(source)}
		}
	}
	return nil
}

func fixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}

// PrepareToolPath puts the app's private bin directory on PATH so aliases
// created by fixes are found.
func PrepareToolPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve user home: %w", err)
	}
	return ensureLocalBinOnPATH(homeDir)
}

func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, appDirName, "bin")
}

// installPlans lists package manager commands per tool and OS, in order of
// preference.
func installPlans(tool, goos string) []installOption {
	packages := map[string]map[string]string{
		"ffmpeg": {
			"winget": "Gyan.FFmpeg", "choco": "ffmpeg", "scoop": "ffmpeg",
			"brew": "ffmpeg", "apt-get": "ffmpeg", "dnf": "ffmpeg", "pacman": "ffmpeg",
		},
		"whisper.cpp": {
			"winget": "ggerganov.whisper.cpp", "choco": "whispercpp", "scoop": "whisper-cpp",
			"brew": "whisper-cpp", "apt-get": "whisper-cpp", "dnf": "whisper-cpp", "pacman": "whisper.cpp",
		},
	}[tool]
	if packages == nil {
		return nil
	}

	var managers []string
	switch goos {
	case "windows":
		managers = []string{"winget", "choco", "scoop"}
	case "darwin":
		managers = []string{"brew"}
	default:
		managers = []string{"apt-get", "dnf", "pacman", "brew"}
	}

	options := make([]installOption, 0, len(managers))
	for _, manager := range managers {
		pkg := packages[manager]
		var commands [][]string
		switch manager {
		case "winget":
			commands = [][]string{{"winget", "install", "--id", pkg, "--exact", "--accept-source-agreements", "--accept-package-agreements"}}
		case "apt-get":
			commands = [][]string{{"apt-get", "update"}, {"apt-get", "install", "-y", pkg}}
		case "pacman":
			commands = [][]string{{"pacman", "-Sy", "--noconfirm", pkg}}
		case "choco", "dnf":
			commands = [][]string{{manager, "install", pkg, "-y"}}
		default:
			commands = [][]string{{manager, "install", pkg}}
		}
		options = append(options, installOption{manager: manager, commands: commands})
	}
	return options
}

// install runs the first working install plan for tool and verifies that
// every binary in verify is on PATH afterwards.
func (i *toolInstaller) install(ctx context.Context, tool string, verify ...string) error {
	if err := i.runFirstSuccessfulInstall(ctx, installPlans(tool, i.goos)); err != nil {
		return fmt.Errorf("install %s: %w", tool, err)
	}
	if err := i.requireTools(verify...); err != nil {
		return fmt.Errorf("verify %s on PATH: %w", tool, err)
	}
	return nil
}

// installWhisper installs whisper.cpp, or aliases an already installed
// binary published under another name.
func (i *toolInstaller) installWhisper(ctx context.Context) error {
	if err := i.requireTools("whisper.cpp"); err == nil {
		return nil
	}
	if err := i.createWhisperAlias(); err == nil {
		return nil
	}

	installErr := i.runFirstSuccessfulInstall(ctx, installPlans("whisper.cpp", i.goos))
	if installErr == nil && i.requireTools("whisper.cpp") == nil {
		return nil
	}
	if err := i.createWhisperAlias(); err != nil {
		if installErr != nil {
			return fmt.Errorf("install whisper.cpp failed: %v | alias creation failed: %w", installErr, err)
		}
		return fmt.Errorf("create whisper.cpp command alias: %w", err)
	}
	return nil
}

func (i *toolInstaller) runFirstSuccessfulInstall(ctx context.Context, options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", i.goos)
	}

	var failures []string
	for _, option := range options {
		if _, err := i.lookPath(option.manager); err != nil {
			continue
		}
		err := i.runAll(ctx, option.commands)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", option.manager, err))
	}

	if len(failures) == 0 {
		return fmt.Errorf("no supported package manager found for %s", i.goos)
	}
	return errors.New(strings.Join(failures, " | "))
}

func (i *toolInstaller) runAll(ctx context.Context, commands [][]string) error {
	for _, command := range commands {
		if err := i.runElevated(ctx, command); err != nil {
			return err
		}
	}
	return nil
}

// runElevated tries command as is, then through pkexec or sudo for system
// package managers on Linux.
func (i *toolInstaller) runElevated(ctx context.Context, command []string) error {
	candidates := [][]string{command}
	if i.goos == "linux" && requiresElevation(command[0]) {
		for _, prefix := range [][]string{{"pkexec"}, {"sudo", "-n"}} {
			if _, err := i.lookPath(prefix[0]); err == nil {
				candidates = append(candidates, append(append([]string(nil), prefix...), command...))
			}
		}
	}

	var failures []string
	for _, candidate := range candidates {
		err := i.run(ctx, candidate[0], candidate[1:]...)
		if err == nil {
			return nil
		}
		failures = append(failures, err.Error())
	}
	return errors.New(strings.Join(failures, " | "))
}

func (i *toolInstaller) requireTools(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := i.lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// createWhisperAlias exposes a differently named whisper binary as
// whisper.cpp in the app's bin directory.
func (i *toolInstaller) createWhisperAlias() error {
	candidates := []string{"whisper-cli", "whisper-cpp", "whisper"}
	var sourcePath string
	for _, candidate := range candidates {
		if path, err := i.lookPath(candidate); err == nil {
			sourcePath = path
			break
		}
	}
	if sourcePath == "" {
		return fmt.Errorf("no compatible whisper executable found (tried: %s)", strings.Join(candidates, ", "))
	}

	homeDir, err := i.homeDir()
	if err != nil {
		return fmt.Errorf("resolve user home: %w", err)
	}
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("create local bin directory: %w", err)
	}

	if i.goos == "windows" {
		content := fmt.Sprintf("@echo off\r\n\"%s\" %%*\r\n", sourcePath)
		return os.WriteFile(filepath.Join(binDir, "whisper.cpp.cmd"), []byte(content), 0o644)
	}

	escaped := strings.ReplaceAll(sourcePath, "\"", "\\\"")
	content := fmt.Sprintf("#!/usr/bin/env sh\nexec \"%s\" \"$@\"\n", escaped)
	return os.WriteFile(filepath.Join(binDir, "whisper.cpp"), []byte(content), 0o755)
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman":
		return true
	default:
		return false
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, installCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err == nil {
		return nil
	}

	command := strings.Join(append([]string{name}, args...), " ")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", command, installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", command, err)
	}
	return fmt.Errorf("%s failed: %w (%s)", command, err, trimmed)
}
