package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/jobs"
	"live-translator/internal/speech"
)

// fakeInstaller builds a toolInstaller over an in-memory PATH.
func fakeInstaller(goos string, onPath map[string]string, run func(name string, args ...string) error) (*toolInstaller, *[][]string) {
	var mu sync.Mutex
	var calls [][]string
	return &toolInstaller{
		goos: goos,
		lookPath: func(name string) (string, error) {
			if path, ok := onPath[name]; ok {
				return path, nil
			}
			return "", errors.New("not found")
		},
		run: func(ctx context.Context, name string, args ...string) error {
			mu.Lock()
			calls = append(calls, append([]string{name}, args...))
			mu.Unlock()
			if run == nil {
				return nil
			}
			return run(name, args...)
		},
		homeDir: func() (string, error) { return "", errors.New("no home") },
	}, &calls
}

// TestInstallPlans checks the package manager order per OS.
func TestInstallPlans(t *testing.T) {
	tests := []struct {
		tool, goos   string
		wantManager  string
		wantCommands int
		wantPackage  string
	}{
		{"ffmpeg", "linux", "apt-get", 2, "ffmpeg"},
		{"ffmpeg", "darwin", "brew", 1, "ffmpeg"},
		{"ffmpeg", "windows", "winget", 1, "Gyan.FFmpeg"},
		{"whisper.cpp", "darwin", "brew", 1, "whisper-cpp"},
		{"whisper.cpp", "windows", "winget", 1, "ggerganov.whisper.cpp"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.goos, func(t *testing.T) {
			plans := installPlans(tt.tool, tt.goos)
			if len(plans) == 0 {
				t.Fatal("expected install plans")
			}
			first := plans[0]
			if first.manager != tt.wantManager || len(first.commands) != tt.wantCommands {
				t.Fatalf("first plan = %+v", first)
			}
			last := first.commands[len(first.commands)-1]
			if !strings.Contains(strings.Join(last, " "), tt.wantPackage) {
				t.Fatalf("command %v does not install %s", last, tt.wantPackage)
			}
		})
	}

	if plans := installPlans("vlc", "linux"); plans != nil {
		t.Fatalf("unknown tool plans = %+v", plans)
	}
}

// TestInstallSkipsMissingManagers checks only available managers run.
func TestInstallSkipsMissingManagers(t *testing.T) {
	onPath := map[string]string{"dnf": "/usr/bin/dnf"}
	installer, calls := fakeInstaller("linux", onPath, func(name string, args ...string) error {
		onPath["ffmpeg"] = "/usr/bin/ffmpeg"
		onPath["ffprobe"] = "/usr/bin/ffprobe"
		return nil
	})

	if err := installer.install(context.Background(), "ffmpeg", "ffmpeg", "ffprobe"); err != nil {
		t.Fatalf("install() error = %v", err)
	}
	if len(*calls) != 1 || strings.Join((*calls)[0], " ") != "dnf install ffmpeg -y" {
		t.Fatalf("calls = %v", *calls)
	}
}

// TestInstallFallsBackToElevation checks pkexec is tried after a plain failure.
func TestInstallFallsBackToElevation(t *testing.T) {
	onPath := map[string]string{"apt-get": "/usr/bin/apt-get", "pkexec": "/usr/bin/pkexec"}
	installer, calls := fakeInstaller("linux", onPath, func(name string, args ...string) error {
		if name == "apt-get" {
			return errors.New("permission denied")
		}
		return nil
	})

	if err := installer.runFirstSuccessfulInstall(context.Background(), installPlans("ffmpeg", "linux")); err != nil {
		t.Fatalf("runFirstSuccessfulInstall() error = %v", err)
	}
	want := []string{
		"apt-get update",
		"pkexec apt-get update",
		"apt-get install -y ffmpeg",
		"pkexec apt-get install -y ffmpeg",
	}
	if len(*calls) != len(want) {
		t.Fatalf("calls = %v", *calls)
	}
	for i, call := range *calls {
		if got := strings.Join(call, " "); got != want[i] {
			t.Fatalf("call %d = %q, want %q", i, got, want[i])
		}
	}
}

// TestInstallWithoutManagerFails checks the no-manager error.
func TestInstallWithoutManagerFails(t *testing.T) {
	installer, calls := fakeInstaller("linux", map[string]string{}, nil)

	err := installer.install(context.Background(), "ffmpeg", "ffmpeg")
	if err == nil || !strings.Contains(err.Error(), "no supported package manager") {
		t.Fatalf("install() error = %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("calls = %v", *calls)
	}
}

// TestInstallWhisperCreatesAlias checks an existing whisper-cli is aliased.
func TestInstallWhisperCreatesAlias(t *testing.T) {
	home := t.TempDir()
	installer, calls := fakeInstaller("linux", map[string]string{"whisper-cli": "/opt/whisper/whisper-cli"}, nil)
	installer.homeDir = func() (string, error) { return home, nil }

	if err := installer.installWhisper(context.Background()); err != nil {
		t.Fatalf("installWhisper() error = %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("package managers ran: %v", *calls)
	}

	data, err := os.ReadFile(filepath.Join(localBinDir(home), "whisper.cpp"))
	if err != nil {
		t.Fatalf("read alias: %v", err)
	}
	if !strings.Contains(string(data), `exec "/opt/whisper/whisper-cli" "$@"`) {
		t.Fatalf("alias = %q", data)
	}
}

// TestFixOutputDirCreatesDirectory checks output directory remediation.
func TestFixOutputDirCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "subtitles")

	settings, changed, err := fixOutputDir(domain.Settings{OutputDir: dir})
	if err != nil {
		t.Fatalf("fixOutputDir() error = %v", err)
	}
	if changed || settings.OutputDir != dir {
		t.Fatalf("settings = %+v, changed = %v", settings, changed)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}

// downloadingRecognizer is a stub recognizer whose download reports
// progress and moves its model path.
type downloadingRecognizer struct {
	*speech.StubRecognizer
	target string

	mu        sync.Mutex
	modelPath string
}

func (r *downloadingRecognizer) DownloadLanguage(ctx context.Context, loc string) (<-chan speech.DownloadProgress, error) {
	out := make(chan speech.DownloadProgress, 3)
	out <- speech.DownloadProgress{Locale: loc, Fraction: 0.5}
	out <- speech.DownloadProgress{Locale: loc, Fraction: 1}
	out <- speech.DownloadProgress{Locale: loc, Fraction: 1, Done: true}
	close(out)
	r.SetModelPath(r.target)
	return out, nil
}

func (r *downloadingRecognizer) ModelPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelPath
}

func (r *downloadingRecognizer) SetModelPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelPath = path
}

// TestFixDiagnosticDownloadsModel checks the model fix saves the new path
// and relays download progress.
func TestFixDiagnosticDownloadsModel(t *testing.T) {
	target := filepath.Join(t.TempDir(), "ggml-base.bin")
	rec := &downloadingRecognizer{StubRecognizer: speech.NewStubRecognizer(nil), target: target}
	app, store := newTestApp(t, WithImportRecognizer(rec))

	report, err := app.FixDiagnostic("model_path")
	if err != nil {
		t.Fatalf("FixDiagnostic() error = %v", err)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatal("expected refreshed report")
	}
	if saved, _ := store.Load(); saved.ModelPath != target {
		t.Fatalf("saved model path = %q, want %q", saved.ModelPath, target)
	}
	done := waitForEvent(t, app, func(e jobs.Event) bool {
		return e.Type == jobs.EventTypeDownload && e.Progress == 1 && e.Message == "Speech model ready"
	})
	if done.Source != jobs.SourceApp {
		t.Fatalf("source = %q", done.Source)
	}
}

// TestFixDiagnosticPermissions checks missing grants are reported as
// permission errors.
func TestFixDiagnosticPermissions(t *testing.T) {
	capCfg := audio.DefaultStubCapturerConfig()
	capCfg.Denied = map[domain.AudioSource]bool{domain.AudioSourceMicrophone: true}
	app, _ := newTestApp(t, WithCapturer(audio.NewStubCapturer(capCfg)))

	_, err := app.FixDiagnostic("permission_microphone")
	var permErr *domain.PermissionError
	if !errors.As(err, &permErr) || permErr.Kind != domain.PermissionMicrophone {
		t.Fatalf("FixDiagnostic() error = %v, want microphone permission error", err)
	}
}

// TestFixDiagnosticRejectsUnknownItems checks id validation.
func TestFixDiagnosticRejectsUnknownItems(t *testing.T) {
	app, _ := newTestApp(t)

	for _, id := range []string{"", "  ", "language_pair"} {
		if _, err := app.FixDiagnostic(id); err == nil {
			t.Fatalf("FixDiagnostic(%q) expected error", id)
		}
	}
}

// TestEnsureLocalBinOnPATH checks the bin directory is prepended once.
func TestEnsureLocalBinOnPATH(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PATH", "/usr/bin")

	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("ensureLocalBinOnPATH() error = %v", err)
	}
	if err := ensureLocalBinOnPATH(home); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	want := localBinDir(home) + string(os.PathListSeparator) + "/usr/bin"
	if got := os.Getenv("PATH"); got != want {
		t.Fatalf("PATH = %q, want %q", got, want)
	}
}
