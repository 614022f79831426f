package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"live-translator/internal/config"
	"live-translator/internal/conversation"
	"live-translator/internal/diagnostics"
	"live-translator/internal/domain"
	"live-translator/internal/importer"
	"live-translator/internal/jobs"
	"live-translator/internal/logging"
	"live-translator/internal/media"
	"live-translator/internal/subtitle"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventName is the runtime event every bus event is pushed under.
const EventName = "translator:event"

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio and video",
		Pattern:     "*." + strings.Join(media.SupportedExtensions(), ";*."),
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Options configures App construction.
type Options struct {
	Settings domain.Settings
	Store    config.Store
	Loader   config.Loader
	Services Services
	Logger   *zap.Logger
	// Assets serves the embedded frontend; nil serves ./frontend.
	Assets fs.FS
	// Debounce is the quiet period for interim and progress events.
	Debounce time.Duration
}

// App wires configuration, both orchestrators and the UI runtime.
type App struct {
	store     config.Store
	loader    config.Loader
	services  Services
	logger    *zap.Logger
	assets    fs.FS
	checker   *diagnostics.Checker
	events    *jobs.EventBus
	installer *toolInstaller

	conversation *conversation.Orchestrator
	importer     *importer.Orchestrator

	conversationEvents *coalescer
	importEvents       *coalescer
	appEvents          *coalescer
	unsubscribe        []func()

	mu          sync.Mutex
	settings    domain.Settings
	diagnostics domain.DiagnosticReport
	runtimeCtx  context.Context
}

// New builds the application from loaded settings and services, and runs
// startup diagnostics.
func New(opts Options) (*App, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	logger := logging.OrNop(opts.Logger)
	settings := opts.Settings
	services := opts.Services

	conv, err := conversation.New(conversation.Dependencies{
		Capturer:    services.Capturer,
		Recognizers: services.Recognizers,
		Translator:  services.Translator,
		Synthesizer: services.Synthesizer,
	}, settings.Translation(), logger)
	if err != nil {
		return nil, fmt.Errorf("build conversation: %w", err)
	}

	imp, err := importer.New(importer.Dependencies{
		Toolkit:    services.Toolkit,
		Recognizer: services.ImportRecognizer,
		Translator: services.Translator,
		Segmenter:  services.Segmenter,
		Exporter:   services.Exporter,
		Bookmarks:  services.Bookmarks,
	}, importConfig(settings), logger)
	if err != nil {
		return nil, fmt.Errorf("build importer: %w", err)
	}

	a := &App{
		store:    opts.Store,
		loader:   opts.Loader,
		services: services,
		logger:   logger,
		assets:   opts.Assets,
		checker: diagnostics.NewChecker(diagnostics.Services{
			Translator:  services.Translator,
			Permissions: services.Capturer,
			Speech:      services.ImportRecognizer,
		}),
		events:       jobs.NewEventBus(1000),
		installer:    newToolInstaller(),
		conversation: conv,
		importer:     imp,
		settings:     settings,
	}
	a.conversationEvents = newCoalescer(opts.Debounce, a.publishEvent)
	a.importEvents = newCoalescer(opts.Debounce, a.publishEvent)
	a.appEvents = newCoalescer(opts.Debounce, a.publishEvent)
	a.unsubscribe = []func(){
		conv.Subscribe(a.relayConversation),
		imp.Subscribe(a.relayImport),
	}

	a.diagnostics = a.checker.Run(context.Background(), settings)
	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Live Translator",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and dialogs.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops translation and any running import.
func (a *App) Shutdown(ctx context.Context) {
	a.conversation.Stop()
	a.importer.CancelProcessing()
	a.importer.Wait()
	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	a.conversationEvents.Flush()
	a.importEvents.Flush()
	a.appEvents.Flush()

	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()
	_ = a.logger.Sync()
}

// GetSettings loads and returns the latest persisted settings with
// environment overrides applied.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.loader.Load(a.store)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings validates and persists settings, applies them to both
// orchestrators and refreshes diagnostics. It is refused while translation
// or an import is running.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := config.Validate(normalized); err != nil {
		return domain.Settings{}, err
	}
	effective, err := a.loader.Apply(normalized)
	if err != nil {
		return domain.Settings{}, err
	}

	if a.importer.BatchState().Phase == domain.BatchProcessing {
		return domain.Settings{}, jobs.ErrBatchAlreadyRunning
	}
	if err := a.conversation.SetConfiguration(effective.Translation()); err != nil {
		return domain.Settings{}, err
	}
	if err := a.importer.SetConfig(importConfig(effective)); err != nil {
		return domain.Settings{}, err
	}
	if setter, ok := a.services.ImportRecognizer.(modelPathSetter); ok {
		setter.SetModelPath(effective.ModelPath)
	}

	if err := a.store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(effective)
	a.logger.Info("settings saved",
		zap.String("source_locale", effective.SourceLocale),
		zap.String("target_locale", effective.TargetLocale),
		zap.String("input_mode", string(effective.InputMode)),
	)
	return effective, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	report := a.checker.Run(a.context(), settings)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = settings
	a.diagnostics = report
	return report
}

// PickOutputDirectory opens a native directory picker for subtitle exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:                "Select subtitle folder",
		CanCreateDirectories: true,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, EventName, published)
	}
}

// context returns the runtime context, or a background context before
// startup and in tests.
func (a *App) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return context.Background()
	}
	return a.runtimeCtx
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

func importConfig(settings domain.Settings) importer.Config {
	return importer.Config{
		SourceLocale: settings.SourceLocale,
		TargetLocale: settings.TargetLocale,
		OutputDir:    settings.OutputDir,
		Subtitle: subtitle.Options{
			Format:           settings.SubtitleFormat,
			Bilingual:        settings.Bilingual,
			TranslationFirst: settings.TranslationFirst,
		},
	}
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}

// isCancellation reports whether err only signals a cancelled operation.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
