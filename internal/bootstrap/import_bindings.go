package bootstrap

import (
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"live-translator/internal/domain"
	"live-translator/internal/importer"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// PickMediaFiles opens a native multi-file dialog for media selection.
func (a *App) PickMediaFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media files",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	return lo.FilterMap(paths, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	}), nil
}

// AddMediaFiles queues paths and returns one message per rejected file.
func (a *App) AddMediaFiles(paths []string) []string {
	errs := a.importer.AddFiles(a.context(), paths)
	return lo.Map(errs, func(err error, _ int) string { return err.Error() })
}

// RemoveMediaFile removes a file that is not being processed.
func (a *App) RemoveMediaFile(id string) error {
	return a.importer.RemoveFile(id)
}

// ClearMediaQueue empties the queue unless a batch is running.
func (a *App) ClearMediaQueue() error {
	return a.importer.ClearQueue()
}

// StartImport processes every queued file. A finished or cancelled batch is
// reset first so the queue can be run again; a cancelled run is waited for
// until its in-flight step has unwound. It returns false when nothing was
// started.
func (a *App) StartImport() bool {
	switch a.importer.BatchState().Phase {
	case domain.BatchCancelled, domain.BatchCompleted:
		a.importer.Wait()
		if err := a.importer.ResetBatch(); err != nil {
			a.logger.Warn("batch reset refused", zap.Error(err))
			return false
		}
	}
	return a.importer.StartProcessing()
}

// CancelImport stops the running batch after the in-flight step.
func (a *App) CancelImport() {
	a.importer.CancelProcessing()
}

// ImportSnapshot returns the queue and batch state for the UI.
func (a *App) ImportSnapshot() importer.Snapshot {
	return a.importer.Snapshot()
}
