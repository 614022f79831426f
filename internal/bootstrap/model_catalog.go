package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"live-translator/internal/domain"
	"live-translator/internal/speech"
)

type modelPathSetter interface {
	SetModelPath(path string)
}

// SpeechModel is one catalog entry annotated with local state.
type SpeechModel struct {
	speech.ModelOption
	Path       string `json:"path"`
	Downloaded bool   `json:"downloaded"`
	Active     bool   `json:"active"`
}

// GetSpeechModels returns the whisper.cpp catalog with the models found in
// the configured model directory marked.
func (a *App) GetSpeechModels() []SpeechModel {
	settings := a.currentSettings()
	dir := modelDirectory(settings.ModelPath)
	active := filepath.Clean(strings.TrimSpace(settings.ModelPath))

	return lo.Map(speech.Models(), func(m speech.ModelOption, _ int) SpeechModel {
		path := filepath.Join(dir, m.FileName)
		info, err := os.Stat(path)
		downloaded := err == nil && !info.IsDir()
		return SpeechModel{
			ModelOption: m,
			Path:        path,
			Downloaded:  downloaded,
			Active:      downloaded && (active == path || active == dir),
		}
	})
}

// SelectSpeechModel points settings at a downloaded catalog model.
func (a *App) SelectSpeechModel(modelID string) (domain.Settings, error) {
	model, ok := lo.Find(a.GetSpeechModels(), func(m SpeechModel) bool { return m.ID == modelID })
	if !ok {
		return domain.Settings{}, fmt.Errorf("unknown speech model: %s", modelID)
	}
	if !model.Downloaded {
		return domain.Settings{}, fmt.Errorf("speech model %s is not downloaded", model.Name)
	}

	stored, err := a.store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	stored.ModelPath = model.Path
	return a.SaveSettings(stored)
}

// modelDirectory returns the directory holding model files for modelPath,
// which may name a model file or a directory.
func modelDirectory(modelPath string) string {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		return ""
	}
	if info, err := os.Stat(trimmed); err == nil && info.IsDir() {
		return trimmed
	}
	switch strings.ToLower(filepath.Ext(trimmed)) {
	case ".bin", ".gguf":
		return filepath.Dir(trimmed)
	default:
		return trimmed
	}
}
