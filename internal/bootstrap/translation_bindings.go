package bootstrap

import (
	"fmt"

	"live-translator/internal/audio"
	"live-translator/internal/conversation"
)

// StartTranslation starts live translation with the saved configuration.
// A failed start leaves the orchestrator in its error state and is also
// published as an error event.
func (a *App) StartTranslation() error {
	return a.conversation.Start(a.context())
}

// StopTranslation stops live translation. Safe in any state.
func (a *App) StopTranslation() {
	a.conversation.Stop()
}

// PauseTranslation pauses an active translation.
func (a *App) PauseTranslation() {
	a.conversation.Pause()
}

// ResumeTranslation resumes a paused translation.
func (a *App) ResumeTranslation() error {
	return a.conversation.Resume(a.context())
}

// ClearMessages empties the conversation timeline.
func (a *App) ClearMessages() {
	a.conversation.ClearMessages()
}

// SpeakMessage reads the translation of one timeline message aloud.
func (a *App) SpeakMessage(id string) error {
	for _, msg := range a.conversation.Messages() {
		if msg.ID == id {
			return a.conversation.Speak(a.context(), msg)
		}
	}
	return fmt.Errorf("message not found: %s", id)
}

// StopSpeaking interrupts speech output.
func (a *App) StopSpeaking() {
	a.conversation.StopSpeaking()
}

// ConversationSnapshot returns the current translation state for the UI.
func (a *App) ConversationSnapshot() conversation.Snapshot {
	return a.conversation.Snapshot()
}

// RequestPermissions asks for capture privileges.
func (a *App) RequestPermissions() (audio.PermissionStatus, error) {
	return a.conversation.RequestPermissions(a.context())
}

// ListAudioDevices refreshes and returns selectable capture devices.
func (a *App) ListAudioDevices() ([]audio.Device, error) {
	return a.conversation.RefreshAudioSources(a.context())
}

// SelectAudioDevice chooses the capture device for its source.
func (a *App) SelectAudioDevice(deviceID string) error {
	return a.conversation.SelectAudioSource(deviceID)
}
