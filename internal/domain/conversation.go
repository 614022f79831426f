package domain

import "time"

// PipelinePhase is the coarse lifecycle of a conversation orchestrator.
type PipelinePhase string

const (
	PhaseIdle     PipelinePhase = "idle"
	PhaseStarting PipelinePhase = "starting"
	PhaseActive   PipelinePhase = "active"
	PhasePaused   PipelinePhase = "paused"
	PhaseError    PipelinePhase = "error"
)

// PipelineState is the published state; Message is set only in PhaseError.
type PipelineState struct {
	Phase   PipelinePhase `json:"phase"`
	Message string        `json:"message,omitempty"`
}

// IdleState is the initial state of every orchestrator.
var IdleState = PipelineState{Phase: PhaseIdle}

// ErrorState builds the error state carrying message.
func ErrorState(message string) PipelineState {
	return PipelineState{Phase: PhaseError, Message: message}
}

// CanStart reports whether a start may be initiated from this state.
func (s PipelineState) CanStart() bool {
	switch s.Phase {
	case PhaseIdle, PhasePaused, PhaseError:
		return true
	default:
		return false
	}
}

// IsRunning reports whether pipelines are starting or live.
func (s PipelineState) IsRunning() bool {
	return s.Phase == PhaseStarting || s.Phase == PhaseActive
}

// ConversationMessage is one finalized, translated utterance. Values are
// never mutated after they are appended to a timeline.
type ConversationMessage struct {
	ID             string      `json:"id"`
	OriginalText   string      `json:"originalText"`
	TranslatedText string      `json:"translatedText"`
	SourceLocale   string      `json:"sourceLocale"`
	TargetLocale   string      `json:"targetLocale"`
	Origin         AudioSource `json:"origin"`
	CreatedAt      time.Time   `json:"createdAt"`
	IsFinal        bool        `json:"isFinal"`
}

// InterimResult is the single shared interim display slot. Sequence grows
// with every interim event so late translations can be matched to the
// transcription they belong to.
type InterimResult struct {
	Source        AudioSource `json:"source,omitempty"`
	Transcription string      `json:"transcription,omitempty"`
	Translation   string      `json:"translation,omitempty"`
	Sequence      uint64      `json:"sequence"`
}

// Empty reports whether the slot holds nothing to display.
func (r InterimResult) Empty() bool {
	return r.Transcription == "" && r.Translation == ""
}
