package domain

import "time"

// MediaKind distinguishes video containers from audio-only files.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// MediaStatus is the processing status of one queued file.
type MediaStatus string

const (
	MediaStatusQueued     MediaStatus = "queued"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusCompleted  MediaStatus = "completed"
	MediaStatusFailed     MediaStatus = "failed"
)

// MediaState carries the status plus progress (processing) or message (failed).
type MediaState struct {
	Status   MediaStatus `json:"status"`
	Progress float64     `json:"progress"`
	Message  string      `json:"message,omitempty"`
}

// MediaFile is one entry of the batch import queue.
type MediaFile struct {
	ID          string        `json:"id"`
	SourcePath  string        `json:"sourcePath"`
	DisplayName string        `json:"displayName"`
	Size        int64         `json:"size"`
	Duration    time.Duration `json:"duration"`
	Kind        MediaKind     `json:"kind"`
	State       MediaState    `json:"state"`
	OutputPath  string        `json:"outputPath,omitempty"`
	Bookmark    []byte        `json:"bookmark,omitempty"`
}

// IsProcessing reports whether the file is mid-pipeline.
func (f MediaFile) IsProcessing() bool {
	return f.State.Status == MediaStatusProcessing
}

// Progress returns the 0..1 completion used for aggregate progress.
func (f MediaFile) Progress() float64 {
	switch f.State.Status {
	case MediaStatusCompleted, MediaStatusFailed:
		return 1
	case MediaStatusProcessing:
		return f.State.Progress
	default:
		return 0
	}
}

// BatchPhase is the lifecycle of a batch run.
type BatchPhase string

const (
	BatchIdle       BatchPhase = "idle"
	BatchProcessing BatchPhase = "processing"
	BatchCompleted  BatchPhase = "completed"
	BatchCancelled  BatchPhase = "cancelled"
)

// BatchProcessingState is the published batch state. Current/Total are set
// while processing, Successful/Failed once completed.
type BatchProcessingState struct {
	Phase      BatchPhase `json:"phase"`
	Current    int        `json:"current,omitempty"`
	Total      int        `json:"total,omitempty"`
	Successful int        `json:"successful,omitempty"`
	Failed     int        `json:"failed,omitempty"`
}

// Segment is the shared unit of transcribed and translated content. Times
// are seconds relative to the session or file start.
type Segment struct {
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	OriginalText   string  `json:"originalText"`
	TranslatedText string  `json:"translatedText,omitempty"`
	SourceLocale   string  `json:"sourceLocale"`
	TargetLocale   string  `json:"targetLocale,omitempty"`
	Confidence     float64 `json:"confidence"`
	IsFinal        bool    `json:"isFinal"`
	Speaker        string  `json:"speaker,omitempty"`
}

// Duration returns EndTime - StartTime.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// WordTiming is one recognized word with its time range in seconds.
type WordTiming struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}
