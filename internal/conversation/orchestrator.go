// Package conversation runs the live dual-stream translation pipelines and
// merges their output into one conversation timeline.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/logging"
	"live-translator/internal/speech"
	"live-translator/internal/synthesis"
	"live-translator/internal/translation"
)

// ErrRunning is returned when configuration changes while pipelines run.
var ErrRunning = errors.New("translation is running; stop it first")

// ErrSourceEnded reports a source pipeline whose capture or recognition
// stopped on its own while translation was active.
var ErrSourceEnded = errors.New("source stopped unexpectedly")

// Dependencies are the services an orchestrator drives.
type Dependencies struct {
	Capturer audio.Capturer
	// Recognizers holds one recognizer per audio source.
	Recognizers map[domain.AudioSource]speech.Recognizer
	Translator  translation.Translator
	// Synthesizer is optional; without it speak requests are ignored.
	Synthesizer synthesis.Synthesizer
}

// UpdateKind identifies what changed in an Update.
type UpdateKind string

const (
	UpdateState   UpdateKind = "state"
	UpdateMessage UpdateKind = "message"
	UpdateInterim UpdateKind = "interim"
	UpdateError   UpdateKind = "error"
	UpdateCleared UpdateKind = "cleared"
)

// Update is pushed to subscribers after every applied change.
type Update struct {
	Kind    UpdateKind
	State   domain.PipelineState
	Message domain.ConversationMessage
	Interim domain.InterimResult
	Err     error
}

// Snapshot is a consistent read of the published orchestrator fields.
type Snapshot struct {
	State              domain.PipelineState            `json:"state"`
	Configuration      domain.TranslationConfiguration `json:"configuration"`
	Messages           []domain.ConversationMessage    `json:"messages"`
	Interim            domain.InterimResult            `json:"interim"`
	LastError          string                          `json:"lastError,omitempty"`
	Recovery           string                          `json:"recovery,omitempty"`
	RequiredPermission domain.PermissionKind           `json:"requiredPermission,omitempty"`
}

// Orchestrator owns pipeline state, the message timeline and the interim
// slot. Worker goroutines never touch these fields directly; they send
// events to a single merge goroutine per run.
type Orchestrator struct {
	capturer    audio.Capturer
	recognizers map[domain.AudioSource]speech.Recognizer
	translator  translation.Translator
	synth       synthesis.Synthesizer
	logger      *zap.Logger

	newID func() string
	now   func() time.Time

	// transition serializes Start, Stop, Pause and Resume.
	transition sync.Mutex
	run        *run

	interimSeq atomic.Uint64

	mu       sync.RWMutex
	config   domain.TranslationConfiguration
	state    domain.PipelineState
	messages []domain.ConversationMessage
	interim  domain.InterimResult
	lastErr  error

	subMu       sync.RWMutex
	nextSubID   int
	subscribers map[int]func(Update)
}

// New builds an idle orchestrator for cfg.
func New(deps Dependencies, cfg domain.TranslationConfiguration, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Capturer == nil {
		return nil, fmt.Errorf("audio capturer is required")
	}
	if deps.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}

	recognizers := make(map[domain.AudioSource]speech.Recognizer, len(deps.Recognizers))
	for source, rec := range deps.Recognizers {
		if rec != nil {
			recognizers[source] = rec
		}
	}

	return &Orchestrator{
		capturer:    deps.Capturer,
		recognizers: recognizers,
		translator:  deps.Translator,
		synth:       deps.Synthesizer,
		logger:      logging.OrNop(logger).Named("conversation"),
		newID:       uuid.NewString,
		now:         time.Now,
		config:      cfg,
		state:       domain.IdleState,
		subscribers: make(map[int]func(Update)),
	}, nil
}

// Subscribe registers fn for every update and returns an unsubscribe func.
// fn runs on orchestrator goroutines and must not block.
func (o *Orchestrator) Subscribe(fn func(Update)) func() {
	o.subMu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	o.subMu.Unlock()

	return func() {
		o.subMu.Lock()
		delete(o.subscribers, id)
		o.subMu.Unlock()
	}
}

// Snapshot returns copies of the published fields.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := Snapshot{
		State:         o.state,
		Configuration: o.config,
		Messages:      append([]domain.ConversationMessage(nil), o.messages...),
		Interim:       o.interim,
	}
	if o.lastErr != nil {
		snap.LastError = o.lastErr.Error()
		snap.Recovery = domain.Recovery(o.lastErr)
		if kind, ok := domain.ClassifyPermission(o.lastErr); ok {
			snap.RequiredPermission = kind
		}
	}
	return snap
}

// State returns the current pipeline state.
func (o *Orchestrator) State() domain.PipelineState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Messages returns a copy of the timeline.
func (o *Orchestrator) Messages() []domain.ConversationMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.ConversationMessage(nil), o.messages...)
}

// LastError returns the most recent recorded failure.
func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// Configuration returns the configuration the next run starts with.
func (o *Orchestrator) Configuration() domain.TranslationConfiguration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config
}

// SetConfiguration replaces the configuration. Input mode and locales are
// not hot-swappable, so this fails while starting or active.
func (o *Orchestrator) SetConfiguration(cfg domain.TranslationConfiguration) error {
	o.transition.Lock()
	defer o.transition.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsRunning() {
		return ErrRunning
	}
	o.config = cfg
	return nil
}

// Start launches one pipeline per source of the configured input mode. It is
// a no-op while starting or active. From the error state a full stop runs
// first. On any launch failure every started pipeline is torn down, the
// state becomes error and the failure is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()
	return o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	switch o.State().Phase {
	case domain.PhaseStarting, domain.PhaseActive:
		o.logger.Debug("start ignored, already running")
		return nil
	case domain.PhaseError:
		o.stopLocked()
	}

	o.mu.Lock()
	cfg := o.config
	o.lastErr = nil
	o.mu.Unlock()

	if err := o.prepare(ctx, cfg); err != nil {
		return o.failStart(err)
	}

	o.setState(domain.PipelineState{Phase: domain.PhaseStarting})
	r := o.newRun(cfg)
	o.run = r

	var g errgroup.Group
	for _, source := range cfg.InputMode.Sources() {
		source := source
		g.Go(func() error {
			return o.launch(r, source)
		})
	}
	err := g.Wait()
	if err == nil && r.ctx.Err() != nil {
		// A source died before the run became active.
		err = o.LastError()
		if err == nil {
			err = ErrSourceEnded
		}
	}
	if err != nil {
		o.teardown(r)
		o.run = nil
		return o.failStart(err)
	}

	o.logger.Info("translation started",
		zap.String("input_mode", string(cfg.InputMode)),
		zap.String("source_locale", cfg.SourceLocale),
		zap.String("target_locale", cfg.TargetLocale),
	)
	o.setState(domain.PipelineState{Phase: domain.PhaseActive})
	return nil
}

// prepare validates cfg and installs a translation session when missing.
func (o *Orchestrator) prepare(ctx context.Context, cfg domain.TranslationConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !o.translator.IsLanguagePairSupported(cfg.SourceLocale, cfg.TargetLocale) {
		return domain.NewServiceError(domain.ServiceLanguagePairUnsupported, fmt.Sprintf("%s -> %s", cfg.SourceLocale, cfg.TargetLocale), nil)
	}
	if !o.translator.HasSession() {
		o.translator.SetSession(translation.PairSession{From: cfg.SourceLocale, To: cfg.TargetLocale})
	}
	return nil
}

func (o *Orchestrator) failStart(err error) error {
	o.logger.Error("translation start failed", zap.Error(err))
	o.recordError(err)
	o.setState(domain.ErrorState(err.Error()))
	return err
}

// Stop cancels every pipeline, stops recognition and capture, clears the
// interim slot and returns to idle. Safe to call in any state.
func (o *Orchestrator) Stop() {
	o.transition.Lock()
	defer o.transition.Unlock()
	o.stopLocked()
}

func (o *Orchestrator) stopLocked() {
	if o.run != nil {
		o.teardown(o.run)
		o.run = nil
	}
	o.clearInterim()
	o.setState(domain.IdleState)
}

// Pause stops capture and recognition while keeping configuration and
// messages. Only an active orchestrator pauses.
func (o *Orchestrator) Pause() {
	o.transition.Lock()
	defer o.transition.Unlock()

	if o.State().Phase != domain.PhaseActive {
		o.logger.Debug("pause ignored", zap.String("phase", string(o.State().Phase)))
		return
	}
	if o.run != nil {
		o.teardown(o.run)
		o.run = nil
	}
	o.clearInterim()
	o.setState(domain.PipelineState{Phase: domain.PhasePaused})
}

// Resume restarts a paused orchestrator. Other states are left untouched.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()

	if o.State().Phase != domain.PhasePaused {
		o.logger.Debug("resume ignored", zap.String("phase", string(o.State().Phase)))
		return nil
	}
	return o.startLocked(ctx)
}

// ClearMessages empties the timeline.
func (o *Orchestrator) ClearMessages() {
	o.mu.Lock()
	o.messages = nil
	o.mu.Unlock()
	o.publish(Update{Kind: UpdateCleared})
}

// Speak synthesizes the translated text of msg.
func (o *Orchestrator) Speak(ctx context.Context, msg domain.ConversationMessage) error {
	if o.synth == nil {
		return nil
	}
	cfg := o.Configuration()
	return o.synth.Speak(ctx, synthesis.Request{
		Text:   msg.TranslatedText,
		Locale: msg.TargetLocale,
		Rate:   cfg.SpeechRate,
		Voice:  cfg.Voice,
	})
}

// StopSpeaking interrupts synthesis.
func (o *Orchestrator) StopSpeaking() {
	if o.synth != nil {
		o.synth.Stop()
	}
}

// RequestPermissions asks the capturer for capture privileges.
func (o *Orchestrator) RequestPermissions(ctx context.Context) (audio.PermissionStatus, error) {
	return o.capturer.RequestPermissions(ctx)
}

// RefreshAudioSources re-enumerates capture devices.
func (o *Orchestrator) RefreshAudioSources(ctx context.Context) ([]audio.Device, error) {
	return o.capturer.RefreshSources(ctx)
}

// SelectAudioSource chooses the capture device by ID.
func (o *Orchestrator) SelectAudioSource(deviceID string) error {
	return o.capturer.SelectSource(deviceID)
}

func (o *Orchestrator) setState(state domain.PipelineState) {
	o.mu.Lock()
	if o.state == state {
		o.mu.Unlock()
		return
	}
	o.state = state
	o.mu.Unlock()
	o.publish(Update{Kind: UpdateState, State: state})
}

func (o *Orchestrator) recordError(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
	o.publish(Update{Kind: UpdateError, Err: err})
}

// clearInterim empties the slot and invalidates in-flight interim
// translations.
func (o *Orchestrator) clearInterim() {
	o.apply(event{kind: eventClearInterim, seq: o.interimSeq.Add(1)})
}

func (o *Orchestrator) publish(update Update) {
	o.subMu.RLock()
	subs := make([]func(Update), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		subs = append(subs, fn)
	}
	o.subMu.RUnlock()

	for _, fn := range subs {
		fn(update)
	}
}
