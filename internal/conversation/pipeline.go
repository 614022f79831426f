package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/speech"
	"live-translator/internal/synthesis"
)

const eventBuffer = 64

type eventKind int

const (
	eventInterim eventKind = iota
	eventInterimTranslation
	eventClearInterim
	eventMessage
	eventError
)

// event is what source workers send to the merge goroutine.
type event struct {
	kind    eventKind
	fatal   bool
	seq     uint64
	source  domain.AudioSource
	text    string
	message domain.ConversationMessage
	err     error
}

type runStats struct {
	buffers             atomic.Int64
	results             atomic.Int64
	messages            atomic.Int64
	translationFailures atomic.Int64
}

// run is one start-to-stop lifetime of the source pipelines.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	config domain.TranslationConfiguration

	events  chan event
	merged  chan struct{}
	workers sync.WaitGroup

	mu      sync.Mutex
	sources []domain.AudioSource

	stats runStats
}

func (o *Orchestrator) newRun(cfg domain.TranslationConfiguration) *run {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		ctx:    ctx,
		cancel: cancel,
		config: cfg,
		events: make(chan event, eventBuffer),
		merged: make(chan struct{}),
	}
	go o.merge(r)
	return r
}

// launch opens capture and recognition for one source and starts its feed
// and consume loops.
func (o *Orchestrator) launch(r *run, source domain.AudioSource) error {
	rec, ok := o.recognizers[source]
	if !ok {
		return domain.NewServiceError(domain.ServiceEngineStart, fmt.Sprintf("no recognizer for %s", source), nil)
	}
	r.mu.Lock()
	r.sources = append(r.sources, source)
	r.mu.Unlock()

	from, to := r.config.LocalesFor(source)

	buffers, err := o.capturer.StartCapture(r.ctx, source)
	if err != nil {
		return fmt.Errorf("start %s capture: %w", source, err)
	}

	results, err := rec.StartRecognition(r.ctx, from, r.config.AccurateRecognition)
	if err != nil {
		return fmt.Errorf("start %s recognition: %w", source, engineStartError(source, err))
	}

	r.workers.Add(2)
	go o.feed(r, source, rec, buffers)
	go o.consume(r, source, rec, results, from, to)

	o.logger.Debug("source pipeline launched",
		zap.String("source", string(source)),
		zap.String("from", from),
		zap.String("to", to),
	)
	return nil
}

// engineStartError keeps typed failures and wraps anything else as an
// engine start failure.
func engineStartError(source domain.AudioSource, err error) error {
	var permErr *domain.PermissionError
	var svcErr *domain.ServiceError
	if errors.As(err, &permErr) || errors.As(err, &svcErr) {
		return err
	}
	return domain.NewServiceError(domain.ServiceEngineStart, string(source), err)
}

// feed pushes every captured buffer into the recognizer. When capture ends
// on its own, recognition is stopped so pending audio is flushed.
func (o *Orchestrator) feed(r *run, source domain.AudioSource, rec speech.Recognizer, buffers <-chan audio.Buffer) {
	defer r.workers.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case buf, ok := <-buffers:
			if !ok {
				if r.ctx.Err() == nil {
					o.logger.Info("capture ended", zap.String("source", string(source)))
					rec.StopRecognition()
				}
				return
			}
			if err := rec.ProcessAudio(buf); err != nil {
				if r.ctx.Err() != nil || errors.Is(err, speech.ErrNotRunning) {
					return
				}
				o.logger.Warn("feed audio failed", zap.String("source", string(source)), zap.Error(err))
				continue
			}
			r.stats.buffers.Add(1)
		}
	}
}

// consume routes results in delivery order.
func (o *Orchestrator) consume(r *run, source domain.AudioSource, rec speech.Recognizer, results <-chan speech.Result, from, to string) {
	defer r.workers.Done()

	for result := range results {
		if r.ctx.Err() != nil {
			continue
		}
		r.stats.results.Add(1)
		if result.IsFinal {
			o.handleFinal(r, source, result, from, to)
		} else {
			o.handleInterim(r, source, result, from, to)
		}
	}

	if r.ctx.Err() != nil {
		return
	}
	// The source died while the run is still wanted.
	err := rec.Err()
	if err == nil {
		err = ErrSourceEnded
	}
	o.logger.Error("source pipeline ended", zap.String("source", string(source)), zap.Error(err))
	o.send(r, event{kind: eventError, fatal: true, source: source, err: fmt.Errorf("%s recognition: %w", source, err)})
}

func (o *Orchestrator) handleInterim(r *run, source domain.AudioSource, result speech.Result, from, to string) {
	text := strings.TrimSpace(result.Text)
	seq := o.interimSeq.Add(1)
	if !o.send(r, event{kind: eventInterim, seq: seq, source: source, text: text}) || text == "" {
		return
	}

	translated, err := o.translator.Translate(r.ctx, text, from, to)
	if err != nil {
		return
	}
	o.send(r, event{kind: eventInterimTranslation, seq: seq, source: source, text: translated})
}

func (o *Orchestrator) handleFinal(r *run, source domain.AudioSource, result speech.Result, from, to string) {
	if !o.send(r, event{kind: eventClearInterim, seq: o.interimSeq.Add(1), source: source}) {
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}

	translated, err := o.translator.Translate(r.ctx, text, from, to)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.stats.translationFailures.Add(1)
		o.logger.Warn("translation failed, keeping original text",
			zap.String("source", string(source)),
			zap.Error(err),
		)
		translated = text
		err = fmt.Errorf("translate %s message: %w", source, err)
	}

	msg := domain.ConversationMessage{
		ID:             o.newID(),
		OriginalText:   text,
		TranslatedText: translated,
		SourceLocale:   from,
		TargetLocale:   to,
		Origin:         source,
		CreatedAt:      o.now(),
		IsFinal:        true,
	}
	if !o.send(r, event{kind: eventMessage, source: source, message: msg, err: err}) {
		return
	}
	r.stats.messages.Add(1)

	if r.config.AutoSpeak && source == domain.AudioSourceSystemAudio && o.synth != nil {
		req := synthesis.Request{Text: msg.TranslatedText, Locale: msg.TargetLocale, Rate: r.config.SpeechRate, Voice: r.config.Voice}
		if err := o.synth.Speak(r.ctx, req); err != nil && r.ctx.Err() == nil {
			o.logger.Warn("auto-speak failed", zap.Error(err))
		}
	}
}

// send delivers ev to the merge goroutine unless the run is cancelled.
func (o *Orchestrator) send(r *run, ev event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (o *Orchestrator) merge(r *run) {
	defer close(r.merged)
	for ev := range r.events {
		o.apply(ev)
		if ev.fatal {
			o.failRun(r, ev.err)
		}
	}
}

// failRun cancels every pipeline of r after one source died and moves an
// active orchestrator to the error state. Resources are released by the
// next Stop or Start.
func (o *Orchestrator) failRun(r *run, err error) {
	r.cancel()

	o.mu.Lock()
	if o.state.Phase != domain.PhaseActive {
		o.mu.Unlock()
		return
	}
	state := domain.ErrorState(err.Error())
	o.state = state
	o.mu.Unlock()

	o.publish(Update{Kind: UpdateState, State: state})
}

// apply is the only place the timeline and interim slot change.
func (o *Orchestrator) apply(ev event) {
	var update *Update

	o.mu.Lock()
	switch ev.kind {
	case eventInterim:
		if ev.seq > o.interim.Sequence {
			o.interim = domain.InterimResult{Source: ev.source, Transcription: ev.text, Sequence: ev.seq}
			update = &Update{Kind: UpdateInterim, Interim: o.interim}
		}
	case eventInterimTranslation:
		// Only the translation of the displayed transcription is kept.
		if ev.seq == o.interim.Sequence && o.interim.Transcription != "" {
			o.interim.Translation = ev.text
			update = &Update{Kind: UpdateInterim, Interim: o.interim}
		}
	case eventClearInterim:
		if ev.seq > o.interim.Sequence {
			wasEmpty := o.interim.Empty()
			o.interim = domain.InterimResult{Sequence: ev.seq}
			if !wasEmpty {
				update = &Update{Kind: UpdateInterim, Interim: o.interim}
			}
		}
	case eventMessage:
		o.messages = append(o.messages, ev.message)
		if ev.err != nil {
			o.lastErr = ev.err
		}
		update = &Update{Kind: UpdateMessage, Message: ev.message, Err: ev.err}
	case eventError:
		o.lastErr = ev.err
		update = &Update{Kind: UpdateError, Err: ev.err}
	}
	o.mu.Unlock()

	if update != nil {
		o.publish(*update)
	}
}

// teardown cancels r and waits until every worker and the merge goroutine
// have exited.
func (o *Orchestrator) teardown(r *run) {
	r.cancel()

	r.mu.Lock()
	sources := append([]domain.AudioSource(nil), r.sources...)
	r.mu.Unlock()
	for _, source := range sources {
		if rec, ok := o.recognizers[source]; ok {
			rec.StopRecognition()
		}
	}
	o.capturer.StopAllCapture()

	r.workers.Wait()
	close(r.events)
	<-r.merged

	o.logger.Info("translation stopped",
		zap.Int64("buffers_fed", r.stats.buffers.Load()),
		zap.Int64("results", r.stats.results.Load()),
		zap.Int64("messages", r.stats.messages.Load()),
		zap.Int64("translation_failures", r.stats.translationFailures.Load()),
	)
}
