// Package importer turns a queue of media files into subtitle files, one
// file at a time.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"live-translator/internal/domain"
	"live-translator/internal/jobs"
	"live-translator/internal/logging"
	"live-translator/internal/media"
	"live-translator/internal/segmentation"
	"live-translator/internal/speech"
	"live-translator/internal/subtitle"
	"live-translator/internal/translation"
)

var (
	// ErrFileNotFound is returned for unknown queue entries.
	ErrFileNotFound = errors.New("media file not found in queue")
	// ErrFileProcessing is returned when removing the file being processed.
	ErrFileProcessing = errors.New("media file is being processed")
	// ErrRunStopping is returned while a cancelled run is still unwinding.
	ErrRunStopping = errors.New("previous batch run is still stopping")
)

const (
	defaultChunkDuration = 5 * time.Second
	errorBuffer          = 32
)

// Toolkit probes, extracts and decodes media.
type Toolkit interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	ExtractAudio(ctx context.Context, path string, info media.Info) (*media.ExtractedAudio, error)
	DecodePCM(ctx context.Context, path string) (*media.PCMStream, error)
}

// Bookmarker persists and resolves file access.
type Bookmarker interface {
	Bookmark(path string) ([]byte, error)
	Resolve(data []byte) (string, error)
}

// Dependencies are the services a batch run drives.
type Dependencies struct {
	Toolkit    Toolkit
	Recognizer speech.Recognizer
	Translator translation.Translator
	Segmenter  segmentation.Segmenter
	Exporter   subtitle.Exporter
	// Bookmarks is optional.
	Bookmarks Bookmarker
}

// Config controls locales and output of a batch run.
type Config struct {
	SourceLocale  string
	TargetLocale  string
	OutputDir     string
	Subtitle      subtitle.Options
	ChunkDuration time.Duration
}

// UpdateKind identifies what changed in an Update.
type UpdateKind string

const (
	UpdateQueue UpdateKind = "queue"
	UpdateFile  UpdateKind = "file"
	UpdateBatch UpdateKind = "batch"
	UpdateError UpdateKind = "error"
)

// Update is pushed to subscribers after every change.
type Update struct {
	Kind  UpdateKind
	File  domain.MediaFile
	Batch domain.BatchProcessingState
	Err   error
}

// Snapshot is a consistent read of the published importer fields.
type Snapshot struct {
	Files           []domain.MediaFile          `json:"files"`
	Batch           domain.BatchProcessingState `json:"batch"`
	OverallProgress float64                     `json:"overallProgress"`
	TotalFiles      int                         `json:"totalFiles"`
	CompletedFiles  int                         `json:"completedFiles"`
	FailedFiles     int                         `json:"failedFiles"`
}

// Orchestrator owns the queue and the batch lifecycle.
type Orchestrator struct {
	toolkit    Toolkit
	recognizer speech.Recognizer
	translator translation.Translator
	segmenter  segmentation.Segmenter
	exporter   subtitle.Exporter
	bookmarks  Bookmarker
	batch      *jobs.Manager
	logger     *zap.Logger

	stat     func(name string) (os.FileInfo, error)
	rename   func(oldpath, newpath string) error
	remove   func(name string) error
	mkdirAll func(path string, perm os.FileMode) error
	newID    func() string

	errs chan error

	mu     sync.RWMutex
	config Config
	files  []domain.MediaFile
	cancel context.CancelFunc
	done   chan struct{}

	subMu       sync.RWMutex
	nextSubID   int
	subscribers map[int]func(Update)
}

// New constructs an importer with an idle batch.
func New(deps Dependencies, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Toolkit == nil || deps.Recognizer == nil || deps.Translator == nil || deps.Exporter == nil {
		return nil, fmt.Errorf("toolkit, recognizer, translator and exporter are required")
	}
	if deps.Segmenter == nil {
		deps.Segmenter = segmentation.NewSentenceSegmenter(logger)
	}

	return &Orchestrator{
		toolkit:     deps.Toolkit,
		recognizer:  deps.Recognizer,
		translator:  deps.Translator,
		segmenter:   deps.Segmenter,
		exporter:    deps.Exporter,
		bookmarks:   deps.Bookmarks,
		batch:       jobs.NewManager(),
		logger:      logging.OrNop(logger).Named("importer"),
		stat:        os.Stat,
		rename:      os.Rename,
		remove:      os.Remove,
		mkdirAll:    os.MkdirAll,
		newID:       uuid.NewString,
		errs:        make(chan error, errorBuffer),
		config:      cfg,
		subscribers: make(map[int]func(Update)),
	}, nil
}

// Subscribe registers fn for every update and returns an unsubscribe func.
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

// Errors delivers rejected adds and per-segment translation failures. Errors
// are dropped when nobody drains the channel.
func (o *Orchestrator) Errors() <-chan error {
	return o.errs
}

// Config returns the current batch configuration.
func (o *Orchestrator) Config() Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config
}

// SetConfig replaces the configuration used by the next run.
func (o *Orchestrator) SetConfig(cfg Config) error {
	if o.batch.IsRunning() {
		return jobs.ErrBatchAlreadyRunning
	}
	o.mu.Lock()
	o.config = cfg
	o.mu.Unlock()
	return nil
}

// AddFiles validates and queues paths. Unsupported or unreadable files are
// reported and skipped; the rest are still added.
func (o *Orchestrator) AddFiles(ctx context.Context, paths []string) []error {
	var errs []error
	var added []domain.MediaFile

	for _, path := range paths {
		file, err := o.inspect(ctx, path)
		if err != nil {
			o.logger.Warn("media file rejected", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			o.report(err)
			continue
		}
		added = append(added, file)
	}

	if len(added) > 0 {
		o.mu.Lock()
		o.files = append(o.files, added...)
		o.mu.Unlock()
		o.publish(Update{Kind: UpdateQueue})
	}
	return errs
}

func (o *Orchestrator) inspect(ctx context.Context, path string) (domain.MediaFile, error) {
	name := filepath.Base(path)
	kind, ok := media.KindForPath(path)
	if !ok {
		return domain.MediaFile{}, fmt.Errorf("%s: unsupported file type %q", name, filepath.Ext(path))
	}

	info, err := o.stat(path)
	if err != nil {
		return domain.MediaFile{}, fmt.Errorf("%s: %w", name, err)
	}
	if info.IsDir() {
		return domain.MediaFile{}, fmt.Errorf("%s: is a directory", name)
	}

	file := domain.MediaFile{
		ID:          o.newID(),
		SourcePath:  path,
		DisplayName: DisplayName(name),
		Size:        info.Size(),
		Kind:        kind,
		State:       domain.MediaState{Status: domain.MediaStatusQueued},
	}

	probe, err := o.toolkit.Probe(ctx, path)
	if err != nil {
		o.logger.Warn("duration probe failed", zap.String("path", path), zap.Error(err))
	} else {
		file.Duration = probe.Duration
	}

	if o.bookmarks != nil {
		if bm, err := o.bookmarks.Bookmark(path); err != nil {
			o.logger.Debug("bookmark unavailable", zap.String("path", path), zap.Error(err))
		} else {
			file.Bookmark = bm
		}
	}
	return file, nil
}

// RemoveFile drops one queued file. The file being processed stays.
func (o *Orchestrator) RemoveFile(id string) error {
	o.mu.Lock()
	_, index, ok := lo.FindIndexOf(o.files, func(f domain.MediaFile) bool { return f.ID == id })
	if !ok {
		o.mu.Unlock()
		return ErrFileNotFound
	}
	if o.files[index].IsProcessing() {
		o.mu.Unlock()
		return ErrFileProcessing
	}
	o.files = append(o.files[:index:index], o.files[index+1:]...)
	o.mu.Unlock()

	o.publish(Update{Kind: UpdateQueue})
	return nil
}

// ClearQueue empties the queue and returns the batch to idle. It is refused
// while a batch is processing.
func (o *Orchestrator) ClearQueue() error {
	if err := o.checkDrained(); err != nil {
		return err
	}
	if err := o.batch.Reset(); err != nil {
		return err
	}
	o.mu.Lock()
	o.files = nil
	o.mu.Unlock()

	o.publish(Update{Kind: UpdateQueue})
	o.publish(Update{Kind: UpdateBatch, Batch: o.batch.Current()})
	return nil
}

// ResetBatch returns a completed or cancelled batch to idle, keeping the
// queue.
func (o *Orchestrator) ResetBatch() error {
	if err := o.checkDrained(); err != nil {
		return err
	}
	if err := o.batch.Reset(); err != nil {
		return err
	}
	o.publish(Update{Kind: UpdateBatch, Batch: o.batch.Current()})
	return nil
}

// StartProcessing begins a run over every queued file, in queue order. It
// returns false when nothing is queued or the batch cannot start.
func (o *Orchestrator) StartProcessing() bool {
	o.mu.Lock()
	pending := lo.FilterMap(o.files, func(f domain.MediaFile, _ int) (string, bool) {
		return f.ID, f.State.Status == domain.MediaStatusQueued
	})
	if len(pending) == 0 {
		o.mu.Unlock()
		return false
	}
	if o.running() {
		o.mu.Unlock()
		o.logger.Debug("start processing refused", zap.Error(ErrRunStopping))
		return false
	}

	runID := o.newID()
	if err := o.batch.Start(runID, len(pending)); err != nil {
		o.mu.Unlock()
		o.logger.Debug("start processing refused", zap.Error(err))
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	o.logger.Info("batch started", zap.String("run_id", runID), zap.Int("files", len(pending)))
	o.publish(Update{Kind: UpdateBatch, Batch: o.batch.Current()})

	go o.process(ctx, runID, pending, done)
	return true
}

// CancelProcessing stops the run after the in-flight chunk or segment.
func (o *Orchestrator) CancelProcessing() {
	if err := o.batch.Cancel(); err != nil {
		return
	}

	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.logger.Info("batch cancelled")
	o.publish(Update{Kind: UpdateBatch, Batch: o.batch.Current()})
}

// checkDrained refuses queue and batch resets while a cancelled run has not
// returned yet. A processing batch is left to the state machine to refuse.
func (o *Orchestrator) checkDrained() error {
	if o.batch.Current().Phase == domain.BatchProcessing {
		return nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.running() {
		return ErrRunStopping
	}
	return nil
}

// running reports whether the last run's goroutine is still alive. Callers
// hold o.mu.
func (o *Orchestrator) running() bool {
	if o.done == nil {
		return false
	}
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the current run, if any, has returned.
func (o *Orchestrator) Wait() {
	o.mu.RLock()
	done := o.done
	o.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Files returns a copy of the queue.
func (o *Orchestrator) Files() []domain.MediaFile {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.MediaFile(nil), o.files...)
}

// BatchState returns the batch lifecycle state.
func (o *Orchestrator) BatchState() domain.BatchProcessingState {
	return o.batch.Current()
}

// OverallProgress averages per-file progress over the queue.
func (o *Orchestrator) OverallProgress() float64 {
	files := o.Files()
	if len(files) == 0 {
		return 0
	}
	return lo.SumBy(files, domain.MediaFile.Progress) / float64(len(files))
}

// TotalFiles returns the queue length.
func (o *Orchestrator) TotalFiles() int {
	return len(o.Files())
}

// CompletedFiles counts files with subtitles written.
func (o *Orchestrator) CompletedFiles() int {
	return countStatus(o.Files(), domain.MediaStatusCompleted)
}

// FailedFiles counts files that failed.
func (o *Orchestrator) FailedFiles() int {
	return countStatus(o.Files(), domain.MediaStatusFailed)
}

// Snapshot returns every published field at once.
func (o *Orchestrator) Snapshot() Snapshot {
	files := o.Files()
	snap := Snapshot{
		Files:          files,
		Batch:          o.batch.Current(),
		TotalFiles:     len(files),
		CompletedFiles: countStatus(files, domain.MediaStatusCompleted),
		FailedFiles:    countStatus(files, domain.MediaStatusFailed),
	}
	if len(files) > 0 {
		snap.OverallProgress = lo.SumBy(files, domain.MediaFile.Progress) / float64(len(files))
	}
	return snap
}

func countStatus(files []domain.MediaFile, status domain.MediaStatus) int {
	return lo.CountBy(files, func(f domain.MediaFile) bool {
		return f.State.Status == status
	})
}

func (o *Orchestrator) file(id string) (domain.MediaFile, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return lo.Find(o.files, func(f domain.MediaFile) bool { return f.ID == id })
}

// updateFile applies mutate to the file with id and publishes the result.
func (o *Orchestrator) updateFile(id string, mutate func(f *domain.MediaFile)) {
	o.mu.Lock()
	var updated domain.MediaFile
	found := false
	for i := range o.files {
		if o.files[i].ID == id {
			mutate(&o.files[i])
			updated = o.files[i]
			found = true
			break
		}
	}
	o.mu.Unlock()

	if found {
		o.publish(Update{Kind: UpdateFile, File: updated})
	}
}

func (o *Orchestrator) setStatus(id string, state domain.MediaState) {
	o.updateFile(id, func(f *domain.MediaFile) { f.State = state })
}

func (o *Orchestrator) setProgress(id string, value float64) {
	o.setStatus(id, domain.MediaState{Status: domain.MediaStatusProcessing, Progress: value})
}

// report sends err to the error channel without blocking.
func (o *Orchestrator) report(err error) {
	select {
	case o.errs <- err:
	default:
		o.logger.Debug("error channel full, dropping", zap.Error(err))
	}
	o.publish(Update{Kind: UpdateError, Err: err})
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
