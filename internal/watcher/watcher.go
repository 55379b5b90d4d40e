package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panjf2000/ants/v2"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
	"github.com/ferret-search/ferret/internal/logger"
)

// Ensure Watcher implements the driving port.
var _ driving.Watcher = (*Watcher)(nil)

// queueKinds is the drain order. Deletions drain first so a delete
// followed by a re-create of the same path converges on the new content.
var queueKinds = []domain.EventKind{domain.EventDeleted, domain.EventCreated, domain.EventModified}

// debounceEntry tracks a path inside its debounce window. The kind is
// overwritten by later events, so the last kind within the window wins.
type debounceEntry struct {
	timer *time.Timer
	kind  domain.EventKind
}

// Watcher observes a file tree and keeps the index synchronised by
// feeding filtered, debounced changes into the ingestion pipeline.
type Watcher struct {
	root       string
	cfg        domain.WatcherConfig
	ingestor   driving.Ingestor
	extensions []string

	mu        sync.Mutex
	state     driving.WatcherState
	queues    map[domain.EventKind][]domain.WatchEvent
	debounced map[string]*debounceEntry

	fsw  *fsnotify.Watcher
	pool *ants.Pool

	wake    chan struct{}
	quit    chan struct{}
	aborted atomic.Bool

	loopWG sync.WaitGroup
	jobWG  sync.WaitGroup

	processed atomic.Uint64
	dropped   atomic.Uint64
	abandoned atomic.Uint64
}

// New creates a watcher for the tree rooted at root. The watcher is
// inert until Start is called.
func New(root string, cfg domain.WatcherConfig, ingestor driving.Ingestor) (*Watcher, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("%w: ingestor is required", domain.ErrInvalidInput)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root %q: %w", domain.ErrInvalidInput, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: watch root %q: %w", domain.ErrInvalidInput, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: watch root %q is not a directory", domain.ErrInvalidInput, abs)
	}

	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("%w: watcher queue_size must be positive", domain.ErrInvalidInput)
	}

	w := &Watcher{
		root:       abs,
		cfg:        cfg,
		ingestor:   ingestor,
		extensions: normaliseExtensions(cfg.IncludeExtensions),
		state:      driving.WatcherStopped,
		queues:     make(map[domain.EventKind][]domain.WatchEvent, len(queueKinds)),
		debounced:  make(map[string]*debounceEntry),
		wake:       make(chan struct{}, 1),
	}
	for _, k := range queueKinds {
		w.queues[k] = nil
	}
	return w, nil
}

// ==================== Lifecycle ====================

// Start performs the initial full scan and begins capturing filesystem
// events. The context bounds the scan only; event processing continues
// in the background until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != driving.WatcherStopped {
		w.mu.Unlock()
		return fmt.Errorf("%w: watcher already started", domain.ErrInvalidInput)
	}
	w.state = driving.WatcherStarting
	w.mu.Unlock()
	logger.State("watcher", string(driving.WatcherStopped), string(driving.WatcherStarting))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.setState(driving.WatcherStopped)
		return fmt.Errorf("create filesystem watcher: %w", err)
	}

	concurrency := w.cfg.IngestConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		fsw.Close()
		w.setState(driving.WatcherStopped)
		return fmt.Errorf("create worker pool: %w", err)
	}

	w.fsw = fsw
	w.pool = pool
	w.quit = make(chan struct{})
	w.aborted.Store(false)

	// The dispatcher runs during the scan so the queues drain while
	// they fill; a large tree would otherwise shed its own scan.
	w.loopWG.Add(1)
	go w.dispatch()

	if err := w.addTree(ctx, w.root); err != nil {
		w.aborted.Store(true)
		close(w.quit)
		fsw.Close()
		w.loopWG.Wait()
		pool.Release()
		w.setState(driving.WatcherStopped)
		return err
	}

	w.loopWG.Add(1)
	go w.eventLoop()

	w.setState(driving.WatcherWatching)
	logger.Info("Watching %s", w.root)
	return nil
}

// Stop drains queued items up to the drain deadline, then stops.
// Items not drained in time are counted as abandoned.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.state != driving.WatcherWatching {
		w.mu.Unlock()
		return fmt.Errorf("%w: watcher is not running", domain.ErrInvalidInput)
	}
	w.state = driving.WatcherDraining
	logger.State("watcher", string(driving.WatcherWatching), string(driving.WatcherDraining))

	// Flush pending debounce windows straight onto the queues so they
	// participate in the drain instead of firing after shutdown.
	pending := make([]domain.WatchEvent, 0, len(w.debounced))
	for path, entry := range w.debounced {
		entry.timer.Stop()
		pending = append(pending, domain.WatchEvent{Path: path, Kind: entry.kind})
		delete(w.debounced, path)
	}
	w.mu.Unlock()

	for _, ev := range pending {
		w.enqueue(ev.Kind, ev.Path)
	}

	if err := w.fsw.Close(); err != nil {
		logger.Warn("Closing filesystem watcher: %v", err)
	}

	deadline := w.cfg.DrainTimeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	drained := make(chan struct{})
	go func() {
		for w.queueDepth() > 0 && !w.aborted.Load() {
			time.Sleep(5 * time.Millisecond)
		}
		w.jobWG.Wait()
		close(drained)
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()
	var stopErr error
	select {
	case <-drained:
	case <-timer.C:
	case <-ctx.Done():
		stopErr = ctx.Err()
	}

	w.aborted.Store(true)
	close(w.quit)
	w.loopWG.Wait()

	if left := w.clearQueues(); left > 0 {
		w.abandoned.Add(uint64(left))
		logger.Warn("Abandoning %d queued items after drain deadline", left)
	}

	w.jobWG.Wait()
	w.pool.Release()
	w.setState(driving.WatcherStopped)
	logger.Info("Watcher stopped")
	return stopErr
}

// Status returns a snapshot of the watcher's state and queues.
func (w *Watcher) Status() driving.WatcherStatus {
	w.mu.Lock()
	state := w.state
	depths := make(map[string]int, len(queueKinds))
	for _, k := range queueKinds {
		depths[k.String()] = len(w.queues[k])
	}
	w.mu.Unlock()

	return driving.WatcherStatus{
		State:       state,
		QueueDepths: depths,
		Dropped:     w.dropped.Load(),
		Processed:   w.processed.Load(),
		Abandoned:   w.abandoned.Load(),
	}
}

func (w *Watcher) setState(s driving.WatcherState) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()
	logger.State("watcher", string(prev), string(s))
}

// ==================== Event capture ====================

// addTree registers watches for every directory under root and
// enqueues every eligible file as created.
func (w *Watcher) addTree(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Scanning %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path != root && (w.excludedDir(d.Name()) || isHidden(d.Name())) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				logger.Warn("Watching %s: %v", path, err)
			}
			return nil
		}

		if w.eligibleFile(path) {
			w.enqueue(domain.EventCreated, path)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer w.loopWG.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Filesystem watch error: %v", err)
		}
	}
}

// handleEvent maps one fsnotify event onto a queued change.
// Creates of directories extend the watch instead of being queued.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.eligiblePath(ev.Name) {
				if err := w.addTree(context.Background(), ev.Name); err != nil {
					logger.Warn("Watching new directory %s: %v", ev.Name, err)
				}
			}
			return
		}
		if w.eligibleFile(ev.Name) {
			w.observe(ev.Name, domain.EventCreated)
		}
	case ev.Op.Has(fsnotify.Write):
		if w.eligibleFile(ev.Name) {
			w.observe(ev.Name, domain.EventModified)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// The path is gone, so only path-level filters apply.
		if w.eligiblePath(ev.Name) {
			w.observe(ev.Name, domain.EventDeleted)
		}
	}
	// Chmod is deliberately ignored.
}

// eligibleFile applies path filters plus the regular-file and size checks.
func (w *Watcher) eligibleFile(path string) bool {
	if !w.eligiblePath(path) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if w.cfg.MaxFileSize > 0 && info.Size() > w.cfg.MaxFileSize {
		logger.Debug("Skipping %s: %d bytes exceeds limit", path, info.Size())
		return false
	}
	return true
}

// observe runs a path through its debounce window. Repeated events for
// the same path within the window collapse into one queued change
// carrying the most recent kind.
func (w *Watcher) observe(path string, kind domain.EventKind) {
	if w.cfg.DebounceWindow <= 0 {
		w.enqueue(kind, path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != driving.WatcherWatching {
		return
	}
	if entry, ok := w.debounced[path]; ok {
		entry.kind = kind
		entry.timer.Reset(w.cfg.DebounceWindow)
		return
	}
	entry := &debounceEntry{kind: kind}
	entry.timer = time.AfterFunc(w.cfg.DebounceWindow, func() {
		w.flushDebounce(path)
	})
	w.debounced[path] = entry
}

func (w *Watcher) flushDebounce(path string) {
	w.mu.Lock()
	entry, ok := w.debounced[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.debounced, path)
	kind := entry.kind
	w.mu.Unlock()

	w.enqueue(kind, path)
}

// ==================== Queues ====================

// enqueue appends to the kind's bounded queue, shedding the oldest
// entry under backpressure rather than blocking the event source.
func (w *Watcher) enqueue(kind domain.EventKind, path string) {
	w.mu.Lock()
	q := w.queues[kind]
	if len(q) >= w.cfg.QueueSize {
		logger.Warn("Queue %s full, dropping oldest entry %s", kind, q[0].Path)
		q = q[1:]
		w.dropped.Add(1)
	}
	w.queues[kind] = append(q, domain.WatchEvent{Path: path, Kind: kind, ObservedAt: time.Now()})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) dequeue() (domain.WatchEvent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, k := range queueKinds {
		if q := w.queues[k]; len(q) > 0 {
			ev := q[0]
			w.queues[k] = q[1:]
			return ev, true
		}
	}
	return domain.WatchEvent{}, false
}

func (w *Watcher) queueDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	depth := 0
	for _, k := range queueKinds {
		depth += len(w.queues[k])
	}
	return depth
}

func (w *Watcher) clearQueues() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cleared := 0
	for _, k := range queueKinds {
		cleared += len(w.queues[k])
		w.queues[k] = nil
	}
	return cleared
}

// ==================== Processing ====================

// dispatch drains the queues into the worker pool until shutdown.
func (w *Watcher) dispatch() {
	defer w.loopWG.Done()
	for {
		if w.aborted.Load() {
			return
		}
		ev, ok := w.dequeue()
		if !ok {
			select {
			case <-w.wake:
				continue
			case <-w.quit:
				return
			}
		}

		w.jobWG.Add(1)
		if err := w.pool.Submit(func() {
			defer w.jobWG.Done()
			w.process(ev)
		}); err != nil {
			w.jobWG.Done()
			w.abandoned.Add(1)
			logger.Warn("Worker pool rejected %s %s: %v", ev.Kind, ev.Path, err)
		}
	}
}

// process hands one change to the ingestion pipeline.
func (w *Watcher) process(ev domain.WatchEvent) {
	ctx := context.Background()

	if ev.Kind == domain.EventDeleted {
		w.processed.Add(1)
		err := w.ingestor.DeleteDocument(ctx, ev.Path)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Removing %s from index: %v", ev.Path, err)
		}
		return
	}

	content, err := os.ReadFile(ev.Path)
	if err != nil {
		// The file can legitimately vanish between event and read.
		if !os.IsNotExist(err) {
			logger.Warn("Reading %s: %v", ev.Path, err)
		}
		return
	}
	if w.cfg.MaxFileSize > 0 && int64(len(content)) > w.cfg.MaxFileSize {
		return
	}

	w.processed.Add(1)
	report, err := w.ingestor.IngestDocuments(ctx, []driving.IngestDocument{
		{Path: ev.Path, Content: string(content)},
	})
	if err != nil {
		logger.Warn("Ingesting %s: %v", ev.Path, err)
		return
	}
	if report.Failed > 0 && len(report.Failures) > 0 {
		logger.Warn("Ingesting %s: %v", ev.Path, report.Failures[0].Err)
	}
}
