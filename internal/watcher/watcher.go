package watcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
	"example.com/portaria/internal/runtimestatus"
)

// Event names, one per watched store.
const (
	EventAccess  = "dadosend"
	EventParcels = "encomendas"
)

const (
	DefaultPollInterval = time.Second
	DefaultDebounce     = 350 * time.Millisecond
)

const action = "watcher"

// Handler rebuilds the derived files when a store changes.
type Handler interface {
	RebuildAll(ctx context.Context) error
	RebuildForIdentity(ctx context.Context, identity string) error
	RebuildParcels(ctx context.Context) error
}

// Options configures a Watcher.
type Options struct {
	AccessPath   string
	ParcelsPath  string
	PollInterval time.Duration
	Debounce     time.Duration
	// FSNotify adds filesystem notifications on top of polling.
	FSNotify bool
	Store    *jsonstore.Store
	Handler  Handler
	Reporter runtimestatus.Sink
	Now      func() time.Time
}

type watchedFile struct {
	name string
	path string
}

type fileState struct {
	mtime       time.Time
	fingerprint string
}

// Watcher polls the end-stores and drives the rebuilds. All state is owned
// by the goroutine running Run.
type Watcher struct {
	files        []watchedFile
	pollInterval time.Duration
	debounce     time.Duration
	fsnotify     bool
	store        *jsonstore.Store
	handler      Handler
	reporter     runtimestatus.Sink
	now          func() time.Time

	state   map[string]fileState
	pending map[string]time.Time
	queue   []string
}

// New creates a watcher
func New(opts Options) *Watcher {
	w := &Watcher{
		files: []watchedFile{
			{name: EventAccess, path: opts.AccessPath},
			{name: EventParcels, path: opts.ParcelsPath},
		},
		pollInterval: opts.PollInterval,
		debounce:     opts.Debounce,
		fsnotify:     opts.FSNotify,
		store:        opts.Store,
		handler:      opts.Handler,
		reporter:     opts.Reporter,
		now:          opts.Now,
		state:        map[string]fileState{},
		pending:      map[string]time.Time{},
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.store == nil {
		w.store = jsonstore.New(jsonstore.Options{Reporter: opts.Reporter})
	}
	if w.reporter == nil {
		w.reporter = runtimestatus.Discard
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run loops until ctx is done. The current content of the stores is taken
// as the baseline; only later changes trigger rebuilds.
func (w *Watcher) Run(ctx context.Context) error {
	w.prime()

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.fsnotify {
		if fw, err := w.notifications(); err != nil {
			log.Warn().Err(err).Msg("Filesystem notifications unavailable, polling only")
		} else {
			defer fw.Close()
			fsEvents, fsErrors = fw.Events, fw.Errors
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var debounceC <-chan time.Time
	w.reporter.Report(action, models.RuntimeStarted, "loop", map[string]interface{}{
		"poll_interval": w.pollInterval.String(),
		"debounce":      w.debounce.String(),
		"fsnotify":      fsEvents != nil,
	})
	log.Info().Dur("poll_interval", w.pollInterval).Dur("debounce", w.debounce).Msg("Watcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Watcher stopped")
			return nil
		case <-ticker.C:
		case <-debounceC:
			debounceC = nil
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if !w.tracks(ev.Name) {
				continue
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			log.Warn().Err(err).Msg("Filesystem notification error")
			continue
		}

		w.step(ctx)
		if len(w.pending) > 0 && debounceC == nil {
			debounceC = time.After(w.debounce)
		}
	}
}

// step runs one poll and drain. A panic is logged and reported; the loop
// carries on with the next tick.
func (w *Watcher) step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Watcher iteration panicked")
			w.reporter.Report(action, models.RuntimeError, "loop_panic", map[string]interface{}{"panic": r})
		}
	}()
	now := w.now()
	w.poll(now)
	w.drain(ctx, now)
}

func (w *Watcher) notifications() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := map[string]bool{}
	for _, f := range w.files {
		dirs[filepath.Dir(f.path)] = true
	}
	// Stores are replaced by rename, so the directories are watched.
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return fw, nil
}

func (w *Watcher) tracks(name string) bool {
	for _, f := range w.files {
		if filepath.Clean(name) == filepath.Clean(f.path) {
			return true
		}
	}
	return false
}

func (w *Watcher) prime() {
	for _, f := range w.files {
		w.state[f.name] = readState(f.path)
	}
}

// poll schedules an event for every file whose mtime and fingerprint both
// changed since the last look. A repeated change restarts its debounce.
func (w *Watcher) poll(now time.Time) {
	for _, f := range w.files {
		prev := w.state[f.name]
		cur := readState(f.path)
		if cur.mtime.Equal(prev.mtime) {
			continue
		}
		w.state[f.name] = cur
		if cur.fingerprint == prev.fingerprint {
			continue
		}
		w.pending[f.name] = now
		log.Debug().Str("event", f.name).Str("path", f.path).Msg("Store change detected")
	}
}

// drain moves the debounced events to the queue and dispatches each event
// name once. A pending access event subsumes the parcels event.
func (w *Watcher) drain(ctx context.Context, now time.Time) {
	type due struct {
		name string
		at   time.Time
	}
	var ready []due
	for name, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, due{name, at})
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if !ready[i].at.Equal(ready[j].at) {
			return ready[i].at.Before(ready[j].at)
		}
		return ready[i].name < ready[j].name
	})
	for _, d := range ready {
		delete(w.pending, d.name)
		w.queue = append(w.queue, d.name)
	}
	if len(w.queue) == 0 {
		return
	}

	batch := w.queue
	w.queue = nil

	seen := map[string]bool{}
	for _, name := range batch {
		seen[name] = true
	}
	dispatched := map[string]bool{}
	for _, name := range batch {
		if dispatched[name] || (name == EventParcels && seen[EventAccess]) {
			continue
		}
		dispatched[name] = true
		w.dispatch(ctx, name)
	}
}

func (w *Watcher) dispatch(ctx context.Context, name string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", name).Str("stack", string(debug.Stack())).Msg("Rebuild panicked")
			w.reporter.Report(action, models.RuntimeError, "dispatch_panic", map[string]interface{}{"event": name, "panic": r})
		}
	}()

	var err error
	stage := name
	switch name {
	case EventAccess:
		if identity := w.lastIdentity(); identity != "" {
			err = w.handler.RebuildForIdentity(ctx, identity)
		} else {
			stage = "dadosend_full"
			err = w.handler.RebuildAll(ctx)
		}
	case EventParcels:
		err = w.handler.RebuildParcels(ctx)
	}

	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("Rebuild failed")
		w.reporter.Report(action, models.RuntimeError, stage, err)
		return
	}
	w.reporter.Report(action, models.RuntimeOK, stage, nil)
}

// lastIdentity returns the identity of the newest access record, or "".
func (w *Watcher) lastIdentity() string {
	data, err := w.store.ReadRaw(w.files[0].path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read access end-store")
		return ""
	}
	return LastIdentity(data)
}

// readState returns the mtime and SHA-1 of path; a missing file has zero state.
func readState(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileState{mtime: info.ModTime()}
	}
	sum := sha1.Sum(data)
	return fileState{mtime: info.ModTime(), fingerprint: hex.EncodeToString(sum[:])}
}
