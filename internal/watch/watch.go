// Package watch reports migration conflicts as they appear and disappear
// in a set of app migration directories.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Mschirtzinger/migfix/internal/graph"
	"github.com/Mschirtzinger/migfix/internal/migration"
)

// DefaultDebounce is how long a directory must stay quiet before its graph
// is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Event is the conflict state of one app after a change settled.
type Event struct {
	App      string
	Leaves   []string
	Conflict bool
}

// Options configures a Watcher.
type Options struct {
	Extension string
	Debounce  time.Duration
	Logger    *slog.Logger
}

// Watcher watches app migration directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	apps     map[string]graph.Location // keyed by cleaned directory
	ext      string
	debounce time.Duration
	logger   *slog.Logger

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopped bool

	// last known leaf set per app label
	state map[string][]string
}

// New creates a watcher over apps. It must be started with Start before it
// emits events.
func New(apps []graph.Location, opts Options) (*Watcher, error) {
	if opts.Extension == "" {
		opts.Extension = migration.DefaultExtension
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	byDir := make(map[string]graph.Location, len(apps))
	for _, a := range apps {
		byDir[filepath.Clean(a.Dir)] = a
	}

	return &Watcher{
		watcher:  fw,
		apps:     byDir,
		ext:      opts.Extension,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		events:   make(chan Event, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
		state:    make(map[string][]string),
	}, nil
}

// Start watches every app directory. The first event for each app reports
// its state at start.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running || w.stopped {
		return fmt.Errorf("watcher already started")
	}

	var added []string
	for dir := range w.apps {
		if err := w.watcher.Add(dir); err != nil {
			for _, d := range added {
				_ = w.watcher.Remove(d)
			}
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		added = append(added, dir)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops watching and closes the Events and Errors channels. It blocks
// until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	wasRunning := w.running
	w.running = false
	w.stopped = true
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	if wasRunning {
		w.wg.Wait()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of conflict state changes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watch and load errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning reports whether the watcher is started and not stopped.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	labels := make([]string, 0, len(w.apps))
	dirs := make(map[string]graph.Location, len(w.apps))
	for _, a := range w.apps {
		labels = append(labels, a.Label)
		dirs[a.Label] = a
	}
	sort.Strings(labels)
	for _, label := range labels {
		if !w.evaluate(dirs[label], true) {
			return
		}
	}

	pending := make(map[string]graph.Location)
	var timer *time.Timer
	var settle <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			app, ok := w.relevant(event)
			if !ok {
				continue
			}
			pending[app.Label] = app
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			settle = timer.C

		case <-settle:
			settle = nil
			changed := make([]string, 0, len(pending))
			for label := range pending {
				changed = append(changed, label)
			}
			sort.Strings(changed)
			for _, label := range changed {
				if !w.evaluate(pending[label], false) {
					return
				}
			}
			clear(pending)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !w.sendErr(err) {
				return
			}
		}
	}
}

// relevant maps an fsnotify event to the app whose migrations it touches.
// Chmod-only events and files without the migration extension are ignored.
func (w *Watcher) relevant(event fsnotify.Event) (graph.Location, bool) {
	if event.Op == fsnotify.Chmod || !strings.HasSuffix(event.Name, w.ext) {
		return graph.Location{}, false
	}
	app, ok := w.apps[filepath.Dir(filepath.Clean(event.Name))]
	return app, ok
}

// evaluate reloads app and emits an event when its leaf set changed, or
// always when initial is set. It returns false once the watcher is stopping.
func (w *Watcher) evaluate(loc graph.Location, initial bool) bool {
	app, err := graph.Load(loc.Label, loc.Dir, w.ext)
	if err != nil {
		return w.sendErr(fmt.Errorf("load %s: %w", loc.Label, err))
	}

	leaves := app.Leaves()
	if prev, seen := w.state[loc.Label]; seen && !initial && reflect.DeepEqual(prev, leaves) {
		return true
	}
	w.state[loc.Label] = leaves

	ev := Event{App: loc.Label, Leaves: leaves, Conflict: len(leaves) > 1}
	w.logger.Debug("migration state", "app", ev.App, "leaves", ev.Leaves, "conflict", ev.Conflict)

	select {
	case w.events <- ev:
		return true
	case <-w.done:
		return false
	}
}

func (w *Watcher) sendErr(err error) bool {
	select {
	case w.errors <- err:
		return true
	case <-w.done:
		return false
	}
}
