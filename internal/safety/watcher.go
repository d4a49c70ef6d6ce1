package safety

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/advisor-ai/advisor/internal/logging"
)

// debounceDelay absorbs the bursts of events editors emit when they
// replace a file.
const debounceDelay = 200 * time.Millisecond

// Watcher reloads the rule chain when the rules file changes on disk.
// A reload that fails to parse or compile keeps the current chain.
type Watcher struct {
	watcher *fsnotify.Watcher
	chain   *Chain
	path    string
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// NewWatcher watches path and swaps chain's rules whenever the file
// is rewritten. The containing directory is watched rather than the
// file itself since most editors replace files instead of writing
// them in place.
func NewWatcher(path string, chain *Chain) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		watcher: w,
		chain:   chain,
		path:    abs,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var pending <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Compare basenames; watch paths may come back through
			// symlinked temp directories.
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			pending = time.After(debounceDelay)
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("safety rules watcher error")
		}
	}
}

func (w *Watcher) reload() {
	rules, err := LoadFile(w.path)
	if err != nil {
		logging.Error().Err(err).Str("path", w.path).Msg("safety rules reload failed, keeping current chain")
		return
	}
	if err := w.chain.Replace(rules); err != nil {
		logging.Error().Err(err).Str("path", w.path).Msg("safety rules rejected, keeping current chain")
		return
	}
	logging.Info().Int("rules", len(rules)).Str("path", w.path).Msg("safety rules reloaded")
}

// Stop stops the watcher and waits for the background goroutine.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
