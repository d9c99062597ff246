package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/GappelSolutions/lazyops/pkg/watcher"
)

// Watcher reloads the config file when it changes on disk and delivers
// the result on Changes. Editors that replace-on-save (rename into
// place) are handled by watching the parent directory.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce *watcher.Debouncer
	changes  chan *Config
	done     chan struct{}
}

// WatchFile starts watching one config file path.
func WatchFile(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		fsw:      fsw,
		debounce: watcher.NewDebouncer(0),
		changes:  make(chan *Config, 1),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes delivers each successfully reloaded config. Reload failures
// (partially written files, parse errors) are dropped; the previous
// config stays in effect.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	w.debounce.Cancel()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.debounce.Trigger(w.reload)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		return
	}
	select {
	case w.changes <- cfg:
	case <-w.done:
	default:
		// A pending unconsumed config is superseded.
		select {
		case <-w.changes:
		default:
		}
		select {
		case w.changes <- cfg:
		default:
		}
	}
}
