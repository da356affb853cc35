package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the directory a Config was loaded from and logs as
// soon as the file itself is written, independent of the control loop's
// own mtime poll (loop.go's tick calls Reload() every 10ms already).
// It watches the directory rather than the file directly because the
// common ways of replacing a config in place (editors, scp, an atomic
// rename like Save does) don't always leave the original inode's watch
// intact.
//
// Watcher never mutates the Config itself; only the control loop's own
// goroutine does that, via Reload(). This exists purely so an operator
// tailing logs sees "picked up an external edit" the moment the write
// happens, rather than waiting to notice the next poll's log line.
type Watcher struct {
	fsw *fsnotify.Watcher
	cfg *Config
}

// Watch starts watching cfg's directory. The returned Watcher must be
// closed to stop the background goroutine.
func Watch(cfg *Config) (*Watcher, error) {
	if cfg.path == "" {
		return nil, fmt.Errorf("config: cannot watch a config with no associated path")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	dir := filepath.Dir(cfg.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	w := &Watcher{fsw: fsw, cfg: cfg}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	target := filepath.Clean(w.cfg.path)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Printf("config: detected external change to %s, reload will apply on next tick", w.cfg.path)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
