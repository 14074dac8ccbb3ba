package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads path on write events and hands the embedding
// application only the fields it is safe to change without a restart:
// quota and retention. Fields that shape how the active session was
// opened (output_dir, encryption key path) are read once at startup and
// never touched by a reload.
type Watcher struct {
	path    string
	logger  *logrus.Logger
	fsw     *fsnotify.Watcher
	onQuota func(RecorderConfig)

	mu  sync.Mutex
	cur RecorderConfig
}

// NewWatcher starts watching path and invokes onQuota with the
// reloaded Recorder quota/retention fields whenever the file changes.
// onQuota is also called once immediately with the values already
// loaded into initial.
func NewWatcher(path string, initial RecorderConfig, logger *logrus.Logger, onQuota func(RecorderConfig)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, fsw: fsw, onQuota: onQuota, cur: initial}
	onQuota(initial)

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("config reload failed, keeping previous values")
		return
	}

	w.mu.Lock()
	changed := cfg.Recorder.SizeCapBytes != w.cur.SizeCapBytes ||
		cfg.Recorder.MaxLogCount != w.cur.MaxLogCount ||
		cfg.Recorder.MinFreeBytes != w.cur.MinFreeBytes
	w.cur.SizeCapBytes = cfg.Recorder.SizeCapBytes
	w.cur.MaxLogCount = cfg.Recorder.MaxLogCount
	w.cur.MinFreeBytes = cfg.Recorder.MinFreeBytes
	snapshot := w.cur
	w.mu.Unlock()

	if changed {
		w.logger.Info("quota/retention configuration reloaded")
		w.onQuota(snapshot)
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
