// Package logidx persists the monotonically increasing lifetime index
// handed to each new session, so a reboot never reuses an index and the
// rotation filename pattern's ordering stays meaningful across restarts
// (§4.3, §4.4).
package logidx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/ferr"
)

// Manager hands out the next lifetime index and persists it.
type Manager interface {
	Next() int
	Load() error
}

type state struct {
	NextIdx int `json:"next_idx"`
}

// FileManager is a Manager backed by a JSON file, written with a
// temp-file-then-rename so a crash mid-write never corrupts the
// persisted index.
type FileManager struct {
	mu     sync.Mutex
	path   string
	logger *logrus.Logger
	next   int
}

// NewFileManager builds a FileManager persisting to <dir>/log_idx.json.
func NewFileManager(dir string, logger *logrus.Logger) *FileManager {
	return &FileManager{path: filepath.Join(dir, "log_idx.json"), logger: logger}
}

// Load reads the persisted index, defaulting to 0 if the file doesn't
// exist yet.
func (m *FileManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.next = 0
			return nil
		}
		return ferr.IO("logidx", "Load", err)
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return ferr.Format("logidx", "Load", "corrupt log index file").Wrap(err)
	}
	m.next = s.NextIdx
	return nil
}

// Next returns the next lifetime index and persists the increment
// before returning, so a crash before the caller uses it still leaves
// the index advanced (never reused).
func (m *FileManager) Next() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.next
	m.next++
	if err := m.save(); err != nil {
		m.logger.WithError(err).Warn("failed to persist log index")
	}
	return idx
}

func (m *FileManager) save() error {
	data, err := json.Marshal(state{NextIdx: m.next})
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
