package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/romdo/go-debounce"

	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
)

// DefaultPath is settings.json under the user's config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "digital-library", "settings.json"), nil
}

// FileStore keeps settings as JSON on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load() (Settings, error) {
	s := Default()
	data, err := os.ReadFile(f.path)
	if err != nil {
		// No file yet means defaults.
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("decode %s: %w", f.path, err)
	}
	if err := s.Validate(); err != nil {
		return Default(), err
	}
	return s, nil
}

func (f *FileStore) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

// MemoryStore keeps settings in memory.
type MemoryStore struct {
	mu    sync.Mutex
	saved *Settings
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return Default(), nil
	}
	return *m.saved, nil
}

func (m *MemoryStore) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = &s
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

const (
	saveDebounceWait = 300 * time.Millisecond
	saveMaxWait      = 2 * time.Second
)

// Debounced coalesces bursts of saves (holding "+" to grow spacing, say)
// into one write. Call Flush before exit.
type Debounced struct {
	next Store
	log  logger.Logger

	mu      sync.Mutex
	pending *Settings
	lastErr error

	trigger func()
	cancel  func()
}

func NewDebounced(next Store, log logger.Logger) *Debounced {
	if log == nil {
		log = logger.Discard()
	}
	d := &Debounced{next: next, log: log}
	d.trigger, d.cancel = debounce.NewWithMaxWait(saveDebounceWait, saveMaxWait, func() {
		if err := d.write(); err != nil {
			d.log.Error("Failed to save settings", "error", err)
		}
	})
	return d
}

func (d *Debounced) Load() (Settings, error) {
	d.mu.Lock()
	if d.pending != nil {
		s := *d.pending
		d.mu.Unlock()
		return s, nil
	}
	d.mu.Unlock()
	return d.next.Load()
}

// Save validates s and schedules a write.
func (d *Debounced) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.pending = &s
	d.mu.Unlock()
	d.trigger()
	return nil
}

// Flush cancels the scheduled write and performs it now.
func (d *Debounced) Flush() error {
	d.cancel()
	return d.write()
}

// LastError returns the error from the most recent write.
func (d *Debounced) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Debounced) write() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	err := d.next.Save(*d.pending)
	d.lastErr = err
	if err == nil {
		d.pending = nil
	}
	return err
}
