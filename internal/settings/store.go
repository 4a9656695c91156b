package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/qwikask/qwikask/pkg/logger"
)

// FileName is the settings file inside the data directory.
const FileName = "settings.json"

// Store reads and writes AppSettings to a JSON file. The last good settings
// are cached so a half-written or broken file never reaches callers.
type Store struct {
	path   string
	logger *logger.Logger

	mu      sync.RWMutex
	current AppSettings
}

// Open loads settings from path, creating the file with defaults when absent.
// A file that fails to parse is reported and replaced by defaults in memory only.
func Open(path string, log *logger.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: log.Named("settings"),
	}

	loaded, err := s.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		loaded = Default()
		if err := s.write(loaded); err != nil {
			return nil, err
		}
		s.logger.Info("created default settings", zap.String("path", path))
	case err != nil:
		s.logger.Warn("settings file unreadable, using defaults", zap.String("path", path), zap.Error(err))
		loaded = Default()
	}

	s.current = loaded
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the current settings.
func (s *Store) Get() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists settings.
func (s *Store) Update(next AppSettings) error {
	next = next.withDefaults()
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// Reset restores and persists the defaults.
func (s *Store) Reset() (AppSettings, error) {
	def := Default()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(def); err != nil {
		return AppSettings{}, err
	}
	s.current = def
	return def, nil
}

// Reload re-reads the file. The cached settings change only if the file is valid.
func (s *Store) Reload() (AppSettings, error) {
	loaded, err := s.read()
	if err != nil {
		return s.Get(), err
	}
	if err := loaded.Validate(); err != nil {
		return s.Get(), err
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *Store) read() (AppSettings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return AppSettings{}, err
	}

	var loaded AppSettings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return AppSettings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return loaded.withDefaults(), nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *Store) write(settings AppSettings) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set settings permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
