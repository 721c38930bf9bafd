package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager writes exported files into the output directory and tracks what
// is already there
type Manager struct {
	outputDir string
	emitted   map[string]bool
	mu        sync.RWMutex
}

// emittedExts are the file kinds the manager reports as already present
var emittedExts = map[string]bool{".csv": true, ".zip": true, ".json": true}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		emitted:   make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records the exports already in the output directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && emittedExts[filepath.Ext(entry.Name())] {
			m.emitted[entry.Name()] = true
		}
	}

	return nil
}

// Exists reports whether a file with the given name was already emitted
func (m *Manager) Exists(name string) bool {
	name = filepath.Base(name)

	m.mu.RLock()
	known := m.emitted[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, name)); err == nil {
		m.mu.Lock()
		m.emitted[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes r to name inside the output directory and returns the full
// path. Directory components of name are ignored.
func (m *Manager) Save(name string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	path := filepath.Join(m.outputDir, name)
	if err := writeAtomic(path, r, 0644); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.emitted[name] = true
	m.mu.Unlock()

	return path, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetEmittedCount returns the number of files known in the output directory
func (m *Manager) GetEmittedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.emitted)
}
