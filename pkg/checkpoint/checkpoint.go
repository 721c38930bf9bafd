package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"xhsdl/pkg/logger"
)

const appDir = "xhsdl"

// Checkpoint represents the progress of a batch over one result list
type Checkpoint struct {
	List      string            `json:"list"`
	RunID     string            `json:"run_id"`
	Processed map[string]string `json:"processed"` // item id -> outcome
	Total     int               `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int               `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

var unsafeListName = regexp.MustCompile(`[^\p{L}\p{N}_.-]+`)

// NewManager creates a checkpoint manager for the named list
func NewManager(list string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	name := unsafeListName.ReplaceAllString(list, "_")
	if name == "" {
		name = "default"
	}

	return &Manager{
		checkpointPath: filepath.Join(checkpointsDir, name+".checkpoint.json"),
		logger:         logger.GetLogger(),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(list, runID string, total int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		List:      list,
		RunID:     runID,
		Processed: make(map[string]string),
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"list": list,
		"path": m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Processed == nil {
		checkpoint.Processed = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"list":       checkpoint.List,
		"processed":  len(checkpoint.Processed),
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"list":      checkpoint.List,
		"processed": len(checkpoint.Processed),
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordItem marks an item as handled and saves the checkpoint
func (m *Manager) RecordItem(checkpoint *Checkpoint, itemID, outcome string) error {
	checkpoint.Processed[itemID] = outcome
	return m.Save(checkpoint)
}

// IsProcessed checks whether an item was handled by an earlier run
func (checkpoint *Checkpoint) IsProcessed(itemID string) bool {
	_, exists := checkpoint.Processed[itemID]
	return exists
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"list":       checkpoint.List,
		"run_id":     checkpoint.RunID,
		"processed":  len(checkpoint.Processed),
		"total":      checkpoint.Total,
		"created_at": checkpoint.CreatedAt,
		"updated_at": checkpoint.UpdatedAt,
		"age":        time.Since(checkpoint.UpdatedAt),
	}, nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, appDir)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", appDir)
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", appDir)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, appDir)
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
