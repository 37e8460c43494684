package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")
)

// Checkpoint records the last dataset built for a season and kind.
type Checkpoint struct {
	Season     string    `json:"season"`
	Kind       string    `json:"kind"`
	Watermark  int       `json:"max_finished_gw"`
	RunID      string    `json:"run_id"`
	ConfigHash string    `json:"config_hash,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	URI        string    `json:"uri,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Manager handles checkpoint persistence and retrieval.
type Manager interface {
	// Load reads the checkpoint for a season and kind.
	Load(ctx context.Context, season, kind string) (*Checkpoint, error)

	// Save persists the checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error
}

// Config configures the checkpoint manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for checkpoint files
}

// NewManager creates a checkpoint manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{dir: cfg.Dir}, nil
}

// fileManager persists checkpoints to local files.
type fileManager struct {
	dir string
}

func (m *fileManager) checkpointPath(season, kind string) string {
	safe := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(season)
	return filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s_%s.json", safe, kind))
}

// Load reads the checkpoint from file.
func (m *fileManager) Load(ctx context.Context, season, kind string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath(season, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}
	return &cp, nil
}

// Save persists the checkpoint to file.
func (m *fileManager) Save(ctx context.Context, cp *Checkpoint) error {
	path := m.checkpointPath(cp.Season, cp.Kind)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	return nil
}

// noopManager is a no-op checkpoint manager for when checkpointing is disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context, season, kind string) (*Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

func (m *noopManager) Save(ctx context.Context, cp *Checkpoint) error {
	return nil
}

// UpToDate reports whether the stored checkpoint was built at watermark with
// the configuration hashed as configHash.
func UpToDate(ctx context.Context, m Manager, season, kind string, watermark int, configHash string) (bool, error) {
	cp, err := m.Load(ctx, season, kind)
	if errors.Is(err, ErrNoCheckpoint) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cp.Watermark == watermark && cp.ConfigHash == configHash, nil
}
