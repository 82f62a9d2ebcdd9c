package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// SettingsRepository stores the settings document in settings.json.
type SettingsRepository struct {
	filePath string
	defaults settings.Settings
	mu       sync.RWMutex
	lock     *fileLock
}

// NewSettingsRepository creates a settings repository. defaults are returned by
// Load until the first Save.
func NewSettingsRepository(dataDir string, defaults settings.Settings) (*SettingsRepository, error) {
	filePath, err := prepareFile(dataDir, "settings.json")
	if err != nil {
		return nil, err
	}
	return &SettingsRepository{filePath: filePath, defaults: defaults, lock: newFileLock(filePath)}, nil
}

// Path returns the location of the settings document.
func (r *SettingsRepository) Path() string {
	return r.filePath
}

// Load returns the stored settings. Fields missing from the file keep their default values.
func (r *SettingsRepository) Load(ctx context.Context) (settings.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read()
}

// Save replaces the settings document
func (r *SettingsRepository) Save(ctx context.Context, s settings.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lock.with(ctx, func() error { return r.write(s) })
}

// Update applies fn to the stored document and saves the result while holding
// the write lock. The document is left untouched when fn fails.
func (r *SettingsRepository) Update(ctx context.Context, fn func(*settings.Settings) error) (settings.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated settings.Settings
	err := r.lock.with(ctx, func() error {
		current, err := r.read()
		if err != nil {
			return err
		}
		if err := fn(&current); err != nil {
			return err
		}
		if err := r.write(current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	return updated, err
}

func (r *SettingsRepository) read() (settings.Settings, error) {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return r.defaults, nil
		}
		return settings.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	s := r.defaults
	if err := json.Unmarshal(data, &s); err != nil {
		return settings.Settings{}, fmt.Errorf("%w: settings: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return s, nil
}

func (r *SettingsRepository) write(s settings.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: settings: %v", sharedErrors.ErrSerializationFailed, err)
	}
	if err := writeFileAtomic(r.filePath, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
