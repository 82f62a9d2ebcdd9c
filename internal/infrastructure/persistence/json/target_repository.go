package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/security"
)

const timeLayout = time.RFC3339Nano

// targetDTO is the data transfer object for JSON serialization
type targetDTO struct {
	ID                   string                      `json:"id"`
	Hostname             string                      `json:"hostname"`
	Name                 string                      `json:"name"`
	Description          string                      `json:"description,omitempty"`
	NotificationsEnabled bool                        `json:"notifications_enabled"`
	Status               string                      `json:"status"`
	LastCheck            string                      `json:"last_check,omitempty"`
	LastError            string                      `json:"last_error,omitempty"`
	Certificate          *target.CertificateSnapshot `json:"certificate,omitempty"`
	Protocols            *target.ProtocolReport      `json:"protocols,omitempty"`
	Assessment           *target.SecurityAssessment  `json:"assessment,omitempty"`
	Notifications        []target.NotificationRecord `json:"notifications"`
	CreatedAt            string                      `json:"created_at"`
	UpdatedAt            string                      `json:"updated_at"`
}

// TargetRepository implements the target.Repository interface using JSON file storage.
// Writers hold the mutex and a lock file, so a read-modify-write cycle is
// atomic against other goroutines and other certwatch processes.
type TargetRepository struct {
	filePath string
	mu       sync.RWMutex
	lock     *fileLock
}

// NewTargetRepository creates a new JSON-based target repository
func NewTargetRepository(dataDir string) (*TargetRepository, error) {
	filePath, err := prepareFile(dataDir, "targets.json")
	if err != nil {
		return nil, err
	}

	repo := &TargetRepository{filePath: filePath, lock: newFileLock(filePath)}

	err = repo.lock.with(context.Background(), func() error {
		if _, err := os.Stat(filePath); !os.IsNotExist(err) {
			return nil
		}
		return repo.saveToFile([]targetDTO{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize targets file: %w", err)
	}

	return repo, nil
}

// Save inserts a new target or replaces the record with the same ID
func (r *TargetRepository) Save(ctx context.Context, t *target.MonitoredTarget) error {
	dto := toTargetDTO(t)
	return r.write(ctx, func(targets []targetDTO) ([]targetDTO, error) {
		for i, existing := range targets {
			if existing.ID == dto.ID {
				targets[i] = dto
				return targets, nil
			}
			if existing.Hostname == dto.Hostname {
				return nil, fmt.Errorf("%w: %s", sharedErrors.ErrTargetAlreadyExists, dto.Hostname)
			}
		}
		return append(targets, dto), nil
	})
}

// Update applies fn to a freshly loaded copy of the target and stores the
// result. It returns ErrTargetNotFound when the target no longer exists, and
// stores nothing when fn fails.
func (r *TargetRepository) Update(ctx context.Context, id string, fn func(*target.MonitoredTarget) error) (*target.MonitoredTarget, error) {
	var updated *target.MonitoredTarget
	err := r.write(ctx, func(targets []targetDTO) ([]targetDTO, error) {
		for i, dto := range targets {
			if dto.ID != id {
				continue
			}
			t, err := fromTargetDTO(dto)
			if err != nil {
				return nil, fmt.Errorf("failed to convert target %s: %w", id, err)
			}
			if err := fn(t); err != nil {
				return nil, err
			}
			targets[i] = toTargetDTO(t)
			updated = t
			return targets, nil
		}
		return nil, sharedErrors.ErrTargetNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindByID retrieves a target by its ID
func (r *TargetRepository) FindByID(ctx context.Context, id string) (*target.MonitoredTarget, error) {
	return r.findOne(func(dto targetDTO) bool { return dto.ID == id })
}

// FindByHostname retrieves a target by its normalized hostname
func (r *TargetRepository) FindByHostname(ctx context.Context, hostname string) (*target.MonitoredTarget, error) {
	return r.findOne(func(dto targetDTO) bool { return dto.Hostname == hostname })
}

// FindAll retrieves all targets
func (r *TargetRepository) FindAll(ctx context.Context) ([]*target.MonitoredTarget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.loadFromFile()
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	result := make([]*target.MonitoredTarget, 0, len(targets))
	for _, dto := range targets {
		t, err := fromTargetDTO(dto)
		if err != nil {
			return nil, fmt.Errorf("failed to convert target %s: %w", dto.ID, err)
		}
		result = append(result, t)
	}
	return result, nil
}

// Delete removes a target by its ID
func (r *TargetRepository) Delete(ctx context.Context, id string) error {
	return r.write(ctx, func(targets []targetDTO) ([]targetDTO, error) {
		for i, dto := range targets {
			if dto.ID == id {
				return append(targets[:i], targets[i+1:]...), nil
			}
		}
		return nil, sharedErrors.ErrTargetNotFound
	})
}

// Helper methods

// write runs one locked load, mutate and save cycle. Errors from mutate are
// returned unwrapped and leave the file untouched.
func (r *TargetRepository) write(ctx context.Context, mutate func([]targetDTO) ([]targetDTO, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lock.with(ctx, func() error {
		targets, err := r.loadFromFile()
		if err != nil {
			return fmt.Errorf("failed to load targets: %w", err)
		}
		next, err := mutate(targets)
		if err != nil {
			return err
		}
		if err := r.saveToFile(next); err != nil {
			return fmt.Errorf("failed to save targets: %w", err)
		}
		return nil
	})
}

func (r *TargetRepository) findOne(match func(targetDTO) bool) (*target.MonitoredTarget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets, err := r.loadFromFile()
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	for _, dto := range targets {
		if match(dto) {
			return fromTargetDTO(dto)
		}
	}
	return nil, sharedErrors.ErrTargetNotFound
}

func (r *TargetRepository) loadFromFile() ([]targetDTO, error) {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []targetDTO{}, nil
		}
		return nil, err
	}

	var targets []targetDTO
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return targets, nil
}

func (r *TargetRepository) saveToFile(targets []targetDTO) error {
	data, err := json.MarshalIndent(targets, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}
	return writeFileAtomic(r.filePath, data)
}

func toTargetDTO(t *target.MonitoredTarget) targetDTO {
	return targetDTO{
		ID:                   t.ID(),
		Hostname:             t.Hostname(),
		Name:                 t.Name(),
		Description:          t.Description(),
		NotificationsEnabled: t.NotificationsEnabled(),
		Status:               string(t.Status()),
		LastCheck:            formatTime(t.LastCheck()),
		LastError:            t.LastError(),
		Certificate:          t.Certificate(),
		Protocols:            t.Protocols(),
		Assessment:           t.Assessment(),
		Notifications:        t.Notifications(),
		CreatedAt:            formatTime(t.CreatedAt()),
		UpdatedAt:            formatTime(t.UpdatedAt()),
	}
}

func fromTargetDTO(dto targetDTO) (*target.MonitoredTarget, error) {
	lastCheck, err := parseTime(dto.LastCheck)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last check time: %w", err)
	}
	createdAt, err := parseTime(dto.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created at time: %w", err)
	}
	updatedAt, err := parseTime(dto.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated at time: %w", err)
	}

	return target.Reconstruct(target.Snapshot{
		ID:                   dto.ID,
		Hostname:             dto.Hostname,
		Name:                 dto.Name,
		Description:          dto.Description,
		NotificationsEnabled: dto.NotificationsEnabled,
		Status:               target.Status(dto.Status),
		LastCheck:            lastCheck,
		LastError:            dto.LastError,
		Certificate:          dto.Certificate,
		Protocols:            dto.Protocols,
		Assessment:           dto.Assessment,
		Notifications:        dto.Notifications,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}), nil
}

func prepareFile(dataDir, name string) (string, error) {
	if dataDir == "" {
		return "", fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dataDir, constants.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	filePath, err := security.DocumentPath(dataDir, name)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	return filePath, nil
}

// writeFileAtomic replaces path so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.DefaultFilePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
