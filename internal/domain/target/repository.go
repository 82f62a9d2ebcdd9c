package target

import "context"

// Repository defines the interface for target persistence
type Repository interface {
	// Save persists a target, replacing any existing record with the same ID
	Save(ctx context.Context, target *MonitoredTarget) error

	// Update applies fn to the stored target and persists the result as one
	// atomic step. It returns ErrTargetNotFound if the target no longer exists.
	Update(ctx context.Context, id string, fn func(*MonitoredTarget) error) (*MonitoredTarget, error)

	// FindByID retrieves a target by its ID
	FindByID(ctx context.Context, id string) (*MonitoredTarget, error)

	// FindByHostname retrieves a target by its normalized hostname
	FindByHostname(ctx context.Context, hostname string) (*MonitoredTarget, error)

	// FindAll retrieves all targets in registration order
	FindAll(ctx context.Context) ([]*MonitoredTarget, error)

	// Delete removes a target by its ID
	Delete(ctx context.Context, id string) error
}
