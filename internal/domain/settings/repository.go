package settings

import "context"

// Repository persists the single settings document.
type Repository interface {
	// Load returns the stored settings, or Defaults when none were saved
	Load(ctx context.Context) (Settings, error)

	// Save replaces the stored settings
	Save(ctx context.Context, s Settings) error

	// Update applies fn to the stored settings and saves them as one atomic
	// step. Nothing is saved when fn fails.
	Update(ctx context.Context, fn func(*Settings) error) (Settings, error)
}
