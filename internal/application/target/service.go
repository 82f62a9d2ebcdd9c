package target

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-certwatch/internal/checker"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// Service provides application-level target registration operations
type Service struct {
	repo target.Repository
}

// NewService creates a new target service
func NewService(repo target.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// AddTarget normalizes hostname and registers it for monitoring
func (s *Service) AddTarget(ctx context.Context, hostname, name, description string) (*target.MonitoredTarget, error) {
	info, err := checker.ParseTarget(hostname)
	if err != nil {
		return nil, err
	}
	canonical := info.Canonical()

	if _, err := s.repo.FindByHostname(ctx, canonical); err == nil {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrTargetAlreadyExists, canonical)
	} else if !errors.Is(err, sharedErrors.ErrTargetNotFound) {
		return nil, fmt.Errorf("failed to look up target: %w", err)
	}

	t, err := target.NewMonitoredTarget(canonical, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	t.SetDescription(description)

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save target: %w", err)
	}
	return t, nil
}

// GetTarget resolves ref as an ID first and then as a hostname
func (s *Service) GetTarget(ctx context.Context, ref string) (*target.MonitoredTarget, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, sharedErrors.ErrInvalidTargetID
	}

	t, err := s.repo.FindByID(ctx, ref)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sharedErrors.ErrTargetNotFound) {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	info, perr := checker.ParseTarget(ref)
	if perr != nil {
		return nil, sharedErrors.ErrTargetNotFound
	}
	t, err = s.repo.FindByHostname(ctx, info.Canonical())
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return t, nil
}

// ListTargets retrieves all targets
func (s *Service) ListTargets(ctx context.Context) ([]*target.MonitoredTarget, error) {
	targets, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, nil
}

// RemoveTarget deletes a target and its history
func (s *Service) RemoveTarget(ctx context.Context, ref string) (*target.MonitoredTarget, error) {
	t, err := s.GetTarget(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, t.ID()); err != nil {
		return nil, fmt.Errorf("failed to delete target: %w", err)
	}
	return t, nil
}

// SetNotifications turns monitoring of a target on or off
func (s *Service) SetNotifications(ctx context.Context, ref string, enabled bool) (*target.MonitoredTarget, error) {
	return s.modify(ctx, ref, func(t *target.MonitoredTarget) error {
		if enabled {
			t.EnableNotifications()
		} else {
			t.DisableNotifications()
		}
		return nil
	})
}

// UpdateDetails changes the display name and description. Empty values are left unchanged.
func (s *Service) UpdateDetails(ctx context.Context, ref, name, description string) (*target.MonitoredTarget, error) {
	return s.modify(ctx, ref, func(t *target.MonitoredTarget) error {
		if name != "" {
			if err := t.Rename(name); err != nil {
				return err
			}
		}
		if description != "" {
			t.SetDescription(description)
		}
		return nil
	})
}

// modify resolves ref and applies fn to a fresh copy of the stored target, so
// check results written concurrently are not overwritten.
func (s *Service) modify(ctx context.Context, ref string, fn func(*target.MonitoredTarget) error) (*target.MonitoredTarget, error) {
	t, err := s.GetTarget(ctx, ref)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, t.ID(), fn)
	if err != nil {
		if errors.Is(err, sharedErrors.ErrTargetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update target: %w", err)
	}
	return updated, nil
}
