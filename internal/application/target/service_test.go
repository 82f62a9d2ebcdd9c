package target

import (
	"context"
	"errors"
	"testing"

	jsonrepo "github.com/khanhnv2901/seca-certwatch/internal/infrastructure/persistence/json"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := jsonrepo.NewTargetRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewTargetRepository: %v", err)
	}
	return NewService(repo)
}

func TestAddTargetNormalizes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	got, err := svc.AddTarget(ctx, "  https://Example.COM/path ", "", "marketing site")
	if err != nil {
		t.Fatalf("AddTarget: %v", err)
	}
	if got.Hostname() != "example.com" || got.Name() != "example.com" || got.Description() != "marketing site" {
		t.Fatalf("unexpected target %s / %s / %s", got.Hostname(), got.Name(), got.Description())
	}
	if !got.NotificationsEnabled() {
		t.Fatal("new targets are enabled")
	}

	if _, err := svc.AddTarget(ctx, "example.com:443", "", ""); !errors.Is(err, sharedErrors.ErrTargetAlreadyExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := svc.AddTarget(ctx, "example.com:8443", "alt", ""); err != nil {
		t.Fatalf("non-default port is a distinct target: %v", err)
	}
}

func TestAddTargetRejectsMalformed(t *testing.T) {
	svc := newTestService(t)
	for _, raw := range []string{"", "ftp://example.com", "exa mple.com", "example.com:99999"} {
		if _, err := svc.AddTarget(context.Background(), raw, "", ""); err == nil {
			t.Errorf("AddTarget(%q) should fail", raw)
		}
	}
}

func TestGetTargetByIDOrHostname(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	added, err := svc.AddTarget(ctx, "example.com", "Example", "")
	if err != nil {
		t.Fatalf("AddTarget: %v", err)
	}

	for _, ref := range []string{added.ID(), "example.com", "EXAMPLE.com."} {
		got, err := svc.GetTarget(ctx, ref)
		if err != nil || got.ID() != added.ID() {
			t.Errorf("GetTarget(%q) = %v, %v", ref, got, err)
		}
	}
	if _, err := svc.GetTarget(ctx, "other.example.com"); !errors.Is(err, sharedErrors.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
	if _, err := svc.GetTarget(ctx, " "); !errors.Is(err, sharedErrors.ErrInvalidTargetID) {
		t.Fatalf("expected ErrInvalidTargetID, got %v", err)
	}
}

func TestToggleUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	added, _ := svc.AddTarget(ctx, "example.com", "", "")

	disabled, err := svc.SetNotifications(ctx, added.ID(), false)
	if err != nil || disabled.NotificationsEnabled() {
		t.Fatalf("disable: %v", err)
	}
	updated, err := svc.UpdateDetails(ctx, "example.com", "Renamed", "")
	if err != nil || updated.Name() != "Renamed" || updated.NotificationsEnabled() {
		t.Fatalf("update: %v", err)
	}

	if _, err := svc.RemoveTarget(ctx, added.ID()); err != nil {
		t.Fatalf("RemoveTarget: %v", err)
	}
	all, _ := svc.ListTargets(ctx)
	if len(all) != 0 {
		t.Fatalf("expected no targets, got %d", len(all))
	}
	if _, err := svc.RemoveTarget(ctx, added.ID()); !errors.Is(err, sharedErrors.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}
