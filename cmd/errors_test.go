package cmd

import (
	"errors"
	"fmt"
	"testing"

	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

func TestTargetNotFoundError(t *testing.T) {
	err := &TargetNotFoundError{Ref: "example.com"}
	if err.Error() != "target example.com not found" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !errors.Is(err, sharedErrors.ErrTargetNotFound) {
		t.Fatal("expected TargetNotFoundError to unwrap to ErrTargetNotFound")
	}
}

func TestCLIError(t *testing.T) {
	if cliError("x", nil) != nil {
		t.Fatal("nil should stay nil")
	}

	var notFound *TargetNotFoundError
	err := cliError("example.com", fmt.Errorf("lookup: %w", sharedErrors.ErrTargetNotFound))
	if !errors.As(err, &notFound) || notFound.Ref != "example.com" {
		t.Fatalf("expected TargetNotFoundError, got %v", err)
	}

	var busy *CheckInProgressError
	if err := cliError("", sharedErrors.ErrAlreadyRunning); !errors.As(err, &busy) {
		t.Fatalf("expected CheckInProgressError, got %v", err)
	}

	other := errors.New("disk full")
	if got := cliError("x", other); got != other {
		t.Fatalf("unrelated errors pass through, got %v", got)
	}
}
