package cmd

import (
	"errors"
	"fmt"

	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// TargetNotFoundError indicates a target lookup failure.
type TargetNotFoundError struct {
	Ref string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target %s not found", e.Ref)
}

func (e *TargetNotFoundError) Unwrap() error {
	return sharedErrors.ErrTargetNotFound
}

// CheckInProgressError signals that a batch was already running.
type CheckInProgressError struct{}

func (e *CheckInProgressError) Error() string {
	return "a check run is already in progress, try again when it finishes"
}

func (e *CheckInProgressError) Unwrap() error {
	return sharedErrors.ErrAlreadyRunning
}

// cliError swaps well-known service errors for their CLI forms.
func cliError(ref string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sharedErrors.ErrTargetNotFound):
		return &TargetNotFoundError{Ref: ref}
	case errors.Is(err, sharedErrors.ErrAlreadyRunning):
		return &CheckInProgressError{}
	}
	return err
}
