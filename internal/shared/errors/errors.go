package errors

import "errors"

// Domain errors
var (
	// Target errors
	ErrTargetNotFound      = errors.New("target not found")
	ErrTargetAlreadyExists = errors.New("target already exists")
	ErrInvalidHostname     = errors.New("invalid hostname")
	ErrEmptyHostname       = errors.New("hostname cannot be empty")
	ErrInvalidTargetID     = errors.New("invalid target ID")

	// Check errors
	ErrNetwork         = errors.New("network error")
	ErrParse           = errors.New("unable to parse certificate data")
	ErrNoCertificate   = errors.New("no peer certificate presented")
	ErrRetrieval       = errors.New("certificate retrieval failed")
	ErrAlreadyRunning  = errors.New("check already running")
	ErrSchedulerClosed = errors.New("scheduler is not running")

	// Settings errors
	ErrInvalidSettings = errors.New("invalid settings")
	ErrInvalidCron     = errors.New("invalid cron expression")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidChannel  = errors.New("invalid notification channel")

	// Notification errors
	ErrNotifierNotConfigured = errors.New("notifier not configured")
	ErrDeliveryFailed        = errors.New("notification delivery failed")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
)
