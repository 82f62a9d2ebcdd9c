package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
	// BatchLockFile is held in the data directory while a batch runs.
	BatchLockFile = "batch.lock"
)

const (
	// DefaultTLSPort is dialed when a target carries no explicit port.
	DefaultTLSPort = "443"
	// RetrieveTimeout bounds a single certificate retrieval attempt.
	RetrieveTimeout = 10 * time.Second
	// ProbeTimeout bounds a single protocol version handshake.
	ProbeTimeout = 5 * time.Second
	// SignalTimeout bounds the HTTPS request used to collect header signals.
	SignalTimeout = 10 * time.Second
)

const (
	// DefaultWarningDays is the expiry warning threshold in days.
	DefaultWarningDays = 30
	// DefaultCronExpression runs the batch once a day at midnight.
	DefaultCronExpression = "0 0 * * *"
	// DefaultTimezone is used for cron evaluation and dedup calendar days.
	DefaultTimezone = "UTC"
	// DefaultLegacyPenalty is subtracted from every score for assumed legacy protocol support.
	DefaultLegacyPenalty = 10
	// MaxNotificationHistory caps the per-target notification list.
	MaxNotificationHistory = 20
	// MinHSTSMaxAge is six months in seconds.
	MinHSTSMaxAge = 15768000
)

const (
	// DefaultConcurrency is the number of targets checked in parallel.
	DefaultConcurrency = 4
	// DefaultRateLimit is the number of handshakes started per second across a batch.
	DefaultRateLimit = 5
	// DedupLedgerSize caps in-memory dedup entries.
	DedupLedgerSize = 4096
	// DedupTTL keeps dedup keys past the end of their calendar day.
	DedupTTL = 48 * time.Hour
)
