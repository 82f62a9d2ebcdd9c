package target

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
)

// Status summarizes the most recent check of a target.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusWarning Status = "WARNING"
	StatusExpired Status = "EXPIRED"
	StatusUnknown Status = "UNKNOWN"
)

// DeriveStatus applies the status rule to a snapshot. A nil or unretrieved
// snapshot is UNKNOWN.
func DeriveStatus(snapshot *CertificateSnapshot, warningDays int) Status {
	switch {
	case snapshot == nil || !snapshot.Retrieved():
		return StatusUnknown
	case !snapshot.Valid:
		return StatusExpired
	case snapshot.DaysRemaining <= warningDays:
		return StatusWarning
	default:
		return StatusValid
	}
}

// CheckResult is the state a single check writes back to its target.
type CheckResult struct {
	CheckedAt   time.Time
	Status      Status
	Certificate *CertificateSnapshot
	Protocols   *ProtocolReport
	Assessment  *SecurityAssessment
	Error       string
}

// MonitoredTarget is a registered hostname under certificate monitoring.
// It serves as the aggregate root for check state and notification history.
type MonitoredTarget struct {
	id                   string
	hostname             string
	name                 string
	description          string
	notificationsEnabled bool
	status               Status
	lastCheck            time.Time
	lastError            string
	certificate          *CertificateSnapshot
	protocols            *ProtocolReport
	assessment           *SecurityAssessment
	notifications        []NotificationRecord
	createdAt            time.Time
	updatedAt            time.Time
}

// NewMonitoredTarget registers a hostname. The hostname is expected to be
// normalized by the caller; only emptiness is checked here.
func NewMonitoredTarget(hostname, name string) (*MonitoredTarget, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return nil, errors.New("target hostname cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = hostname
	}
	now := time.Now().UTC()
	return &MonitoredTarget{
		id:                   uuid.NewString(),
		hostname:             hostname,
		name:                 name,
		notificationsEnabled: true,
		status:               StatusUnknown,
		notifications:        []NotificationRecord{},
		createdAt:            now,
		updatedAt:            now,
	}, nil
}

// Snapshot carries persisted state into Reconstruct.
type Snapshot struct {
	ID                   string
	Hostname             string
	Name                 string
	Description          string
	NotificationsEnabled bool
	Status               Status
	LastCheck            time.Time
	LastError            string
	Certificate          *CertificateSnapshot
	Protocols            *ProtocolReport
	Assessment           *SecurityAssessment
	Notifications        []NotificationRecord
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Reconstruct creates a target from persisted data (for repository use)
func Reconstruct(s Snapshot) *MonitoredTarget {
	status := s.Status
	if status == "" {
		status = StatusUnknown
	}
	notifications := append([]NotificationRecord(nil), s.Notifications...)
	if len(notifications) > constants.MaxNotificationHistory {
		notifications = notifications[:constants.MaxNotificationHistory]
	}
	return &MonitoredTarget{
		id:                   s.ID,
		hostname:             s.Hostname,
		name:                 s.Name,
		description:          s.Description,
		notificationsEnabled: s.NotificationsEnabled,
		status:               status,
		lastCheck:            s.LastCheck,
		lastError:            s.LastError,
		certificate:          s.Certificate,
		protocols:            s.Protocols,
		assessment:           s.Assessment,
		notifications:        notifications,
		createdAt:            s.CreatedAt,
		updatedAt:            s.UpdatedAt,
	}
}

// Business methods

// Rename changes the display name.
func (t *MonitoredTarget) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("target name cannot be empty")
	}
	t.name = name
	t.touch()
	return nil
}

// SetDescription replaces the free-form description.
func (t *MonitoredTarget) SetDescription(description string) {
	t.description = strings.TrimSpace(description)
	t.touch()
}

// EnableNotifications opts the target into scheduled checks.
func (t *MonitoredTarget) EnableNotifications() {
	t.notificationsEnabled = true
	t.touch()
}

// DisableNotifications removes the target from scheduled checks.
func (t *MonitoredTarget) DisableNotifications() {
	t.notificationsEnabled = false
	t.touch()
}

// ApplyCheck writes the outcome of one check in a single step.
// A nil Protocols or Assessment leaves the previous value in place.
func (t *MonitoredTarget) ApplyCheck(result CheckResult) {
	t.lastCheck = result.CheckedAt
	t.status = result.Status
	t.lastError = result.Error
	if result.Certificate != nil {
		snap := *result.Certificate
		t.certificate = &snap
	}
	if result.Protocols != nil {
		report := *result.Protocols
		t.protocols = &report
	}
	if result.Assessment != nil {
		assessment := *result.Assessment
		t.assessment = &assessment
	}
	t.touch()
}

// RecordNotification prepends rec to the history, keeping the most recent entries.
func (t *MonitoredTarget) RecordNotification(rec NotificationRecord) {
	history := make([]NotificationRecord, 0, len(t.notifications)+1)
	history = append(history, rec)
	history = append(history, t.notifications...)
	if len(history) > constants.MaxNotificationHistory {
		history = history[:constants.MaxNotificationHistory]
	}
	t.notifications = history
	t.touch()
}

// HasNotified reports whether the history already holds a record for the
// condition, bucket and calendar day.
func (t *MonitoredTarget) HasNotified(condition Condition, bucket, day string) bool {
	for _, rec := range t.notifications {
		if rec.Condition == condition && rec.Bucket == bucket && rec.Day == day {
			return true
		}
	}
	return false
}

func (t *MonitoredTarget) touch() {
	t.updatedAt = time.Now().UTC()
}

// Getters (exposing internal state)

func (t *MonitoredTarget) ID() string {
	return t.id
}

func (t *MonitoredTarget) Hostname() string {
	return t.hostname
}

func (t *MonitoredTarget) Name() string {
	return t.name
}

func (t *MonitoredTarget) Description() string {
	return t.description
}

func (t *MonitoredTarget) NotificationsEnabled() bool {
	return t.notificationsEnabled
}

func (t *MonitoredTarget) Status() Status {
	return t.status
}

func (t *MonitoredTarget) LastCheck() time.Time {
	return t.lastCheck
}

func (t *MonitoredTarget) LastError() string {
	return t.lastError
}

// Certificate returns a copy of the last snapshot, or nil if never checked.
func (t *MonitoredTarget) Certificate() *CertificateSnapshot {
	if t.certificate == nil {
		return nil
	}
	snap := *t.certificate
	return &snap
}

func (t *MonitoredTarget) Protocols() *ProtocolReport {
	if t.protocols == nil {
		return nil
	}
	report := *t.protocols
	return &report
}

func (t *MonitoredTarget) Assessment() *SecurityAssessment {
	if t.assessment == nil {
		return nil
	}
	assessment := *t.assessment
	return &assessment
}

// Notifications returns the history, most recent first.
func (t *MonitoredTarget) Notifications() []NotificationRecord {
	out := make([]NotificationRecord, len(t.notifications))
	copy(out, t.notifications)
	return out
}

func (t *MonitoredTarget) CreatedAt() time.Time {
	return t.createdAt
}

func (t *MonitoredTarget) UpdatedAt() time.Time {
	return t.updatedAt
}
