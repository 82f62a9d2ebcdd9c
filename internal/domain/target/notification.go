package target

import "time"

// Condition is the kind of event that can trigger a notification.
type Condition string

const (
	ConditionExpiryWarning    Condition = "ssl_expiry_warning"
	ConditionExpired          Condition = "ssl_expired"
	ConditionRenewed          Condition = "ssl_renewed"
	ConditionCheckFailed      Condition = "ssl_check_failed"
	ConditionInsecureProtocol Condition = "insecure_protocol"
	ConditionSecurityWarning  Condition = "security_warning"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionExpiryWarning, ConditionExpired, ConditionRenewed,
		ConditionCheckFailed, ConditionInsecureProtocol, ConditionSecurityWarning:
		return true
	}
	return false
}

// NotificationRecord is one entry in a target's notification history.
type NotificationRecord struct {
	Condition     Condition `json:"condition"`
	Timestamp     time.Time `json:"timestamp"`
	DaysRemaining int       `json:"days_remaining"`
	Bucket        string    `json:"bucket,omitempty"`
	Day           string    `json:"day"`
	Message       string    `json:"message"`
	Delivered     bool      `json:"delivered"`
}
