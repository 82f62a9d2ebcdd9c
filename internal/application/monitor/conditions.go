package monitor

import (
	"github.com/khanhnv2901/seca-certwatch/internal/application/notify"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
)

// Event is a condition raised by one check together with its rendering context.
type Event struct {
	Condition target.Condition
	Context   notify.NotifyContext
}

// Findings with their own condition are not repeated as security warnings.
var coveredFindings = map[string]bool{
	target.FindingInvalidDate:      true,
	target.FindingInsecureProtocol: true,
}

// DetectConditions lists the conditions raised by result. previous is the
// certificate held before the check and is used to detect renewals.
func DetectConditions(previous *target.CertificateSnapshot, result target.CheckResult, s settings.Settings) []Event {
	cert := result.Certificate
	if cert == nil || !cert.Retrieved() {
		reason := result.Error
		if reason == "" && cert != nil {
			reason = cert.Error
		}
		return []Event{{
			Condition: target.ConditionCheckFailed,
			Context:   notify.NotifyContext{WarningDays: s.WarningDays, Error: reason},
		}}
	}

	base := notify.NotifyContext{
		DaysRemaining: cert.DaysRemaining,
		WarningDays:   s.WarningDays,
		NotAfter:      cert.NotAfter,
	}

	var events []Event
	switch {
	case !cert.Valid:
		events = append(events, Event{Condition: target.ConditionExpired, Context: base})
	case cert.DaysRemaining <= s.WarningDays:
		events = append(events, Event{Condition: target.ConditionExpiryWarning, Context: base})
	}

	if previous != nil && previous.Retrieved() && cert.NotAfter.After(previous.NotAfter) {
		events = append(events, Event{Condition: target.ConditionRenewed, Context: base})
	}

	if result.Protocols != nil && result.Protocols.HasInsecure() {
		nc := base
		nc.Insecure = result.Protocols.Insecure
		events = append(events, Event{Condition: target.ConditionInsecureProtocol, Context: nc})
	}

	if s.EnableSecurityCheck && result.Assessment != nil && needsSecurityWarning(*result.Assessment) {
		nc := base
		nc.Assessment = result.Assessment
		events = append(events, Event{Condition: target.ConditionSecurityWarning, Context: nc})
	}

	return events
}

func needsSecurityWarning(a target.SecurityAssessment) bool {
	for _, f := range a.Findings {
		if coveredFindings[f.Name] {
			continue
		}
		if f.Severity == target.SeverityCritical || f.Severity == target.SeverityHigh {
			return true
		}
	}
	return false
}
