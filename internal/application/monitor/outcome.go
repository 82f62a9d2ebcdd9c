package monitor

import (
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
)

// CheckOutcome describes what happened to one target during a check.
type CheckOutcome struct {
	TargetID      string             `json:"target_id"`
	Hostname      string             `json:"hostname"`
	Name          string             `json:"name"`
	Status        target.Status      `json:"status"`
	Skipped       bool               `json:"skipped,omitempty"`
	Failed        bool               `json:"failed,omitempty"`
	Error         string             `json:"error,omitempty"`
	DaysRemaining int                `json:"days_remaining"`
	Insecure      []target.Protocol  `json:"insecure_protocols,omitempty"`
	Grade         target.Grade       `json:"grade,omitempty"`
	Score         int                `json:"score,omitempty"`
	Notifications []target.Condition `json:"notifications,omitempty"`
	Duration      time.Duration      `json:"duration_ns"`
}

// BatchSummary aggregates the outcomes of a full run.
type BatchSummary struct {
	Total            int            `json:"total"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	Warned           int            `json:"warned"`
	Expired          int            `json:"expired"`
	InsecureProtocol int            `json:"insecure_protocol"`
	Skipped          int            `json:"skipped"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	NextCheck        time.Time      `json:"next_check,omitempty"`
	Outcomes         []CheckOutcome `json:"outcomes"`
}

func (b *BatchSummary) add(o CheckOutcome) {
	b.Total++
	b.Outcomes = append(b.Outcomes, o)

	switch {
	case o.Skipped:
		b.Skipped++
		return
	case o.Failed:
		b.Failed++
		return
	}

	b.Succeeded++
	switch o.Status {
	case target.StatusWarning:
		b.Warned++
	case target.StatusExpired:
		b.Expired++
	}
	if len(o.Insecure) > 0 {
		b.InsecureProtocol++
	}
}

func outcomeFor(t *target.MonitoredTarget, result target.CheckResult) CheckOutcome {
	o := CheckOutcome{
		TargetID: t.ID(),
		Hostname: t.Hostname(),
		Name:     t.Name(),
		Status:   result.Status,
		Error:    result.Error,
		Failed:   result.Error != "",
	}
	if result.Certificate != nil && result.Certificate.Retrieved() {
		o.DaysRemaining = result.Certificate.DaysRemaining
	}
	if result.Protocols != nil {
		o.Insecure = result.Protocols.Insecure
	}
	if result.Assessment != nil {
		o.Grade = result.Assessment.Grade
		o.Score = result.Assessment.Score
	}
	return o
}

func failedOutcome(t *target.MonitoredTarget, reason string) CheckOutcome {
	return CheckOutcome{
		TargetID: t.ID(),
		Hostname: t.Hostname(),
		Name:     t.Name(),
		Status:   target.StatusUnknown,
		Failed:   true,
		Error:    reason,
	}
}

func skippedOutcome(t *target.MonitoredTarget) CheckOutcome {
	return CheckOutcome{
		TargetID: t.ID(),
		Hostname: t.Hostname(),
		Name:     t.Name(),
		Status:   t.Status(),
		Skipped:  true,
	}
}
