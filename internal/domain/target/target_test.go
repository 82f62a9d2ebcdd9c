package target

import (
	"fmt"
	"testing"
	"time"
)

func TestGradeForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Grade
	}{
		{100, GradeAPlus},
		{95, GradeAPlus},
		{94, GradeA},
		{90, GradeA},
		{89, GradeB},
		{80, GradeB},
		{79, GradeC},
		{70, GradeC},
		{69, GradeD},
		{60, GradeD},
		{59, GradeF},
		{0, GradeF},
	}

	for _, tt := range tests {
		if got := GradeForScore(tt.score); got != tt.want {
			t.Errorf("GradeForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestDaysUntilRoundsUp(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		notAfter time.Time
		want     int
	}{
		{name: "one hour left", notAfter: now.Add(time.Hour), want: 1},
		{name: "exactly one day", notAfter: now.Add(24 * time.Hour), want: 1},
		{name: "just over one day", notAfter: now.Add(25 * time.Hour), want: 2},
		{name: "expired yesterday", notAfter: now.Add(-24 * time.Hour), want: -1},
		{name: "expired an hour ago", notAfter: now.Add(-time.Hour), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(tt.notAfter, now); got != tt.want {
				t.Fatalf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFinalizeUsesUpperBoundOnly(t *testing.T) {
	now := time.Now()
	snap := CertificateSnapshot{
		NotBefore: now.Add(48 * time.Hour),
		NotAfter:  now.Add(90 * 24 * time.Hour),
	}.Finalize(now)

	if !snap.Valid {
		t.Fatal("expected not-yet-valid certificate to report valid")
	}
	if snap.DaysRemaining != 90 {
		t.Fatalf("expected 90 days remaining, got %d", snap.DaysRemaining)
	}

	expired := CertificateSnapshot{NotAfter: now.Add(-time.Minute)}.Finalize(now)
	if expired.Valid {
		t.Fatal("expected expired certificate to be invalid")
	}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Now()
	valid := CertificateSnapshot{NotAfter: now.Add(100 * 24 * time.Hour)}.Finalize(now)
	warning := CertificateSnapshot{NotAfter: now.Add(10 * 24 * time.Hour)}.Finalize(now)
	boundary := CertificateSnapshot{NotAfter: now.Add(30 * 24 * time.Hour)}.Finalize(now)
	expired := CertificateSnapshot{NotAfter: now.Add(-24 * time.Hour)}.Finalize(now)
	failed := FailedSnapshot("dial tcp: connection refused", now)

	tests := []struct {
		name string
		snap *CertificateSnapshot
		want Status
	}{
		{name: "nil snapshot", snap: nil, want: StatusUnknown},
		{name: "failed snapshot", snap: &failed, want: StatusUnknown},
		{name: "expired", snap: &expired, want: StatusExpired},
		{name: "inside window", snap: &warning, want: StatusWarning},
		{name: "on the boundary", snap: &boundary, want: StatusWarning},
		{name: "healthy", snap: &valid, want: StatusValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.snap, 30); got != tt.want {
				t.Fatalf("DeriveStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewProtocolReport(t *testing.T) {
	report := NewProtocolReport([]Protocol{TLSv13, TLSv10, TLSv12, TLSv10, ProtocolUnknown}, time.Now())

	want := []Protocol{TLSv10, TLSv12, TLSv13}
	if len(report.Supported) != len(want) {
		t.Fatalf("expected %v, got %v", want, report.Supported)
	}
	for i := range want {
		if report.Supported[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, report.Supported)
		}
	}
	if len(report.Insecure) != 1 || report.Insecure[0] != TLSv10 {
		t.Fatalf("expected insecure [TLSv1.0], got %v", report.Insecure)
	}
	if report.Highest != TLSv13 {
		t.Fatalf("expected highest TLSv1.3, got %s", report.Highest)
	}
	for _, p := range report.Insecure {
		if !report.Supports(p) {
			t.Fatalf("insecure protocol %s missing from supported", p)
		}
	}
}

func TestNewProtocolReportEmpty(t *testing.T) {
	report := NewProtocolReport(nil, time.Now())
	if report.Highest != ProtocolUnknown {
		t.Fatalf("expected unknown highest, got %s", report.Highest)
	}
	if report.HasInsecure() {
		t.Fatal("expected no insecure protocols")
	}
}

func TestDefaultProtocolReport(t *testing.T) {
	report := DefaultProtocolReport(time.Now())
	if !report.Defaulted {
		t.Fatal("expected defaulted flag")
	}
	if len(report.Supported) != 1 || report.Supported[0] != TLSv12 {
		t.Fatalf("expected [TLSv1.2], got %v", report.Supported)
	}
	if report.Highest != TLSv12 || len(report.Insecure) != 0 {
		t.Fatalf("unexpected default report: %+v", report)
	}
}

func TestNewMonitoredTarget(t *testing.T) {
	tgt, err := NewMonitoredTarget("example.com", "")
	if err != nil {
		t.Fatalf("NewMonitoredTarget returned error: %v", err)
	}
	if tgt.ID() == "" {
		t.Fatal("expected generated ID")
	}
	if tgt.Name() != "example.com" {
		t.Fatalf("expected name to default to hostname, got %q", tgt.Name())
	}
	if !tgt.NotificationsEnabled() {
		t.Fatal("expected notifications enabled by default")
	}
	if tgt.Status() != StatusUnknown {
		t.Fatalf("expected UNKNOWN status, got %s", tgt.Status())
	}

	if _, err := NewMonitoredTarget("   ", "x"); err == nil {
		t.Fatal("expected error for empty hostname")
	}
}

func TestApplyCheckKeepsPreviousProtocolsWhenAbsent(t *testing.T) {
	tgt, _ := NewMonitoredTarget("example.com", "Example")
	now := time.Now()
	snap := CertificateSnapshot{NotAfter: now.Add(60 * 24 * time.Hour)}.Finalize(now)
	report := NewProtocolReport([]Protocol{TLSv12}, now)

	tgt.ApplyCheck(CheckResult{CheckedAt: now, Status: StatusValid, Certificate: &snap, Protocols: &report})

	failed := FailedSnapshot("timeout", now.Add(time.Hour))
	tgt.ApplyCheck(CheckResult{CheckedAt: now.Add(time.Hour), Status: StatusUnknown, Certificate: &failed, Error: "timeout"})

	if tgt.Status() != StatusUnknown {
		t.Fatalf("expected UNKNOWN, got %s", tgt.Status())
	}
	if tgt.LastError() != "timeout" {
		t.Fatalf("expected last error to be recorded, got %q", tgt.LastError())
	}
	if tgt.Protocols() == nil || tgt.Protocols().Highest != TLSv12 {
		t.Fatal("expected previous protocol report to be retained")
	}
	if tgt.Certificate().Retrieved() {
		t.Fatal("expected failed snapshot to replace the certificate")
	}
}

func TestRecordNotificationCapsHistory(t *testing.T) {
	tgt, _ := NewMonitoredTarget("example.com", "Example")
	for i := 0; i < 25; i++ {
		tgt.RecordNotification(NotificationRecord{
			Condition: ConditionExpiryWarning,
			Message:   fmt.Sprintf("msg-%d", i),
			Day:       "2026-01-01",
		})
	}

	history := tgt.Notifications()
	if len(history) != 20 {
		t.Fatalf("expected 20 records, got %d", len(history))
	}
	if history[0].Message != "msg-24" {
		t.Fatalf("expected most recent first, got %s", history[0].Message)
	}
	if history[19].Message != "msg-5" {
		t.Fatalf("expected oldest retained msg-5, got %s", history[19].Message)
	}
}

func TestHasNotified(t *testing.T) {
	tgt, _ := NewMonitoredTarget("example.com", "Example")
	tgt.RecordNotification(NotificationRecord{Condition: ConditionExpiryWarning, Bucket: "7", Day: "2026-03-01"})

	if !tgt.HasNotified(ConditionExpiryWarning, "7", "2026-03-01") {
		t.Fatal("expected matching record")
	}
	if tgt.HasNotified(ConditionExpiryWarning, "6", "2026-03-01") {
		t.Fatal("different bucket should not match")
	}
	if tgt.HasNotified(ConditionExpiryWarning, "7", "2026-03-02") {
		t.Fatal("different day should not match")
	}
	if tgt.HasNotified(ConditionExpired, "7", "2026-03-01") {
		t.Fatal("different condition should not match")
	}
}
