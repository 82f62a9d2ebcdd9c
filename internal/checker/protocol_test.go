package checker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"go.uber.org/zap/zaptest"
)

func TestProberDetectsModernProtocols(t *testing.T) {
	_, info := newTLSTarget(t, nil)

	p := NewProber(ProberConfig{Logger: zaptest.NewLogger(t)})
	report := p.Probe(context.Background(), info)

	if report.Defaulted {
		t.Fatal("expected real probe result, got default")
	}
	if !report.Supports(target.TLSv12) || !report.Supports(target.TLSv13) {
		t.Fatalf("expected TLSv1.2 and TLSv1.3, got %v", report.Supported)
	}
	if report.HasInsecure() {
		t.Fatalf("expected no insecure protocols, got %v", report.Insecure)
	}
	if report.Highest != target.TLSv13 {
		t.Fatalf("Highest = %s, want TLSv1.3", report.Highest)
	}
}

func TestProberUsesOpenSSLForLegacyVersions(t *testing.T) {
	_, info := newTLSTarget(t, nil)
	runner := &fakeRunner{respond: func(stdin []byte, args []string) ([]byte, error) {
		if hasArg(args, "-ssl3") {
			return []byte("New, SSLv3, Cipher is DES-CBC3-SHA\n"), nil
		}
		return nil, errors.New("unknown option -ssl2")
	}}

	p := NewProber(ProberConfig{OpenSSLPath: "openssl", Runner: runner})
	report := p.Probe(context.Background(), info)

	if !report.Supports(target.SSLv3) {
		t.Fatalf("expected SSLv3 support, got %v", report.Supported)
	}
	if report.Supports(target.SSLv2) {
		t.Fatal("SSLv2 should be skipped when openssl fails")
	}
	if len(report.Insecure) != 1 || report.Insecure[0] != target.SSLv3 {
		t.Fatalf("expected insecure [SSLv3], got %v", report.Insecure)
	}
	if report.Highest != target.TLSv13 {
		t.Fatalf("Highest = %s, want TLSv1.3", report.Highest)
	}
	if runner.callCount() != 2 {
		t.Fatalf("expected two openssl probes, got %d", runner.callCount())
	}
}

func TestProberDefaultsWhenNothingAnswers(t *testing.T) {
	info := closedTarget(t)

	p := NewProber(ProberConfig{Timeout: time.Second})
	report := p.Probe(context.Background(), info)

	if !report.Defaulted {
		t.Fatal("expected default report")
	}
	if len(report.Supported) != 1 || report.Supported[0] != target.TLSv12 {
		t.Fatalf("expected [TLSv1.2], got %v", report.Supported)
	}
	if report.Highest != target.TLSv12 || report.HasInsecure() {
		t.Fatalf("unexpected default report %+v", report)
	}
}

func TestProtocolForVersion(t *testing.T) {
	tests := []struct {
		version uint16
		want    target.Protocol
	}{
		{0x0300, target.SSLv3},
		{0x0301, target.TLSv10},
		{0x0302, target.TLSv11},
		{0x0303, target.TLSv12},
		{0x0304, target.TLSv13},
		{0x9999, target.ProtocolUnknown},
	}
	for _, tt := range tests {
		if got := protocolForVersion(tt.version); got != tt.want {
			t.Errorf("protocolForVersion(0x%04x) = %s, want %s", tt.version, got, tt.want)
		}
	}
}
