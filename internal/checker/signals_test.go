package checker

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestParseHSTSMaxAge(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"max-age=31536000; includeSubDomains; preload", 31536000},
		{"includeSubDomains; max-age=600", 600},
		{`max-age="15768000"`, 15768000},
		{"MAX-AGE=10", 10},
		{"max-age=abc", -1},
		{"includeSubDomains", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := parseHSTSMaxAge(tt.value); got != tt.want {
			t.Errorf("parseHSTSMaxAge(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestSignalCollectorReadsHSTS(t *testing.T) {
	_, info := newTLSTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	}))

	signals := NewSignalCollector(5*time.Second, nil).Collect(context.Background(), info)
	if signals == nil {
		t.Fatal("expected signals")
	}
	if !signals.HSTSPresent || signals.HSTSMaxAge != 63072000 {
		t.Fatalf("unexpected signals %+v", signals)
	}
}

func TestSignalCollectorMissingHeader(t *testing.T) {
	_, info := newTLSTarget(t, nil)

	signals := NewSignalCollector(5*time.Second, nil).Collect(context.Background(), info)
	if signals == nil {
		t.Fatal("expected signals")
	}
	if signals.HSTSPresent {
		t.Fatal("expected HSTS to be absent")
	}
}

func TestSignalCollectorFallsBackToGet(t *testing.T) {
	_, info := newTLSTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Strict-Transport-Security", "max-age=100")
	}))

	signals := NewSignalCollector(5*time.Second, nil).Collect(context.Background(), info)
	if signals == nil || signals.HSTSMaxAge != 100 {
		t.Fatalf("expected GET fallback to read header, got %+v", signals)
	}
}

func TestSignalCollectorUnreachable(t *testing.T) {
	info := closedTarget(t)
	if got := NewSignalCollector(time.Second, nil).Collect(context.Background(), info); got != nil {
		t.Fatalf("expected nil signals, got %+v", got)
	}
}
