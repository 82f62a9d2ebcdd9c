package target

import (
	"sort"
	"time"
)

// Protocol names a TLS/SSL protocol version.
type Protocol string

const (
	SSLv2           Protocol = "SSLv2"
	SSLv3           Protocol = "SSLv3"
	TLSv10          Protocol = "TLSv1.0"
	TLSv11          Protocol = "TLSv1.1"
	TLSv12          Protocol = "TLSv1.2"
	TLSv13          Protocol = "TLSv1.3"
	ProtocolUnknown Protocol = "unknown"
)

// CandidateProtocols is the fixed probe order.
var CandidateProtocols = []Protocol{SSLv2, SSLv3, TLSv10, TLSv11, TLSv12, TLSv13}

// Rank orders protocols from oldest to newest; unknown ranks lowest.
func (p Protocol) Rank() int {
	switch p {
	case SSLv2:
		return 1
	case SSLv3:
		return 2
	case TLSv10:
		return 3
	case TLSv11:
		return 4
	case TLSv12:
		return 5
	case TLSv13:
		return 6
	default:
		return 0
	}
}

// Insecure reports whether the protocol is deprecated.
func (p Protocol) Insecure() bool {
	switch p {
	case SSLv2, SSLv3, TLSv10, TLSv11:
		return true
	}
	return false
}

// ProtocolReport lists which protocol versions a host accepted.
type ProtocolReport struct {
	Supported []Protocol `json:"supported"`
	Insecure  []Protocol `json:"insecure"`
	Highest   Protocol   `json:"highest"`
	Defaulted bool       `json:"defaulted,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}

// NewProtocolReport derives the insecure subset and the highest version from supported.
func NewProtocolReport(supported []Protocol, checkedAt time.Time) ProtocolReport {
	seen := make(map[Protocol]struct{}, len(supported))
	ordered := make([]Protocol, 0, len(supported))
	for _, p := range supported {
		if p.Rank() == 0 {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank() < ordered[j].Rank() })

	report := ProtocolReport{
		Supported: ordered,
		Insecure:  []Protocol{},
		Highest:   ProtocolUnknown,
		CheckedAt: checkedAt,
	}
	for _, p := range ordered {
		if p.Insecure() {
			report.Insecure = append(report.Insecure, p)
		}
		if p.Rank() > report.Highest.Rank() {
			report.Highest = p
		}
	}
	return report
}

// DefaultProtocolReport is substituted when no probe succeeded.
func DefaultProtocolReport(checkedAt time.Time) ProtocolReport {
	report := NewProtocolReport([]Protocol{TLSv12}, checkedAt)
	report.Defaulted = true
	return report
}

// Supports reports whether p was accepted.
func (r ProtocolReport) Supports(p Protocol) bool {
	for _, s := range r.Supported {
		if s == p {
			return true
		}
	}
	return false
}

// HasInsecure reports whether any deprecated protocol was accepted.
func (r ProtocolReport) HasInsecure() bool {
	return len(r.Insecure) > 0
}
