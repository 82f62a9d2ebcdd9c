package target

import (
	"math"
	"time"
)

// Retrieval strategies recorded on a snapshot.
const (
	SourceTLS     = "tls"
	SourceOpenSSL = "openssl"
)

// CertificateSnapshot is the metadata of a leaf certificate as observed at CheckedAt.
// Treat it as immutable once returned by the retriever.
type CertificateSnapshot struct {
	Valid         bool      `json:"valid"`
	Issuer        string    `json:"issuer"`
	Subject       string    `json:"subject"`
	SANs          []string  `json:"sans,omitempty"`
	NotBefore     time.Time `json:"not_before"`
	NotAfter      time.Time `json:"not_after"`
	Serial        string    `json:"serial,omitempty"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	SelfSigned    bool      `json:"self_signed"`
	DaysRemaining int       `json:"days_remaining"`
	CheckedAt     time.Time `json:"checked_at"`
	Source        string    `json:"source,omitempty"`
	Error         string    `json:"error,omitempty"`

	SignatureAlgorithm string `json:"signature_algorithm,omitempty"`
	PublicKeyAlgorithm string `json:"public_key_algorithm,omitempty"`
	KeySize            int    `json:"key_size,omitempty"`
	TLSVersion         string `json:"tls_version,omitempty"`
	CipherSuite        string `json:"cipher_suite,omitempty"`
	ChainDepth         int    `json:"chain_depth,omitempty"`
}

// Retrieved reports whether certificate data was actually obtained.
func (s CertificateSnapshot) Retrieved() bool {
	return s.Error == "" && !s.NotAfter.IsZero()
}

// FailedSnapshot records a retrieval that produced no certificate.
func FailedSnapshot(reason string, checkedAt time.Time) CertificateSnapshot {
	return CertificateSnapshot{
		Valid:     false,
		Error:     reason,
		CheckedAt: checkedAt,
	}
}

// DaysUntil returns ceil((notAfter - now) / 24h). The result is negative for expired certificates.
func DaysUntil(notAfter, now time.Time) int {
	return int(math.Ceil(notAfter.Sub(now).Hours() / 24))
}

// Finalize fills the derived validity fields from NotAfter relative to now.
// Only the upper bound is enforced; a not-yet-valid certificate still reports valid.
func (s CertificateSnapshot) Finalize(now time.Time) CertificateSnapshot {
	s.CheckedAt = now
	if s.NotAfter.IsZero() {
		s.Valid = false
		s.DaysRemaining = 0
		return s
	}
	s.Valid = s.NotAfter.After(now)
	s.DaysRemaining = DaysUntil(s.NotAfter, now)
	return s
}
