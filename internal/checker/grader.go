package checker

import (
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
)

// Scoring weights.
const (
	baseScore            = 100
	modernProtocolBonus  = 5
	noModernProtocolCost = 40
	invalidCertCost      = 50
	perFindingCost       = 5
)

// Grader turns certificate, protocol and header observations into a score.
type Grader struct {
	legacyPenalty int
	now           func() time.Time
}

// NewGrader returns a grader applying legacyPenalty to every assessment.
// A negative penalty is treated as zero.
func NewGrader(legacyPenalty int, now func() time.Time) *Grader {
	if legacyPenalty < 0 {
		legacyPenalty = 0
	}
	if now == nil {
		now = time.Now
	}
	return &Grader{legacyPenalty: legacyPenalty, now: now}
}

// DefaultGrader uses the stock legacy penalty.
func DefaultGrader() *Grader {
	return NewGrader(constants.DefaultLegacyPenalty, nil)
}

// Assess scores one check. signals may be nil, in which case header findings are skipped.
func (g *Grader) Assess(snap target.CertificateSnapshot, report target.ProtocolReport, signals *Signals) target.SecurityAssessment {
	findings := collectFindings(snap, report, signals)

	score := baseScore
	if report.Supports(target.TLSv13) {
		score += modernProtocolBonus
	}
	if !report.Supports(target.TLSv12) && !report.Supports(target.TLSv13) {
		score -= noModernProtocolCost
	}
	// Legacy support is assumed for every host; the probe cannot rule it out on
	// servers that silently drop old handshakes.
	score -= g.legacyPenalty
	if !snap.Valid {
		score -= invalidCertCost
	}
	score -= perFindingCost * len(findings)
	score = clamp(score, 0, 100)

	return target.SecurityAssessment{
		Score:      score,
		Grade:      target.GradeForScore(score),
		Findings:   findings,
		AssessedAt: g.now(),
	}
}

func collectFindings(snap target.CertificateSnapshot, report target.ProtocolReport, signals *Signals) []target.Finding {
	findings := []target.Finding{}

	if snap.SelfSigned {
		findings = append(findings, target.Finding{
			Name:        target.FindingSelfSigned,
			Severity:    target.SeverityHigh,
			Description: "The certificate is signed by its own subject and is not trusted by browsers.",
		})
	}
	if snap.SignatureAlgorithm != "" && IsWeakSignature(snap.SignatureAlgorithm) {
		findings = append(findings, target.Finding{
			Name:        target.FindingWeakSignature,
			Severity:    target.SeverityHigh,
			Description: fmt.Sprintf("The certificate is signed with %s. Use SHA-256 or stronger.", snap.SignatureAlgorithm),
		})
	}
	if IsWeakKey(snap.PublicKeyAlgorithm, snap.KeySize) {
		findings = append(findings, target.Finding{
			Name:        target.FindingWeakKey,
			Severity:    target.SeverityHigh,
			Description: fmt.Sprintf("%s key of %d bits is below the recommended minimum.", snap.PublicKeyAlgorithm, snap.KeySize),
		})
	}
	if !snap.Valid {
		findings = append(findings, target.Finding{
			Name:        target.FindingInvalidDate,
			Severity:    target.SeverityCritical,
			Description: "The certificate has expired or its validity dates could not be read.",
		})
	}

	for _, proto := range report.Insecure {
		findings = append(findings, target.Finding{
			Name:        target.FindingInsecureProtocol,
			Severity:    target.SeverityHigh,
			Description: fmt.Sprintf("The server accepts %s. Only TLSv1.2 and TLSv1.3 are recommended.", proto),
		})
	}

	if snap.CipherSuite != "" && IsWeakCipherSuite(snap.CipherSuite) {
		findings = append(findings, target.Finding{
			Name:        target.FindingWeakCipher,
			Severity:    target.SeverityHigh,
			Description: fmt.Sprintf("The server negotiated %s. Prefer AEAD suites such as AES-GCM or ChaCha20-Poly1305.", snap.CipherSuite),
		})
	}

	if signals != nil {
		switch {
		case !signals.HSTSPresent:
			findings = append(findings, target.Finding{
				Name:        target.FindingMissingHSTS,
				Severity:    target.SeverityMedium,
				Description: "HTTP Strict Transport Security (HSTS) header is missing.",
			})
		case signals.HSTSMaxAge < constants.MinHSTSMaxAge:
			findings = append(findings, target.Finding{
				Name:        target.FindingShortHSTS,
				Severity:    target.SeverityLow,
				Description: fmt.Sprintf("HSTS max-age is less than the recommended 6 months (%d seconds).", constants.MinHSTSMaxAge),
			})
		}
	}

	return findings
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
