package target

import "time"

// Grade is the letter derived from a security score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// GradeForScore maps a 0..100 score to its letter grade.
func GradeForScore(score int) Grade {
	switch {
	case score >= 95:
		return GradeAPlus
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Finding names produced by the grader.
const (
	FindingSelfSigned       = "Self-Signed Certificate"
	FindingWeakSignature    = "Weak Certificate Signature Algorithm"
	FindingWeakKey          = "Weak Key Size"
	FindingInvalidDate      = "Invalid Certificate Date"
	FindingInsecureProtocol = "Insecure Protocol Supported"
	FindingWeakCipher       = "Weak Cipher Suite"
	FindingMissingHSTS      = "Missing HSTS Header"
	FindingShortHSTS        = "Short HSTS Max-Age"
)

// Finding is a single issue discovered while grading.
type Finding struct {
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// SecurityAssessment is the graded outcome of one check.
type SecurityAssessment struct {
	Score      int       `json:"score"`
	Grade      Grade     `json:"grade"`
	Findings   []Finding `json:"findings"`
	AssessedAt time.Time `json:"assessed_at"`
}

// HasSeverity reports whether any finding carries sev.
func (a SecurityAssessment) HasSeverity(sev Severity) bool {
	for _, f := range a.Findings {
		if f.Severity == sev {
			return true
		}
	}
	return false
}
