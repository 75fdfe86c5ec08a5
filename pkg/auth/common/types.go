package common

// Severity classifies the impact of a finding
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityInfo     Severity = "Info"
)

// Finding represents a single security observation with remediation guidance
type Finding struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Evidence    string   `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Remediation string   `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	CVE         string   `json:"cve,omitempty" yaml:"cve,omitempty"`
	CWE         string   `json:"cwe,omitempty" yaml:"cwe,omitempty"`
	References  []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// Report collects the outcome of a probe run. Vulnerabilities and Info keep
// the order in which the checks produced them.
type Report struct {
	Vulnerabilities []Finding `json:"vulnerabilities" yaml:"vulnerabilities"`
	Info            []Finding `json:"info" yaml:"info"`
}

// VersionInfo carries externally supplied version metadata used to guide
// version-dependent checks.
type VersionInfo struct {
	Version  string            `json:"version" yaml:"version"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Logger is the leveled log sink probe code depends on. The zap-backed
// implementation in internal/logger satisfies it; tests inject mocks.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
