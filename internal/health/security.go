package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/steveyegge/debtneg/internal/types"
)

var (
	credentialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)password\s*[:=]\s*["'][\w!@#$%^&*]+["']`),
		regexp.MustCompile(`(?i)api_key\s*[:=]\s*["'][A-Za-z0-9]+["']`),
		regexp.MustCompile(`(?i)secret\s*[:=]\s*["'][A-Za-z0-9]+["']`),
		regexp.MustCompile(`(?i)DB_PASSWORD\s*[:=]\s*["'][\w!@#$%^&*]+["']`),
	}

	// f"SELECT ... {var}" and friends.
	pythonSQLRe = regexp.MustCompile(`(?i)f["'](?:SELECT|INSERT|UPDATE|DELETE)\b[^"'\n]*\{`)

	// "SELECT ... " + var
	concatSQLRe = regexp.MustCompile(`(?i)["'](?:SELECT|INSERT|UPDATE|DELETE)\b[^"'\n]*["']\s*\+\s*\w`)

	credentialExts = []string{".py", ".java", ".js", ".ts", ".go", ".rb", ".yaml", ".yml", ".json", ".properties", ".env", ".cfg", ".ini"}
	sqlConcatExts  = []string{".java", ".js", ".ts", ".go", ".rb", ".cs", ".php"}
)

// SecurityMonitor finds hardcoded credentials and SQL assembled from strings.
type SecurityMonitor struct{}

// NewSecurityMonitor creates a security monitor.
func NewSecurityMonitor() *SecurityMonitor {
	return &SecurityMonitor{}
}

// Name implements Monitor.
func (m *SecurityMonitor) Name() string {
	return "security_monitor"
}

// Philosophy implements Monitor.
func (m *SecurityMonitor) Philosophy() string {
	return "Secrets belong in a secret store and queries take parameters. " +
		"Both mistakes are cheap to fix and expensive to be breached by."
}

// Check implements Monitor.
func (m *SecurityMonitor) Check(ctx context.Context, snap *types.RepositorySnapshot) (*MonitorResult, error) {
	startTime := time.Now()

	var issues []DiscoveredIssue
	scanned := 0
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		checked := false
		if hasExt(f.Path, credentialExts...) {
			checked = true
			if issue, ok := m.credentials(f); ok {
				issues = append(issues, issue)
			}
		}
		if hasExt(f.Path, ".py") || hasExt(f.Path, sqlConcatExts...) {
			checked = true
			if issue, ok := m.sqlInjection(f); ok {
				issues = append(issues, issue)
			}
		}
		if checked {
			scanned++
		}
	}

	return &MonitorResult{
		IssuesFound: issues,
		Context:     fmt.Sprintf("Scanned %d code and config files", scanned),
		CheckedAt:   startTime,
		Stats: CheckStats{
			FilesScanned: scanned,
			IssuesFound:  len(issues),
			Duration:     time.Since(startTime),
		},
	}, nil
}

// credentials reports at most one finding per file, at the earliest match.
func (m *SecurityMonitor) credentials(f types.SnapshotFile) (DiscoveredIssue, bool) {
	line := 0
	for _, re := range credentialPatterns {
		if l := firstMatchLine(re, f.Content); l > 0 && (line == 0 || l < line) {
			line = l
		}
	}
	if line == 0 {
		return DiscoveredIssue{}, false
	}
	return DiscoveredIssue{
		FilePath:       f.Path,
		LineStart:      line,
		DebtType:       types.DebtHardcodedCredentials,
		Severity:       types.SeverityCritical,
		Description:    "Hardcoded credentials found",
		BusinessImpact: "Anyone with repository access holds production secrets",
		AnnualCost:     100000,
		FixEffortWeeks: 1,
		RiskFlag:       true,
	}, true
}

func (m *SecurityMonitor) sqlInjection(f types.SnapshotFile) (DiscoveredIssue, bool) {
	re, how := concatSQLRe, "string concatenation"
	if hasExt(f.Path, ".py") {
		re, how = pythonSQLRe, "f-strings"
	}
	line := firstMatchLine(re, f.Content)
	if line == 0 {
		return DiscoveredIssue{}, false
	}
	return DiscoveredIssue{
		FilePath:       f.Path,
		LineStart:      line,
		DebtType:       types.DebtSQLInjectionRisk,
		Severity:       types.SeverityCritical,
		Description:    "SQL query built with " + how,
		BusinessImpact: "User input can rewrite queries against production data",
		AnnualCost:     200000,
		FixEffortWeeks: 1,
		RiskFlag:       true,
	}, true
}
