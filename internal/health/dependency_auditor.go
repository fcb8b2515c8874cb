package health

import (
	"bufio"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/steveyegge/debtneg/internal/types"
)

// staleMinimums maps Python packages to the first version that is not considered stale.
var staleMinimums = map[string]string{
	"tensorflow":   "v2.0.0",
	"pandas":       "v1.0.0",
	"numpy":        "v1.19.0",
	"scikit-learn": "v0.23.0",
	"pyspark":      "v3.0.0",
}

// minGoVersion is the oldest go directive that is still supported upstream.
const minGoVersion = "v1.21"

var (
	pinnedVersionRe = regexp.MustCompile(`^(\d+)(\.\d+)?(\.\d+)?`)
	log4jArtifactRe = regexp.MustCompile(`<artifactId>\s*log4j\s*</artifactId>`)
	log4jVersionRe  = regexp.MustCompile(`<version>\s*1\.`)
)

// DependencyAuditor flags pinned dependencies that are known to be stale or vulnerable.
// It reads requirements.txt, go.mod and pom.xml files from the snapshot.
type DependencyAuditor struct{}

// NewDependencyAuditor creates a dependency auditor.
func NewDependencyAuditor() *DependencyAuditor {
	return &DependencyAuditor{}
}

// Name implements Monitor.
func (a *DependencyAuditor) Name() string {
	return "dependency_auditor"
}

// Philosophy implements Monitor.
func (a *DependencyAuditor) Philosophy() string {
	return "Dependencies should be up-to-date, secure, and necessary. " +
		"Outdated dependencies create security risks and maintenance burden."
}

// Check implements Monitor.
func (a *DependencyAuditor) Check(ctx context.Context, snap *types.RepositorySnapshot) (*MonitorResult, error) {
	startTime := time.Now()

	var issues []DiscoveredIssue
	scanned := 0
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch path.Base(f.Path) {
		case "requirements.txt":
			scanned++
			issues = append(issues, a.checkRequirements(f)...)
		case "go.mod":
			scanned++
			issues = append(issues, a.checkGoMod(f)...)
		case "pom.xml":
			scanned++
			issues = append(issues, a.checkPom(f)...)
		}
	}

	return &MonitorResult{
		IssuesFound: issues,
		Context:     fmt.Sprintf("Audited %d manifest files", scanned),
		CheckedAt:   startTime,
		Stats: CheckStats{
			FilesScanned: scanned,
			IssuesFound:  len(issues),
			Duration:     time.Since(startTime),
		},
	}, nil
}

func (a *DependencyAuditor) checkRequirements(f types.SnapshotFile) []DiscoveredIssue {
	var issues []DiscoveredIssue

	scanner := bufio.NewScanner(strings.NewReader(f.Content))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Drop inline comments and environment markers.
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		pkg, version, ok := strings.Cut(line, "==")
		if !ok {
			continue
		}
		pkg = strings.ToLower(strings.TrimSpace(pkg))
		if i := strings.Index(pkg, "["); i >= 0 {
			pkg = pkg[:i]
		}
		version = strings.TrimSpace(version)

		minimum, known := staleMinimums[pkg]
		if !known {
			continue
		}
		current := pythonSemver(version)
		if current == "" || semver.Compare(current, minimum) >= 0 {
			continue
		}

		issues = append(issues, DiscoveredIssue{
			FilePath:       f.Path,
			LineStart:      lineNum,
			DebtType:       types.DebtOutdatedDependency,
			Severity:       types.SeverityHigh,
			Description:    fmt.Sprintf("%s==%s is outdated", pkg, version),
			BusinessImpact: "Missing security fixes and blocks upgrades of dependent libraries",
			AnnualCost:     45000,
			FixEffortWeeks: 2,
			Evidence: map[string]any{
				"package":         pkg,
				"pinned_version":  version,
				"minimum_current": strings.TrimPrefix(minimum, "v"),
			},
		})
	}
	return issues
}

// pythonSemver turns a pip version like "1.15.0rc1" into "v1.15.0".
func pythonSemver(version string) string {
	m := pinnedVersionRe.FindString(version)
	if m == "" {
		return ""
	}
	v := semver.Canonical("v" + m)
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

func (a *DependencyAuditor) checkGoMod(f types.SnapshotFile) []DiscoveredIssue {
	mod, err := modfile.ParseLax(f.Path, []byte(f.Content), nil)
	if err != nil || mod.Go == nil {
		return nil
	}

	version := "v" + mod.Go.Version
	if !semver.IsValid(version) || semver.Compare(version, minGoVersion) >= 0 {
		return nil
	}

	line := 0
	if mod.Go.Syntax != nil {
		line = mod.Go.Syntax.Start.Line
	}
	return []DiscoveredIssue{{
		FilePath:       f.Path,
		LineStart:      line,
		DebtType:       types.DebtOutdatedDependency,
		Severity:       types.SeverityHigh,
		Description:    fmt.Sprintf("go %s toolchain is out of support", mod.Go.Version),
		BusinessImpact: "Unsupported toolchains receive no security patches",
		AnnualCost:     45000,
		FixEffortWeeks: 2,
		Evidence: map[string]any{
			"go_version":   mod.Go.Version,
			"requirements": len(mod.Require),
		},
	}}
}

func (a *DependencyAuditor) checkPom(f types.SnapshotFile) []DiscoveredIssue {
	if !log4jArtifactRe.MatchString(f.Content) || !log4jVersionRe.MatchString(f.Content) {
		return nil
	}
	return []DiscoveredIssue{{
		FilePath:       f.Path,
		LineStart:      firstMatchLine(log4jArtifactRe, f.Content),
		DebtType:       types.DebtSecurityVulnerability,
		Severity:       types.SeverityCritical,
		Description:    "Log4j 1.x - CVE-2021-44228 (Log4Shell)",
		BusinessImpact: "Remote code execution exposure and failed compliance audits",
		AnnualCost:     100000,
		FixEffortWeeks: 1,
		RiskFlag:       true,
		Evidence: map[string]any{
			"artifact": "log4j",
		},
	}}
}
