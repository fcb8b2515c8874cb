package ai

import (
	"fmt"
	"strings"

	"github.com/steveyegge/debtneg/internal/types"
)

const (
	// maxDigestFiles caps how many snapshot files reach the prompt.
	maxDigestFiles = 30
	// maxDigestFileChars caps each file's share of the prompt.
	maxDigestFileChars = 3000
	// maxTicketDescription caps ticket descriptions in the blocker prompt.
	maxTicketDescription = 400
)

var categoryTitles = map[types.DebtCategory]string{
	types.CategorySoftware:     "SOFTWARE DEBT",
	types.CategoryML:           "ML DEBT",
	types.CategoryDataPipeline: "DATA PIPELINE DEBT",
}

// buildClassificationSystem lists every catalog, leading with the ones that
// matter most for the repository type.
func buildClassificationSystem(repoType types.RepoType, schema string) string {
	var b strings.Builder
	b.WriteString(`You are an expert software engineering consultant specializing in technical debt analysis.
Analyze repository files and identify technical debt patterns.

DEBT PATTERNS TO DETECT:
`)
	for _, category := range repoType.CatalogOrder() {
		fmt.Fprintf(&b, "\n%s:\n", categoryTitles[category])
		for _, info := range types.Catalog(category) {
			fmt.Fprintf(&b, "- %s: %s\n", info.Type, info.Hint)
		}
	}
	b.WriteString(`
OUTPUT RULES:
- Return ONLY valid JSON, no markdown prose around it
- Use the debt type slugs above; invent a new snake_case slug only when nothing fits
- Be specific: reference actual file names and line content in "location"
- Severity: "critical" (immediate business impact), "high" (significant), "medium" (notable)
- annual_cost is the yearly cost to the business in USD; fix_effort_weeks is engineering weeks
- Set risk_flag for security problems (credentials, injection, known CVEs)
- Report each problem once; an empty "debt_items" list is a valid answer

Respond with JSON matching this schema:
`)
	b.WriteString(schema)
	b.WriteString("\n")
	return b.String()
}

// buildClassificationPrompt renders the bounded file digest for one repository.
func buildClassificationPrompt(snap *types.RepositorySnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s  (type: %s)\n", snap.Name, snap.RepoType)
	if len(snap.Signals) > 0 {
		fmt.Fprintf(&b, "Detection signals: %s\n", strings.Join(snap.Signals, ", "))
	}

	files := snap.Files
	if len(files) > maxDigestFiles {
		files = files[:maxDigestFiles]
	}
	fmt.Fprintf(&b, "\nFILES (%d of %d captured):\n", len(files), len(snap.Files))

	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := safeTruncateString(f.Content, maxDigestFileChars)
		marker := ""
		if f.Truncated || len(content) < len(f.Content) {
			marker = " (truncated)"
		}
		fmt.Fprintf(&b, "=== %s%s ===\n%s", f.Path, marker, content)
	}

	b.WriteString("\n\nAnalyze ALL files above for technical debt. Return the JSON analysis as specified.\n")
	return b.String()
}

const blockerSystem = `You are a technical advisor helping engineering and product teams decide
whether technical debt blocks planned features.

For EACH feature ticket, list the debt types from the findings that would block or
significantly slow its implementation. Only use debt types that appear in the findings.
A ticket that nothing blocks gets an empty "blocked_by" list.

Return ONLY valid JSON matching this schema:
`

// buildBlockerPrompt lists the tickets and the findings to cross-reference.
func buildBlockerPrompt(tickets []types.FeatureTicket, findings []types.DebtFinding) string {
	var b strings.Builder
	b.WriteString("DEBT FINDINGS:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s [%s] %s", f.Type, f.Severity, f.Location)
		if f.Repository != "" {
			fmt.Fprintf(&b, " (%s)", f.Repository)
		}
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nFEATURE TICKETS:\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "- %s: %s (priority %s, %d points)\n", t.Key, t.Title, t.Priority, t.StoryPoints)
		if t.Description != "" {
			fmt.Fprintf(&b, "  %s\n", safeTruncateString(t.Description, maxTicketDescription))
		}
	}

	b.WriteString("\nMap every ticket key to the debt types blocking it.\n")
	return b.String()
}
