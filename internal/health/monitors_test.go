package health

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/debtneg/internal/types"
)

func snapshotOf(repoType types.RepoType, files ...types.SnapshotFile) *types.RepositorySnapshot {
	return &types.RepositorySnapshot{Name: "repo", RepoType: repoType, Files: files}
}

func issuesOfType(issues []DiscoveredIssue, debtType types.DebtType) []DiscoveredIssue {
	var out []DiscoveredIssue
	for _, issue := range issues {
		if issue.DebtType == debtType {
			out = append(out, issue)
		}
	}
	return out
}

func TestDependencyAuditor(t *testing.T) {
	auditor := NewDependencyAuditor()
	assert.Equal(t, "dependency_auditor", auditor.Name())
	assert.NotEmpty(t, auditor.Philosophy())

	requirements := strings.Join([]string{
		"# pinned",
		"numpy==1.16.4",
		"pandas==1.3.0",
		`tensorflow==1.15.0 ; python_version < "3.8"`,
		"requests==2.0.0",
		"scikit-learn[alldeps]==0.22.1",
		"pyspark>=2.4",
	}, "\n") + "\n"

	t.Run("requirements", func(t *testing.T) {
		result, err := auditor.Check(context.Background(), snapshotOf(types.RepoML,
			snapFile("requirements.txt", requirements)))
		require.NoError(t, err)
		require.Len(t, result.IssuesFound, 3)

		var locations []string
		for _, issue := range result.IssuesFound {
			assert.Equal(t, types.DebtOutdatedDependency, issue.DebtType)
			assert.Equal(t, types.SeverityHigh, issue.Severity)
			assert.Equal(t, 45000.0, issue.AnnualCost)
			assert.Equal(t, 2.0, issue.FixEffortWeeks)
			locations = append(locations, issue.Location())
		}
		assert.Equal(t, []string{"requirements.txt:2", "requirements.txt:4", "requirements.txt:6"}, locations)
		assert.Equal(t, "numpy==1.16.4 is outdated", result.IssuesFound[0].Description)
		assert.Equal(t, 1, result.Stats.FilesScanned)
	})

	t.Run("go directive", func(t *testing.T) {
		result, err := auditor.Check(context.Background(), snapshotOf(types.RepoSWE,
			snapFile("go.mod", "module example.com/old\n\ngo 1.16\n"),
			snapFile("tools/go.mod", "module example.com/tools\n\ngo 1.22\n")))
		require.NoError(t, err)
		require.Len(t, result.IssuesFound, 1)
		assert.Equal(t, "go.mod:3", result.IssuesFound[0].Location())
		assert.Contains(t, result.IssuesFound[0].Description, "go 1.16")
	})

	t.Run("log4j", func(t *testing.T) {
		pom := "<project>\n  <dependencies>\n    <dependency>\n" +
			"      <artifactId>log4j</artifactId>\n      <version>1.2.17</version>\n" +
			"    </dependency>\n  </dependencies>\n</project>\n"
		result, err := auditor.Check(context.Background(), snapshotOf(types.RepoSWE, snapFile("pom.xml", pom)))
		require.NoError(t, err)
		require.Len(t, result.IssuesFound, 1)

		issue := result.IssuesFound[0]
		assert.Equal(t, types.DebtSecurityVulnerability, issue.DebtType)
		assert.Equal(t, types.SeverityCritical, issue.Severity)
		assert.True(t, issue.RiskFlag)
		assert.Equal(t, "pom.xml:4", issue.Location())
	})

	t.Run("log4j 2 is fine", func(t *testing.T) {
		pom := "<artifactId>log4j-core</artifactId>\n<version>2.17.1</version>\n"
		result, err := auditor.Check(context.Background(), snapshotOf(types.RepoSWE, snapFile("pom.xml", pom)))
		require.NoError(t, err)
		assert.Empty(t, result.IssuesFound)
	})
}

func TestPythonSemver(t *testing.T) {
	assert.Equal(t, "v1.15.0", pythonSemver("1.15.0rc1"))
	assert.Equal(t, "v0.25.0", pythonSemver("0.25"))
	assert.Equal(t, "v2.0.0", pythonSemver("2"))
	assert.Equal(t, "", pythonSemver("latest"))
}

func TestGodClassMonitor(t *testing.T) {
	monitor := NewGodClassMonitor()
	assert.Equal(t, "god_class_monitor", monitor.Name())

	bigFile := strings.Repeat("x = 1\n", 600)
	longFunc := "def run():\n" + strings.Repeat("    x = 1\n", 350) + "def other():\n    pass\n"
	goFunc := "package x\n\nfunc Big() {\n" + strings.Repeat("\tx++\n", 320) + "}\n\nfunc Small() {}\n"

	snap := snapshotOf(types.RepoSWE,
		snapFile("src/big.py", bigFile),
		snapFile("tests/test_big.py", bigFile),
		snapFile("src/jobs.py", longFunc),
		snapFile("src/Legacy.java", "// 2,300 lines in one function\nclass Legacy {}\n"),
		snapFile("pkg/big.go", goFunc),
		snapFile("src/small.py", "def ok():\n    return 1\n"),
		snapFile("README.md", bigFile),
	)

	result, err := monitor.Check(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Stats.FilesScanned)

	classes := issuesOfType(result.IssuesFound, types.DebtGodClass)
	require.Len(t, classes, 1)
	assert.Equal(t, "src/big.py", classes[0].Location())
	assert.Equal(t, "600 lines - should be split", classes[0].Description)
	assert.Equal(t, types.SeverityHigh, classes[0].Severity)

	functions := issuesOfType(result.IssuesFound, types.DebtGodFunction)
	require.Len(t, functions, 3)

	byPath := make(map[string]DiscoveredIssue)
	for _, f := range functions {
		assert.Equal(t, types.SeverityCritical, f.Severity)
		assert.Equal(t, 80000.0, f.AnnualCost)
		byPath[f.FilePath] = f
	}
	assert.Equal(t, "run is 351 lines - cannot be tested", byPath["src/jobs.py"].Description)
	assert.Equal(t, "src/jobs.py:1", byPath["src/jobs.py"].Location())
	assert.Equal(t, 2300, byPath["src/Legacy.java"].Evidence["lines"])
	assert.Equal(t, "Big is 322 lines - cannot be tested", byPath["pkg/big.go"].Description)
	assert.Equal(t, "pkg/big.go:3", byPath["pkg/big.go"].Location())
}

func TestGodClassMonitor_TruncatedEstimate(t *testing.T) {
	f := types.SnapshotFile{
		Path:      "src/huge.py",
		Content:   strings.Repeat("x = 1\n", 100),
		Bytes:     600,
		Size:      6000,
		Lines:     100,
		Truncated: true,
	}
	result, err := NewGodClassMonitor().Check(context.Background(), snapshotOf(types.RepoSWE, f))
	require.NoError(t, err)
	require.Len(t, result.IssuesFound, 1)
	assert.Equal(t, "~1000 lines (estimated from 6000 bytes) - should be split", result.IssuesFound[0].Description)
	assert.Equal(t, true, result.IssuesFound[0].Evidence["estimated"])
}

func TestSecurityMonitor(t *testing.T) {
	monitor := NewSecurityMonitor()

	snap := snapshotOf(types.RepoSWE,
		snapFile("config.py", "import os\n\nDB_PASSWORD = \"hunter2!\"\npassword = 'x'\n"),
		snapFile("settings.py", "api_key = os.environ[\"API_KEY\"]\n"),
		snapFile("db.py", "def get(user_id):\n    cursor.execute(f\"SELECT * FROM users WHERE id = {user_id}\")\n"),
		snapFile("safe.py", "cursor.execute(\"SELECT * FROM users WHERE id = %s\", (user_id,))\n"),
		snapFile("UserDao.java", "class UserDao {\n  String q = \"SELECT * FROM users WHERE id = \" + id;\n}\n"),
		snapFile("notes.txt", "password = \"hunter2\"\n"),
	)

	result, err := monitor.Check(context.Background(), snap)
	require.NoError(t, err)

	creds := issuesOfType(result.IssuesFound, types.DebtHardcodedCredentials)
	require.Len(t, creds, 1, "one finding per file, none for env lookups or unscanned extensions")
	assert.Equal(t, "config.py:3", creds[0].Location())
	assert.True(t, creds[0].RiskFlag)
	assert.Equal(t, 100000.0, creds[0].AnnualCost)

	sql := issuesOfType(result.IssuesFound, types.DebtSQLInjectionRisk)
	require.Len(t, sql, 2)
	assert.Equal(t, "db.py:2", sql[0].Location())
	assert.Equal(t, "SQL query built with f-strings", sql[0].Description)
	assert.Equal(t, "UserDao.java:2", sql[1].Location())
	assert.Equal(t, "SQL query built with string concatenation", sql[1].Description)
	assert.Equal(t, 200000.0, sql[1].AnnualCost)
}

func TestMLMonitor(t *testing.T) {
	monitor := NewMLMonitor()
	monitor.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	features := "cols = [" + strings.Repeat("'feature_1', ", 11) + "]\n"
	snap := snapshotOf(types.RepoML,
		snapFile("src/train_model.py", "import sklearn\n# Last trained: 2024-01-01\n"),
		snapFile("src/retrain.py", "# Last run: 2024-05-01\n"),
		snapFile("src/feature_engineering.py", features),
		snapFile("src/features_small.py", "x = 'feature_1'\n"),
	)

	result, err := monitor.Check(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, result.IssuesFound, 2)

	stale := issuesOfType(result.IssuesFound, types.DebtModelStaleness)
	require.Len(t, stale, 1)
	assert.Equal(t, "src/train_model.py:2", stale[0].Location())
	assert.Equal(t, "Model last trained 152 days ago", stale[0].Description)
	assert.Equal(t, 564000.0, stale[0].AnnualCost)

	undocumented := issuesOfType(result.IssuesFound, types.DebtUndocumentedFeatures)
	require.Len(t, undocumented, 1)
	assert.Equal(t, "11 undocumented features found", undocumented[0].Description)

	t.Run("skipped for software repositories", func(t *testing.T) {
		snap.RepoType = types.RepoSWE
		result, err := monitor.Check(context.Background(), snap)
		require.NoError(t, err)
		assert.Empty(t, result.IssuesFound)
		assert.Contains(t, result.Context, "Not applicable")
	})
}

func TestPipelineMonitor(t *testing.T) {
	monitor := NewPipelineMonitor()

	snap := snapshotOf(types.RepoDataPipeline,
		snapFile("airflow-dags/etl_pipeline.py", "run()\n"),
		snapFile("airflow-dags/etl_pipeline_v2.py", "run()\n"),
		snapFile("airflow-dags/etl_pipeline_v2_final.py", "run()\n"),
		snapFile("airflow-dags/etl_pipeline_old.py", "run()\n"),
		snapFile("airflow-dags/load_users.py", "run()\n"),
		snapFile("db/migrations/001.sql", "create table a();\n"),
		snapFile("db/migrations/002.sql", "create table b();\n"),
		snapFile("db/migrations/003.sql", "create table c();\n"),
		snapFile("jobs/cleanup.py", "# keep everything\nARCHIVE = 's3://lake/archive'  # 12 TB\n"),
	)

	result, err := monitor.Check(context.Background(), snap)
	require.NoError(t, err)

	sprawl := issuesOfType(result.IssuesFound, types.DebtVersionSprawl)
	require.Len(t, sprawl, 1, "migrations are not sprawl")
	assert.Equal(t, "airflow-dags/", sprawl[0].Location())
	assert.Equal(t, "4 versions of etl_pipeline found", sprawl[0].Description)
	assert.Equal(t, 78000.0, sprawl[0].AnnualCost)
	assert.Equal(t, 3.0, sprawl[0].FixEffortWeeks)

	hoarding := issuesOfType(result.IssuesFound, types.DebtStorageHoarding)
	require.Len(t, hoarding, 1)
	assert.Equal(t, "jobs/cleanup.py:2", hoarding[0].Location())
	assert.Equal(t, types.SeverityCritical, hoarding[0].Severity)
	assert.Equal(t, "12 TB", hoarding[0].Evidence["size"])
}

func TestSprawlKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"dags/etl_pipeline.py", "dags/etl_pipeline.py"},
		{"dags/etl_pipeline_v2.py", "dags/etl_pipeline.py"},
		{"dags/ETL_Pipeline_v3_FINAL.py", "dags/etl_pipeline.py"},
		{"dags/etl_pipeline-backup.py", "dags/etl_pipeline.py"},
		{"dags/etl_pipeline.sql", "dags/etl_pipeline.sql"},
		{"report.py", "report.py"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sprawlKey(tt.path))
		})
	}
}
