package scanner

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/debtneg/internal/types"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func newTestScanner(t *testing.T, fs afero.Fs, mutate func(*Config)) *Scanner {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(fs, cfg)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFileBytes = 0
	_, err := New(afero.NewMemMapFs(), cfg)
	assert.Error(t, err)

	_, err = New(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestScan_PriorityFilesFirst(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/a_first.py":     "print('a')\n",
		"/repo/Dockerfile":     "FROM python:3.7\n",
		"/repo/pom.xml":        "<project/>\n",
		"/repo/src/main.go":    "package main\n",
		"/repo/docs/README.md": "# docs\n",
	})

	snap, err := newTestScanner(t, fs, nil).Scan(context.Background(), "/repo")
	require.NoError(t, err)

	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	assert.True(t, snap.Files[0].Priority)
	assert.Equal(t, []string{"pom.xml", "Dockerfile", "a_first.py", "docs/README.md", "src/main.go"}, paths)
	assert.Equal(t, "repo", snap.Name)
}

func TestScan_PerFileCapTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/big.py":   strings.Repeat("x", 100),
		"/repo/small.py": "ok\n",
	})

	s := newTestScanner(t, fs, func(c *Config) { c.MaxFileBytes = 40 })
	snap, err := s.Scan(context.Background(), "/repo")
	require.NoError(t, err)

	big, ok := snap.File("big.py")
	require.True(t, ok, "oversized files are truncated, not dropped")
	assert.True(t, big.Truncated)
	assert.Equal(t, 40, big.Bytes)
	assert.Len(t, big.Content, 40)
	assert.Equal(t, int64(100), big.Size)

	small, ok := snap.File("small.py")
	require.True(t, ok)
	assert.False(t, small.Truncated)
}

func TestScan_TruncationRespectsRuneBoundary(t *testing.T) {
	fs := afero.NewMemMapFs()
	// "é" is two bytes; a cap of 5 would split the third one.
	writeFiles(t, fs, map[string]string{"/repo/notes.md": "éééééé"})

	s := newTestScanner(t, fs, func(c *Config) { c.MaxFileBytes = 5 })
	snap, err := s.Scan(context.Background(), "/repo")
	require.NoError(t, err)

	f, ok := snap.File("notes.md")
	require.True(t, ok)
	assert.True(t, f.Truncated)
	assert.Equal(t, "éé", f.Content)
	assert.LessOrEqual(t, f.Bytes, 5)
}

func TestScan_TotalCapSkipsRemainingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/a.py": strings.Repeat("a", 10),
		"/repo/b.py": strings.Repeat("b", 10),
		"/repo/c.py": strings.Repeat("c", 10),
		"/repo/d.py": strings.Repeat("d", 10),
	})

	s := newTestScanner(t, fs, func(c *Config) {
		c.MaxFileBytes = 10
		c.MaxTotalBytes = 25
	})
	snap, err := s.Scan(context.Background(), "/repo")
	require.NoError(t, err)

	require.Len(t, snap.Files, 3)
	assert.Equal(t, 25, snap.TotalBytes)
	assert.True(t, snap.Files[2].Truncated, "the file that hits the cap is cut short")
	assert.Equal(t, 5, snap.Files[2].Bytes)
	assert.Equal(t, 1, snap.SkippedFiles)
	assert.NotEmpty(t, snap.Warnings)
}

func TestScan_SkipsExcludedDirsAndExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/app.py":                     "import os\n",
		"/repo/node_modules/lib/x.js":      "module.exports = 1\n",
		"/repo/.git/config":                "[core]\n",
		"/repo/build/out.json":             "{}\n",
		"/repo/model.bin":                  "weights",
		"/repo/scripts/deploy.sh":          "#!/bin/sh\n",
		"/repo/__pycache__/app.cpython.py": "cached\n",
	})

	snap, err := newTestScanner(t, fs, nil).Scan(context.Background(), "/repo")
	require.NoError(t, err)

	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"app.py", "scripts/deploy.sh"}, paths)
}

func TestScan_BinaryAndInvalidUTF8(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/blob.json": "{\x00\x01}",
		"/repo/latin.txt": "caf\xe9\n",
	})

	snap, err := newTestScanner(t, fs, nil).Scan(context.Background(), "/repo")
	require.NoError(t, err)

	_, ok := snap.File("blob.json")
	assert.False(t, ok, "NUL bytes mark binary content")

	f, ok := snap.File("latin.txt")
	require.True(t, ok)
	assert.Equal(t, "caf?\n", f.Content)
	assert.Len(t, snap.Warnings, 2)
}

func TestScan_MissingRoot(t *testing.T) {
	snap, err := newTestScanner(t, afero.NewMemMapFs(), nil).Scan(context.Background(), "/nowhere")
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	require.Len(t, snap.Warnings, 1)
	assert.Contains(t, snap.Warnings[0], "unreadable")
	assert.Equal(t, types.RepoSWE, snap.RepoType)
}

func TestScan_RootIsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/repo.py": "x = 1\n"})

	snap, err := newTestScanner(t, fs, nil).Scan(context.Background(), "/repo.py")
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	assert.Contains(t, snap.Warnings[0], "not a directory")
}

func TestScan_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/repo/a.py": "x\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner(t, fs, nil).Scan(ctx, "/repo")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_Deterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/z.py":       "import tensorflow\n",
		"/repo/m/model.py": "from sklearn import svm\n",
		"/repo/a.sql":      "select 1;\n",
	})
	s := newTestScanner(t, fs, nil)

	first, err := s.Scan(context.Background(), "/repo")
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), "/repo")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectRepoType(t *testing.T) {
	file := func(p, content string) types.SnapshotFile {
		return types.SnapshotFile{Path: p, Content: content}
	}

	tests := []struct {
		name  string
		files []types.SnapshotFile
		dirs  []string
		want  types.RepoType
	}{
		{
			name:  "no signals defaults to swe",
			files: []types.SnapshotFile{file("main.c", "int main() {}")},
			want:  types.RepoSWE,
		},
		{
			name:  "manifest only",
			files: []types.SnapshotFile{file("pom.xml", "<project/>")},
			want:  types.RepoSWE,
		},
		{
			name:  "ml imports",
			files: []types.SnapshotFile{file("train.py", "import tensorflow as tf\nfrom sklearn import metrics")},
			want:  types.RepoML,
		},
		{
			name:  "pipeline by directory name",
			files: []types.SnapshotFile{file("airflow-dags/load.py", "print('x')")},
			dirs:  []string{"airflow-dags"},
			want:  types.RepoDataPipeline,
		},
		{
			name: "ml and pipeline is mixed",
			files: []types.SnapshotFile{
				file("requirements.txt", "pyspark==2.4.0\nxgboost==0.90"),
			},
			want: types.RepoMixed,
		},
		{
			name: "java service with ml library is mixed",
			files: []types.SnapshotFile{
				file("pom.xml", "<artifactId>tensorflow</artifactId>"),
			},
			want: types.RepoMixed,
		},
		{
			name:  "keyword must be a whole word",
			files: []types.SnapshotFile{file("notes.txt", "the spark_plug and torchlight")},
			want:  types.RepoSWE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := DetectRepoType(tt.files, tt.dirs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectRepoType_OrderIndependent(t *testing.T) {
	a := types.SnapshotFile{Path: "pom.xml", Content: "<project/>"}
	b := types.SnapshotFile{Path: "jobs/etl.py", Content: "from pyspark.sql import SparkSession"}
	c := types.SnapshotFile{Path: "README.md", Content: "docs"}

	t1, s1 := DetectRepoType([]types.SnapshotFile{a, b, c}, []string{"jobs"})
	t2, s2 := DetectRepoType([]types.SnapshotFile{c, b, a}, []string{"jobs"})

	assert.Equal(t, t1, t2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, types.RepoMixed, t1)
	assert.Contains(t, s1, "swe:pom.xml")
	assert.Contains(t, s1, "data_pipeline:pyspark")
}
