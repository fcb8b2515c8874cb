package scanner

import (
	"fmt"
	"path"
	"strings"
)

// Config bounds what a scan captures.
type Config struct {
	// IncludeExtensions is the allow-list of text-like extensions (with the dot).
	IncludeExtensions []string `yaml:"include_extensions" mapstructure:"include_extensions"`

	// IncludeNames are extension-less file names that are also captured.
	IncludeNames []string `yaml:"include_names" mapstructure:"include_names"`

	// ExcludeDirs are directory names never descended into (vendor, build output).
	ExcludeDirs []string `yaml:"exclude_dirs" mapstructure:"exclude_dirs"`

	// PriorityFiles are read from the repository root, in this order, before anything else.
	PriorityFiles []string `yaml:"priority_files" mapstructure:"priority_files"`

	// MaxFileBytes caps the content captured from a single file.
	MaxFileBytes int `yaml:"max_file_bytes" mapstructure:"max_file_bytes" validate:"gt=0"`

	// MaxTotalBytes caps the whole snapshot. Priority files always fit.
	MaxTotalBytes int `yaml:"max_total_bytes" mapstructure:"max_total_bytes" validate:"gt=0"`
}

// DefaultConfig returns the scan limits: 20 KiB per file, 150 KiB per repository.
func DefaultConfig() Config {
	return Config{
		IncludeExtensions: []string{
			".py", ".java", ".js", ".ts", ".go", ".yaml", ".yml", ".json", ".xml",
			".txt", ".md", ".properties", ".sh", ".gradle", ".toml", ".cfg", ".ini", ".sql",
		},
		IncludeNames: []string{"Dockerfile", "Makefile", "Jenkinsfile"},
		ExcludeDirs: []string{
			"node_modules", "__pycache__", ".git", "venv", ".venv", "dist", "build",
			"vendor", "target", ".idea", ".tox",
		},
		PriorityFiles: []string{
			"pom.xml", "package.json", "requirements.txt", "build.gradle", "go.mod",
			"Dockerfile", "docker-compose.yml", "setup.py", "pyproject.toml",
		},
		MaxFileBytes:  20 * 1024,
		MaxTotalBytes: 150 * 1024,
	}
}

// Validate checks the limits are usable
func (c Config) Validate() error {
	if c.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive, got %d", c.MaxFileBytes)
	}
	if c.MaxTotalBytes <= 0 {
		return fmt.Errorf("max_total_bytes must be positive, got %d", c.MaxTotalBytes)
	}
	if len(c.IncludeExtensions) == 0 && len(c.IncludeNames) == 0 {
		return fmt.Errorf("at least one include extension or name is required")
	}
	return nil
}

// wantsFile reports whether a file name passes the allow-list.
func (c Config) wantsFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext != "" {
		for _, allowed := range c.IncludeExtensions {
			if ext == allowed {
				return true
			}
		}
	}
	for _, allowed := range c.IncludeNames {
		if name == allowed {
			return true
		}
	}
	return false
}

// skipsDir reports whether a directory name is on the deny-list.
func (c Config) skipsDir(name string) bool {
	for _, denied := range c.ExcludeDirs {
		if name == denied {
			return true
		}
	}
	return false
}
