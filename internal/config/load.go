package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadOptions says where configuration comes from.
type LoadOptions struct {
	// Fs holds the config and .env files. Default: the OS filesystem.
	Fs afero.Fs

	// File is an explicit config file. It must exist.
	File string

	// SearchPaths are directories searched for FileName when File is empty.
	// Default: the working directory, then $HOME.
	SearchPaths []string

	// EnvFile is loaded into the process environment without overriding
	// variables that are already set. Default: ".env". A missing file is fine.
	EnvFile string

	// Flags maps config keys (e.g. "cost.team_size") to command-line flags.
	// Only flags the user actually set take effect.
	Flags map[string]*pflag.Flag
}

// Load builds the configuration from every layer and validates it.
func Load(opts LoadOptions) (Config, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadDotEnv(fs, envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")

	// Defaults go in as a YAML document so every key is known to viper,
	// which is what lets AutomaticEnv see nested keys during Unmarshal.
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return Config{}, fmt.Errorf("encoding defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}
	// Secrets and omitempty fields are missing from that document.
	for _, key := range []string{"backlog.token", "ai.api_key", "ai.base_url", "analysis.blockers_file"} {
		v.SetDefault(key, "")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file, err := findConfigFile(fs, opts)
	if err != nil {
		return Config{}, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", file, err)
		}
		slog.Debug("using config file", "path", file)
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("binding flag --%s: %w", flag.Name, err)
		}
	}

	// Decode into a zero value: every key has a default already, and decoding
	// over populated slices would keep stale trailing elements.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findConfigFile(fs afero.Fs, opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := fs.Stat(opts.File); err != nil {
			return "", fmt.Errorf("config file %s: %w", opts.File, err)
		}
		return opts.File, nil
	}

	paths := opts.SearchPaths
	if paths == nil {
		paths = []string{"."}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, home)
		}
	}
	for _, dir := range paths {
		candidate := filepath.Join(dir, FileName)
		if fi, err := fs.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", nil
}

// loadDotEnv copies the file's variables into the environment, keeping any
// value that is already set.
func loadDotEnv(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	values, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for key, value := range values {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setting %s from %s: %w", key, path, err)
		}
	}
	return nil
}
