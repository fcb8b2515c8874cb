// Package config loads debtneg settings. Sources are layered, later ones
// winning: built-in defaults, the YAML file (.debtneg.yaml), a .env file,
// DEBTNEG_* environment variables and finally bound command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/steveyegge/debtneg/internal/ai"
	"github.com/steveyegge/debtneg/internal/backlog"
	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/negotiation"
	"github.com/steveyegge/debtneg/internal/pipeline"
	"github.com/steveyegge/debtneg/internal/report"
	"github.com/steveyegge/debtneg/internal/scanner"
)

// FileName is the config file looked up in the working directory and $HOME.
const FileName = ".debtneg.yaml"

// EnvPrefix namespaces environment overrides, e.g. DEBTNEG_COST_TEAM_SIZE.
const EnvPrefix = "DEBTNEG"

// Config is the full set of tunables for a run.
type Config struct {
	Cost        cost.Params             `yaml:"cost" mapstructure:"cost"`
	Analysis    AnalysisConfig          `yaml:"analysis" mapstructure:"analysis"`
	Backlog     BacklogConfig           `yaml:"backlog" mapstructure:"backlog"`
	Negotiation NegotiationConfig       `yaml:"negotiation" mapstructure:"negotiation"`
	Risk        negotiation.RiskProfile `yaml:"risk" mapstructure:"risk"`
	AI          AIConfig                `yaml:"ai" mapstructure:"ai"`
	Budget      ai.BudgetConfig         `yaml:"budget" mapstructure:"budget"`
	Scanner     scanner.Config          `yaml:"scanner" mapstructure:"scanner"`
	Output      OutputConfig            `yaml:"output" mapstructure:"output"`
}

// AnalysisConfig controls the pipeline.
type AnalysisConfig struct {
	// Workers bounds how many repositories are analyzed at once.
	// Default: 4
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=64"`

	// OracleTimeout bounds each classification call.
	// Default: 3m
	OracleTimeout time.Duration `yaml:"oracle_timeout" mapstructure:"oracle_timeout" validate:"gt=0"`

	// Offline forces the heuristic oracle even when an API key is present.
	Offline bool `yaml:"offline" mapstructure:"offline"`

	// BlockersFile replaces blocker mapping with a hand-written mapping.
	BlockersFile string `yaml:"blockers_file,omitempty" mapstructure:"blockers_file"`
}

// BacklogConfig locates the feature backlog.
type BacklogConfig struct {
	// Source is a Jira search URL, a JSON file, or empty for the demo tickets.
	Source string `yaml:"source" mapstructure:"source"`

	// Token authenticates Jira requests. Never written to the config file.
	Token string `yaml:"-" mapstructure:"token"`

	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" validate:"gt=0"`
	MaxElapsed     time.Duration `yaml:"max_elapsed" mapstructure:"max_elapsed" validate:"gtefield=RequestTimeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

// NegotiationConfig tunes the decision engine.
type NegotiationConfig struct {
	// Strategy picks the subset evaluated for a partial refactor.
	Strategy string `yaml:"strategy" mapstructure:"strategy" validate:"oneof=critical_only high_and_above risk_only best_payback"`

	// HorizonWeeks is the longest acceptable break-even; 0 means unlimited.
	HorizonWeeks int `yaml:"horizon_weeks" mapstructure:"horizon_weeks" validate:"gte=0"`

	PointsPerWeek      int `yaml:"points_per_week" mapstructure:"points_per_week" validate:"gt=0"`
	DefaultStoryPoints int `yaml:"default_story_points" mapstructure:"default_story_points" validate:"gt=0"`
}

// AIConfig configures the Anthropic oracle.
type AIConfig struct {
	// APIKey falls back to ANTHROPIC_API_KEY. Never written to the config file.
	APIKey string `yaml:"-" mapstructure:"api_key"`

	Model       string        `yaml:"model" mapstructure:"model" validate:"required"`
	SimpleModel string        `yaml:"simple_model" mapstructure:"simple_model" validate:"required"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=256"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// OutputConfig controls where and how the report is written.
type OutputConfig struct {
	Path   string `yaml:"path" mapstructure:"path" validate:"required"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json summary"`
}

// Default returns the built-in configuration.
func Default() Config {
	fetch := backlog.DefaultConfig()
	retry := ai.DefaultRetryConfig()
	neg := negotiation.DefaultConfig()
	return Config{
		Cost: cost.DefaultParams(),
		Analysis: AnalysisConfig{
			Workers:       pipeline.DefaultConfig().Workers,
			OracleTimeout: pipeline.DefaultConfig().OracleTimeout,
		},
		Backlog: BacklogConfig{
			RequestTimeout: fetch.RequestTimeout,
			MaxElapsed:     fetch.MaxElapsed,
			MaxRetries:     int(fetch.MaxRetries),
		},
		Negotiation: NegotiationConfig{
			Strategy:           negotiation.StrategyCriticalOnly,
			PointsPerWeek:      neg.PointsPerWeek,
			DefaultStoryPoints: neg.DefaultStoryPoints,
		},
		Risk: negotiation.DefaultRiskProfile(),
		AI: AIConfig{
			Model:       ai.GetDefaultModel(),
			SimpleModel: ai.GetSimpleTaskModel(),
			MaxTokens:   ai.DefaultMaxTokens,
			MaxRetries:  retry.MaxRetries,
			Timeout:     retry.Timeout,
		},
		Budget:  ai.DefaultBudgetConfig(),
		Scanner: scanner.DefaultConfig(),
		Output: OutputConfig{
			Path:   report.DefaultOutputPath,
			Format: "summary",
		},
	}
}

var validate = validator.New()

// Validate checks field constraints, then the invariants each component
// enforces on its own configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("invalid cost configuration: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("invalid risk configuration: %w", err)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("invalid budget configuration: %w", err)
	}
	if err := c.Scanner.Validate(); err != nil {
		return fmt.Errorf("invalid scanner configuration: %w", err)
	}
	return nil
}

// String returns a human-readable representation of the config with secrets redacted
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Team: %d x $%.0f/wk, Streams: %d, Workers: %d, Backlog: %q, Token: %s, "+
			"Strategy: %s, Horizon: %dw, Model: %s, APIKey: %s, Offline: %t, Output: %s (%s)}",
		c.Cost.TeamSize, c.Cost.WeeklyRate, c.Cost.WorkStreams, c.Analysis.Workers,
		c.Backlog.Source, redact(c.Backlog.Token),
		c.Negotiation.Strategy, c.Negotiation.HorizonWeeks, c.AI.Model, redact(c.AI.APIKey),
		c.Analysis.Offline, c.Output.Path, c.Output.Format,
	)
}

func redact(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", 4)
}

// AnthropicKey returns the configured API key, falling back to ANTHROPIC_API_KEY.
func (c Config) AnthropicKey() string {
	if c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// PipelineConfig returns the runner settings.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:       c.Analysis.Workers,
		OracleTimeout: c.Analysis.OracleTimeout,
		Cost:          c.Cost,
	}
}

// NegotiationEngineConfig resolves the subset strategy and risk profile.
func (c Config) NegotiationEngineConfig() (negotiation.Config, error) {
	strategy, err := negotiation.StrategyByName(c.Negotiation.Strategy, c.Cost.WeeklyBurn(), c.Negotiation.HorizonWeeks)
	if err != nil {
		return negotiation.Config{}, err
	}
	return negotiation.Config{
		Profile:            c.Risk,
		Strategy:           strategy,
		HorizonWeeks:       c.Negotiation.HorizonWeeks,
		PointsPerWeek:      c.Negotiation.PointsPerWeek,
		DefaultStoryPoints: c.Negotiation.DefaultStoryPoints,
	}, nil
}

// FetcherConfig returns the backlog fetcher settings.
func (c Config) FetcherConfig() backlog.Config {
	fc := backlog.DefaultConfig()
	fc.RequestTimeout = c.Backlog.RequestTimeout
	fc.MaxElapsed = c.Backlog.MaxElapsed
	fc.MaxRetries = uint64(c.Backlog.MaxRetries)
	return fc
}

// SupervisorConfig returns the Anthropic oracle settings. budget may be nil.
func (c Config) SupervisorConfig(budget *ai.Budget) *ai.Config {
	retry := ai.DefaultRetryConfig()
	retry.MaxRetries = c.AI.MaxRetries
	retry.Timeout = c.AI.Timeout
	return &ai.Config{
		APIKey:      c.AI.APIKey,
		Model:       c.AI.Model,
		SimpleModel: c.AI.SimpleModel,
		BaseURL:     c.AI.BaseURL,
		MaxTokens:   c.AI.MaxTokens,
		Retry:       retry,
		Budget:      budget,
		RateLimit:   c.AI.RateLimit,
	}
}
