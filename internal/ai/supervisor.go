package ai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// AI Model Constants
//
// Classification reads a whole repository digest and needs the stronger model.
// Blocker mapping only cross-references two short lists and uses the cheaper one.
//
// Environment variable overrides:
// - DEBTNEG_MODEL_DEFAULT: Override default model (default: Sonnet)
// - DEBTNEG_MODEL_SIMPLE: Override model for simple tasks (default: Haiku)
const (
	// ModelSonnet is the high-end model for repository classification
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient model for blocker mapping
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the default model, checking DEBTNEG_MODEL_DEFAULT env var first
func GetDefaultModel() string {
	if model := os.Getenv("DEBTNEG_MODEL_DEFAULT"); model != "" {
		return model
	}
	return ModelSonnet
}

// GetSimpleTaskModel returns the model for simple tasks, checking DEBTNEG_MODEL_SIMPLE env var first
func GetSimpleTaskModel() string {
	if model := os.Getenv("DEBTNEG_MODEL_SIMPLE"); model != "" {
		return model
	}
	return ModelHaiku
}

// DefaultMaxTokens caps the output of one call.
const DefaultMaxTokens = 4096

// Supervisor is the Anthropic-backed classification oracle.
//
// The Supervisor's responsibilities are distributed across multiple files:
// - supervisor.go: Core struct and constructor (this file)
// - retry.go: Retry with backoff, throttling and concurrency caps
// - breaker.go: Circuit breaker
// - budget.go: Token budget for a run
// - prompts.go: Prompt construction and output schemas
// - classify.go: Repository classification
// - blockers.go: Ticket-to-debt blocker mapping
// - reply.go: Lenient extraction of JSON from model replies
type Supervisor struct {
	client         *anthropic.Client
	model          string
	simpleModel    string
	maxTokens      int
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted // Limits concurrent AI API calls
	limiter        *rate.Limiter       // Spaces out requests; nil means unlimited
	budget         *Budget             // Optional token budget for the run
}

// Config holds supervisor configuration
type Config struct {
	APIKey      string        // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model       string        // Model to use for classification (default: GetDefaultModel())
	SimpleModel string        // Model to use for blocker mapping (default: GetSimpleTaskModel())
	BaseURL     string        // Optional API endpoint override
	MaxTokens   int           // Max output tokens per call (default: DefaultMaxTokens)
	Retry       RetryConfig   // Retry configuration (uses defaults if not specified)
	Budget      *Budget       // Optional token budget
	RateLimit   float64       // Requests per second (0 = unlimited)
	HTTPTimeout time.Duration // Overall HTTP client timeout (0 = SDK default)
}

// NewSupervisor creates a new AI supervisor
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}
	simpleModel := cfg.SimpleModel
	if simpleModel == "" {
		simpleModel = GetSimpleTaskModel()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	// Use default retry config if not specified
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	// Retries are ours; the SDK's own retry loop would multiply them.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.HTTPTimeout))
	}
	client := anthropic.NewClient(opts...)

	// Initialize circuit breaker if enabled
	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(
			retry.FailureThreshold,
			retry.SuccessThreshold,
			retry.OpenTimeout,
		)
		slog.Debug("circuit breaker initialized",
			"threshold", retry.FailureThreshold,
			"recovery", retry.SuccessThreshold,
			"timeout", retry.OpenTimeout)
	}

	// Initialize concurrency limiter
	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Supervisor{
		client:         &client,
		model:          model,
		simpleModel:    simpleModel,
		maxTokens:      maxTokens,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		limiter:        limiter,
		budget:         cfg.Budget,
	}, nil
}

// Name identifies the oracle in reports.
func (s *Supervisor) Name() string {
	return "anthropic:" + s.model
}

// HealthCheck reports whether the oracle can take calls: the breaker must not
// be open and the token budget must not be spent.
func (s *Supervisor) HealthCheck(ctx context.Context) error {
	if s.circuitBreaker != nil && s.circuitBreaker.State() == CircuitOpen {
		return fmt.Errorf("AI oracle unavailable: %w (failures=%d, retry in %v)",
			ErrCircuitOpen, s.circuitBreaker.Failures(), s.retry.OpenTimeout)
	}
	if s.budget != nil {
		if ok, reason := s.budget.CanProceed(); !ok {
			return fmt.Errorf("AI oracle unavailable: %w: %s", ErrBudgetExceeded, reason)
		}
	}
	return ctx.Err()
}
