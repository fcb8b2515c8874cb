// Package backlog loads the feature tickets that compete with refactoring for engineering time.
package backlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/steveyegge/debtneg/internal/types"
)

// Ticket sources reported in Result.Source.
const (
	SourceJira = "jira_live"
	SourceFile = "file"
	SourceDemo = "demo"
)

const (
	defaultRequestTimeout = 8 * time.Second
	defaultMaxElapsed     = 20 * time.Second
	defaultMaxRetries     = 3

	// maxResponseBytes bounds how much of a backlog response is read.
	maxResponseBytes = 16 << 20
)

// Result is the outcome of a fetch. Warning is set whenever the demo tickets were substituted.
type Result struct {
	Source  string
	Tickets []types.FeatureTicket
	Warning string
}

// Config controls a Fetcher.
type Config struct {
	// RequestTimeout bounds each HTTP attempt.
	RequestTimeout time.Duration
	// MaxElapsed bounds all attempts together.
	MaxElapsed time.Duration
	MaxRetries uint64
	// InitialInterval is the first retry delay; later delays grow exponentially.
	InitialInterval time.Duration

	HTTPClient *http.Client
	// Fs reads file sources; defaults to the OS filesystem.
	Fs afero.Fs
}

// DefaultConfig returns an 8s per-request timeout, 20s overall and 3 retries.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: defaultRequestTimeout,
		MaxElapsed:     defaultMaxElapsed,
		MaxRetries:     defaultMaxRetries,
	}
}

// Fetcher loads tickets from Jira, a JSON file, or the built-in demo set.
type Fetcher struct {
	cfg      Config
	validate *validator.Validate
}

// NewFetcher creates a fetcher, filling zero config values with defaults.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaultMaxElapsed
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Fetcher{cfg: cfg, validate: validator.New()}
}

// Fetch loads the backlog from source. It never fails: an empty source, an
// unreachable one, or one with no usable tickets yields the demo tickets and a warning.
// Only context cancellation is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, source, token string) (Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return demoResult("no backlog source configured, using demo tickets"), nil
	}

	var (
		tickets []types.FeatureTicket
		kind    string
		err     error
	)
	if isHTTP(source) {
		kind = SourceJira
		tickets, err = f.fetchHTTP(ctx, source, token)
	} else {
		kind = SourceFile
		tickets, err = f.readFile(source)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if err != nil {
		return demoResult(fmt.Sprintf("backlog source unreachable (%v), using demo tickets", err)), nil
	}

	tickets, dropped := f.validTickets(tickets)
	if dropped > 0 {
		slog.Warn("dropped invalid backlog tickets", "source", kind, "dropped", dropped)
	}
	if len(tickets) == 0 {
		return demoResult("backlog source returned no tickets, using demo tickets"), nil
	}

	slog.Info("backlog fetched", "source", kind, "tickets", len(tickets))
	return Result{Source: kind, Tickets: tickets}, nil
}

func demoResult(warning string) Result {
	slog.Warn(warning)
	return Result{Source: SourceDemo, Tickets: DemoTickets(), Warning: warning}
}

func isHTTP(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validTickets drops tickets that fail validation and repeated keys.
func (f *Fetcher) validTickets(in []types.FeatureTicket) ([]types.FeatureTicket, int) {
	out := make([]types.FeatureTicket, 0, len(in))
	seen := make(map[string]bool, len(in))
	dropped := 0
	for _, t := range in {
		if err := f.validate.Struct(t); err != nil || seen[t.Key] {
			dropped++
			continue
		}
		seen[t.Key] = true
		out = append(out, t)
	}
	return out, dropped
}

func (f *Fetcher) readFile(source string) ([]types.FeatureTicket, error) {
	path := strings.TrimPrefix(source, "file://")
	data, err := afero.ReadFile(f.cfg.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading backlog file: %w", err)
	}
	return ParseTickets(data)
}

// httpStatusError is a non-2xx response.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("backlog API returned %d: %s", e.status, e.body)
}

func retriableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source, token string) ([]types.FeatureTicket, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.cfg.MaxElapsed
	if f.cfg.InitialInterval > 0 {
		bo.InitialInterval = f.cfg.InitialInterval
	}

	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		data, err := f.get(ctx, source, token)
		if err == nil {
			body = data
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && !retriableStatus(statusErr.status) {
			return backoff.Permanent(err)
		}
		slog.Debug("backlog fetch failed, retrying", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, f.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return ParseTickets(body)
}

func (f *Fetcher) get(ctx context.Context, source, token string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if auth := authorization(token); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{status: resp.StatusCode, body: truncate(strings.TrimSpace(string(data)), 200)}
	}
	return data, nil
}

// authorization passes "Scheme credentials" tokens through and treats a bare token as a bearer token.
func authorization(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return token
	}
	return "Bearer " + token
}
